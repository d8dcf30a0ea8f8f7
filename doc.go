/*
Package datalake builds Sparkify's analytics tables from the raw song catalogue
and user activity logs kept in object storage.

A run is a strict sequence of four components, each handed the same Session:

1. Source Reader

   ReadSongs and ReadEvents list every JSON object under a prefix, however
   deeply nested, and decode them into SongRecord and LogEvent rows. Keys are
   read in sorted order so that row order, and therefore every table derived
   from it, is deterministic.

2. Song/Artist Transformer

   SongsTable and ArtistsTable project the catalogue into the songs and
   artists dimensions, one row per key.

3. User/Time/Songplay Transformer

   UsersTable, TimeTable and SongplaysTable derive the remaining dimensions
   and the songplays fact table from the activity log. Only NextSong events
   are plays. Songplays are matched against the catalogue on song title,
   artist name and duration; a miss leaves song_id and artist_id null.

4. Sink Writer

   WriteAll encodes each table as Parquet under analytics/<table>/ in the
   output store, split into Hive style partition directories.

Each table is shaped by a short Chain of named Stages so that every step can be
exercised on its own against literal input.
*/
package datalake
