package cmd

import (
	"io"

	"github.com/jaffee/commandeer"
	"github.com/spf13/cobra"

	"github.com/sparkify/datalake"
)

// ETLMain is wrapped by NewETLCommand and only exported for testing purposes.
var ETLMain *datalake.Main

// NewETLCommand returns a new cobra command wrapping ETLMain.
func NewETLCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	ETLMain = datalake.NewMain()
	m := ETLMain
	etlCommand := &cobra.Command{
		Use:   "etl",
		Short: "etl - build the analytics tables from song and log data",
		Long: `Reads the song catalogue and the activity logs under --input, derives
the songs, artists, users, time and songplays tables and writes them as
parquet under <output>/analytics/<table>/.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return m.Run()
		},
	}
	flags := etlCommand.Flags()
	err := commandeer.Flags(flags, m)
	if err != nil {
		panic(err)
	}
	return etlCommand
}
