package cmd

import (
	"io"
	"log"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/spf13/cobra"

	"github.com/sparkify/datalake/gen"
)

// GenMain is wrapped by NewGenCommand and only exported for testing purposes.
var GenMain *gen.Main

// NewGenCommand returns a new cobra command wrapping GenMain.
func NewGenCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	GenMain = gen.NewMain()
	m := GenMain
	genCommand := &cobra.Command{
		Use:   "gen",
		Short: "gen - generate a synthetic song catalogue and activity logs",
		Long: `Writes a deterministic, seeded dataset in the same layout as the public
Sparkify data so the etl command can be run without access to it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			err := m.Run()
			if err != nil {
				return err
			}
			log.Println("Done: ", time.Since(start))
			return nil
		},
	}
	flags := genCommand.Flags()
	err := commandeer.Flags(flags, m)
	if err != nil {
		panic(err)
	}
	return genCommand
}

func init() {
	subcommandFns["gen"] = NewGenCommand
}
