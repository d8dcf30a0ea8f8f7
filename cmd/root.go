package cmd

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	// Version of this software - filled in by ldflags at build time.
	Version string
	// BuildTime of this software - filled in by ldflags at build time.
	BuildTime string
)

// EnvPrefix is prepended to the upper cased flag name of every option read
// from the environment, e.g. SPARKIFY_OUTPUT.
const EnvPrefix = "SPARKIFY"

// DefaultConfig is read when present in the working directory. It is not an
// error for it to be missing.
const DefaultConfig = "dl.cfg"

// iniKeys maps the section.key names used by dl.cfg files onto flag names.
var iniKeys = map[string]string{
	"aws_access.aws_access_key_id":     "aws-access-key-id",
	"aws_access.aws_secret_access_key": "aws-secret-access-key",
	"input.input_root_path":            "input",
	"output.output_root_path":          "output",
}

func setupVersionBuild() {
	if Version == "" {
		Version = "v0.0.0"
	}
	if BuildTime == "" {
		BuildTime = "not recorded"
	}
}

var subcommandFns = map[string]func(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command{}

// NewRootCommand reads the map of subcommandFns and creates a top level cobra
// command with each of them as subcommands. Invoked without a subcommand it
// runs the etl job.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	setupVersionBuild()
	etl := NewETLCommand(stdin, stdout, stderr)
	rc := &cobra.Command{
		Use:   "datalake",
		Short: "datalake - build the Sparkify analytics tables",
		Long: `Reads the Sparkify song catalogue and activity logs and writes
the songs, artists, users, time and songplays tables as partitioned parquet.

Version: ` + Version + `
Build Time: ` + BuildTime + "\n",
		Args: cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadDotEnv(".env"); err != nil {
				return err
			}
			v := viper.New()
			return setAllConfig(v, cmd.Flags(), EnvPrefix)
		},
		RunE:          etl.RunE,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	// no shorthand: the etl flags already claim -c
	rc.PersistentFlags().String("config", DefaultConfig, "Configuration file (ini, toml or yaml).")
	rc.Flags().AddFlagSet(etl.Flags())
	rc.AddCommand(etl)
	for _, subcomFn := range subcommandFns {
		rc.AddCommand(subcomFn(stdin, stdout, stderr))
	}
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// loadDotEnv adds the variables in path to the environment without
// overriding ones which are already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(godotenv.Load(path), "loading %s", path)
}

// setAllConfig takes a FlagSet to be the definition of all configuration
// options, as well as their defaults. It then reads from the command line, the
// environment, and a config file (if specified), and applies the configuration
// in that priority order. Since each flag in the set contains a pointer to
// where its value should be stored, setAllConfig can directly modify the value
// of each config variable.
//
// setAllConfig looks for environment variables which are capitalized versions
// of the flag names with dashes replaced by underscores, and prefixed with
// envPrefix plus an underscore.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet, envPrefix string) error {
	// add cmd line flag def to viper
	err := v.BindPFlags(flags)
	if err != nil {
		return err
	}

	// add env to viper
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, v.GetString("config")); err != nil {
		return err
	}

	// set all values from viper
	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil {
			return
		}
		var value string
		if f.Value.Type() == "stringSlice" {
			// special handling is needed for stringSlice as v.GetString will
			// always return "" in the case that the value is an actual string
			// slice from a config file rather than a comma separated string
			// from a flag or env var.
			vss := v.GetStringSlice(f.Name)
			value = strings.Join(vss, ",")
		} else {
			value = v.GetString(f.Name)
		}

		if f.Changed {
			// If f.Changed is true, that means the value has already been set
			// by a flag, and we don't need to ask viper for it since the flag
			// is the highest priority. This works around a problem with string
			// slices where f.Value.Set(csvString) would cause the elements of
			// csvString to be appended to the existing value rather than
			// replacing it.
			return
		}
		if err := f.Value.Set(value); err != nil {
			flagErr = errors.Wrapf(err, "setting %s", f.Name)
		}
	})
	return flagErr
}

// readConfigFile adds the config file at c to v. The file type follows the
// extension, with .cfg and .ini read as ini files whose section keys are
// mapped through iniKeys.
func readConfigFile(v *viper.Viper, c string) error {
	if c == "" {
		return nil
	}
	if _, err := os.Stat(c); os.IsNotExist(err) && c == DefaultConfig {
		return nil
	}
	v.SetConfigFile(c)
	switch ext := strings.ToLower(filepath.Ext(c)); ext {
	case ".cfg", ".ini":
		v.SetConfigType("ini")
	case ".yaml", ".yml":
		v.SetConfigType("yaml")
	default:
		v.SetConfigType("toml")
	}
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "reading configuration file '%s'", c)
	}
	for key, name := range iniKeys {
		if v.IsSet(key) {
			v.SetDefault(name, v.Get(key))
		}
	}
	return nil
}
