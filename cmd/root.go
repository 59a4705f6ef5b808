// Package cmd provides the estatico command-line interface.
//
// Configuration is read with the following precedence, highest first:
//
//  1. Command-line flags (--production, --log-level, ...)
//  2. ESTATICO_ environment variables (ESTATICO_SERVER_PORT, ESTATICO_CSS_DEST, ...)
//  3. The configuration file: --config, else ESTATICO_CONFIG_FILE, else
//     .estatico.yml in the project directory
//  4. Built-in defaults
package cmd

import (
	stderrors "errors"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/estatico/internal/errors"
)

// options are the persistent flags that are not configuration keys.
type options struct {
	configFile string
	dir        string
}

// flagKeys maps persistent flags onto configuration keys.
var flagKeys = map[string]string{
	"production": "production",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// Execute runs the command line.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the command tree with its own configuration state.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "estatico",
		Short: "Build and serve a static front-end project",
		Long: `estatico builds static front-end projects: it renders pages, compiles
stylesheets, lints and bundles scripts, generates icon fonts and sprites,
and serves the result with live reload while watching the sources.

Quick Start:
  estatico              Build everything, watch and serve (same as "estatico default")
  estatico build        Build everything once
  estatico css --production
  estatico tasks        List the tasks and their dependencies`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return readConfig(v, opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasks(cmd, v, opts, []string{"default"})
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default is .estatico.yml, can also use ESTATICO_CONFIG_FILE env var)")
	flags.StringVarP(&opts.dir, "dir", "C", ".", "project directory")
	flags.BoolP("production", "p", false, "minify and compress output")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	bindFlags(v, flags)

	rootCmd.AddCommand(newTaskCommands(v, opts)...)
	rootCmd.AddCommand(
		newRunCommand(v, opts),
		newTasksCommand(v, opts),
		newInspectCommand(),
		newVersionCommand(),
	)
	return rootCmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			_ = v.BindPFlag(key, f)
		}
	})
}

// readConfig locates the configuration file and enables environment
// overrides. A missing default file is not an error.
func readConfig(v *viper.Viper, opts *options) error {
	switch {
	case opts.configFile != "":
		v.SetConfigFile(opts.configFile)
	case os.Getenv("ESTATICO_CONFIG_FILE") != "":
		v.SetConfigFile(os.Getenv("ESTATICO_CONFIG_FILE"))
	default:
		v.AddConfigPath(opts.dir)
		v.SetConfigType("yaml")
		v.SetConfigName(".estatico")
	}

	v.SetEnvPrefix("ESTATICO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if stderrors.As(err, &notFound) {
			return nil
		}
		return errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "cannot read configuration")
	}
	return nil
}
