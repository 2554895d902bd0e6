package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/scitags/dropwatch-go/dropmon"
	"github.com/scitags/dropwatch-go/types"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&confPath, "config", DEFAULT_CONF_PATH, "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "log level: trace, debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&logTimeFlag, "log-time", false, "include timestamps in log lines")
	rootCmd.Flags().StringVar(&formatFlag, "format", "", "drop report format (text or json), overrides the configuration")
}

var (
	rootCmd = &cobra.Command{
		Use:   "dropwatch",
		Short: "Watch where the kernel drops packets.",
		Long: "Interactive client for the kernel's NET_DM drop monitor. Type 'start' to begin\n" +
			"monitoring, Ctrl-C to stop it and 'exit' (or Ctrl-D) to quit.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := ReadConf(confPath)
			if err != nil {
				return err
			}
			slog.Debug("loaded configuration", "path", confPath)

			if formatFlag != "" {
				conf.Output.Format = formatFlag
			}
			format, ok := dropmon.ParseFormat(conf.Output.Format)
			if !ok {
				return fmt.Errorf("unknown report format %q", conf.Output.Format)
			}

			return run(conf, format)
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Get the built version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("built commit: %s\n", builtCommit)
		},
	}

	confCmd = &cobra.Command{
		Use:   "conf",
		Short: "Print the configuration in effect.",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := ReadConf(confPath)
			if err != nil {
				return err
			}
			fmt.Print(conf)
			return nil
		},
	}

	confPath     string
	logLevelFlag string
	logTimeFlag  bool
	formatFlag   string
	builtCommit  = "dev"
)

func init() {
	// Disable completion please!
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Add the different sub-commands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(confCmd)
}

func setupLogging() error {
	level, ok := types.ParseLogLevel(logLevelFlag)
	if !ok {
		return fmt.Errorf("unknown log level %q", logLevelFlag)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		AddSource:   level <= types.LevelDebug,
		Level:       level,
		ReplaceAttr: logReplacements,
	}))
	slog.SetDefault(logger)

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
