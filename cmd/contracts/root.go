package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/contracts-analyzer/internal/common"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logText    bool
}

// newRootCmd builds a fresh command tree; tests call it once per case so flag state never leaks.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	a := &app{}

	cmd := &cobra.Command{
		Use:           "contracts",
		Short:         "Extract, index and compare contract documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, opts)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "optional YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug|info|warn|error (overrides LOG_LEVEL)")
	cmd.PersistentFlags().BoolVar(&opts.logText, "log-text", false, "human-readable logs instead of JSON")

	cmd.AddCommand(
		newAnalyzeCmd(a),
		newSearchCmd(a),
		newCollectionsCmd(a),
		newExtractCmd(a),
	)
	return cmd
}

func (a *app) init(cmd *cobra.Command, opts *rootOptions) error {
	common.LoadDotEnv(nil)
	cfg, err := common.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	hopts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler = slog.NewJSONHandler(os.Stderr, hopts)
	if opts.logText {
		handler = slog.NewTextHandler(os.Stderr, hopts)
	}
	a.cfg = cfg
	a.logger = slog.New(handler)
	slog.SetDefault(a.logger)
	a.out = cmd.OutOrStdout()
	return nil
}
