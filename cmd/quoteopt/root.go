package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "quoteopt",
		Short: "Score, merge and select supplier quotations",
		Long: "quoteopt applies the win-probability model to new supplier quotations, " +
			"rebuilds the merged quote table and selects one quotation per client request.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "quoteopt.yaml", "config file path (optional)")
	pf.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the configuration")

	cmd.AddCommand(
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newDispatchCmd(opts),
		newStageCmd(opts, "score", "Score quotations that have no win probability yet"),
		newStageCmd(opts, "merge", "Rebuild the merged quote table"),
		newStageCmd(opts, "select", "Select one quotation per client request"),
		newRunCmd(opts),
		newRunsCmd(opts),
		newReportCmd(opts),
	)
	return cmd
}

// withApp builds the application for one command, runs fn and pushes the
// collected metrics whether fn failed or not.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	app, err := newApp(o)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			app.logger.Warn("close app", zap.Error(err))
		}
	}()

	ctx := cmd.Context()
	runErr := fn(ctx, app)
	app.pushMetrics(context.WithoutCancel(ctx))
	return runErr
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
