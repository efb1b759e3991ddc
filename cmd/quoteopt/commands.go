package main

import (
	"context"
	"fmt"

	"github.com/diewo77/quote-optimizer/internal/db"
	"github.com/diewo77/quote-optimizer/internal/pipeline"
	"github.com/diewo77/quote-optimizer/internal/services"
	"github.com/diewo77/quote-optimizer/internal/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(_ context.Context, app *App) error {
				if err := db.Prepare(app.db, app.cfg.Database, app.logger); err != nil {
					return err
				}
				app.logger.Info("migrations completed")
				return nil
			})
		},
	}
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var file string
	var skipRFQs bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load suppliers, client requests and quotations from a YAML fixture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				fx, err := db.LoadFixture(file)
				if err != nil {
					return err
				}
				seeded, err := db.Seed(ctx, app.db, fx)
				if err != nil {
					return fmt.Errorf("seed: %w", err)
				}
				out := map[string]int{"suppliers": seeded.Suppliers, "requests": seeded.Requests}

				if !skipRFQs {
					dispatch := services.NewDispatchService(app.db, app.logger)
					sent, err := dispatch.SendRFQs(ctx)
					if err != nil {
						return fmt.Errorf("send rfqs: %w", err)
					}
					imported, err := dispatch.ImportQuotations(ctx, fx.Quotations)
					if err != nil {
						return err
					}
					out["rfqs"] = sent
					out["quotations"] = imported.Recorded
					out["duplicate_quotations"] = imported.Duplicates
				}
				return writeJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "fixture file (required)")
	cmd.Flags().BoolVar(&skipRFQs, "skip-rfqs", false, "only insert suppliers and requests")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newDispatchCmd(opts *rootOptions) *cobra.Command {
	var requestID, supplierID uint
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Send RFQs to every supplier supporting a request's product type",
		Long: "Without flags an RFQ goes to every supporting supplier of every request.\n" +
			"With --request and --supplier only that pair is sent, and a supplier\n" +
			"that does not carry the product type is an error.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			single := cmd.Flags().Changed("request") || cmd.Flags().Changed("supplier")
			if single {
				v := validation.Violations{}
				validation.PositiveInt("request", int(requestID), v)
				validation.PositiveInt("supplier", int(supplierID), v)
				if err := v.Err(); err != nil {
					return err
				}
			}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				dispatch := services.NewDispatchService(app.db, app.logger)
				if single {
					rfq, err := dispatch.SendRFQ(ctx, requestID, supplierID)
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), rfq)
				}
				sent, err := dispatch.SendRFQs(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]int{"rfqs": sent})
			})
		},
	}
	cmd.Flags().UintVar(&requestID, "request", 0, "client request id (with --supplier)")
	cmd.Flags().UintVar(&supplierID, "supplier", 0, "supplier id (with --request)")
	return cmd
}

func newStageCmd(opts *rootOptions, name, short string) *cobra.Command {
	var modelPath string
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stage, err := pipeline.ParseStage(name)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				p, err := app.pipeline(modelPath)
				if err != nil {
					return err
				}
				run, err := p.RunStage(ctx, stage)
				if run != nil {
					if werr := writeJSON(cmd.OutOrStdout(), run); werr != nil && err == nil {
						err = werr
					}
				}
				return err
			})
		},
	}
	if name == string(pipeline.StageScore) {
		cmd.Flags().StringVar(&modelPath, "model", "", "model artifact (overrides scoring.model_path)")
	}
	return cmd
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var modelPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run score, merge and select in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				p, err := app.pipeline(modelPath)
				if err != nil {
					return err
				}
				run, err := p.Run(ctx)
				if run != nil {
					if werr := writeJSON(cmd.OutOrStdout(), run); werr != nil && err == nil {
						err = werr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&modelPath, "model", "", "model artifact (overrides scoring.model_path)")
	return cmd
}

func newRunsCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent pipeline runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := validation.Violations{}
			validation.PositiveInt("limit", limit, v)
			if err := v.Err(); err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				runs, err := app.store.RecentRuns(ctx, limit)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), runs)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	return cmd
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print reports over the current selection as JSON",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "suppliers",
			Short: "Selected quotes, average margin and heuristic score per supplier",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.withApp(cmd, func(ctx context.Context, app *App) error {
					perf, err := services.NewReportService(app.store).SupplierPerformance(ctx)
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), perf)
				})
			},
		},
		&cobra.Command{
			Use:   "selected",
			Short: "The selected quotation of every client request",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.withApp(cmd, func(ctx context.Context, app *App) error {
					rows, err := services.NewReportService(app.store).Selected(ctx)
					if err != nil {
						return err
					}
					app.logger.Debug("selected quotes", zap.Int("rows", len(rows)))
					return writeJSON(cmd.OutOrStdout(), rows)
				})
			},
		},
	)
	return cmd
}
