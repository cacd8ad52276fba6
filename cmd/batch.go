package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-ehs/incidentctl/internal/model"
	"github.com/meridian-ehs/incidentctl/internal/rules"
	"github.com/meridian-ehs/incidentctl/internal/store"
)

var batchCmd = &cobra.Command{
	Use:   "batch <records-file>",
	Short: "Classify a file of impact records",
	Long: `Classify every record in a JSON or YAML array concurrently.

Invalid records are logged and skipped; the batch continues. With --save,
each valid record and its classification are persisted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		save, _ := cmd.Flags().GetBool("save")

		recs, err := loadRecordBatch(args[0])
		if err != nil {
			return err
		}

		engine, err := initEngine()
		if err != nil {
			return err
		}

		var st store.Store
		if save {
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}
		}

		return processBatch(ctx, recs, cfg.Batch.MaxConcurrent, engine, st)
	},
}

func init() {
	batchCmd.Flags().Bool("save", false, "store records and classifications")
	rootCmd.AddCommand(batchCmd)
}

// processBatch classifies records concurrently, persisting them when st is
// non-nil. Individual failures do not abort the batch.
func processBatch(ctx context.Context, recs []model.ImpactRecord, concurrency int, engine *rules.Engine, st store.Store) error {
	if len(recs) == 0 {
		zap.L().Info("no records in batch")
		return nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("records", len(recs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var classified, reportable, failed atomic.Int64

	for i := range recs {
		rec := recs[i]
		g.Go(func() error {
			log := zap.L().With(zap.String("company", rec.Company), zap.Int("index", i))

			result, err := engine.Classify(&rec)
			if err != nil {
				failed.Add(1)
				log.Error("classification failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			if st != nil {
				inc, err := st.CreateIncident(gctx, rec)
				if err != nil {
					failed.Add(1)
					log.Error("save record failed", zap.Error(err))
					return nil
				}
				if _, err := st.SaveClassification(gctx, inc.ID, result); err != nil {
					failed.Add(1)
					log.Error("save classification failed", zap.Error(err))
					return nil
				}
			}

			classified.Add(1)
			if result.ReportRequired {
				reportable.Add(1)
			}
			log.Info("classified",
				zap.String("tier", result.TierLabel),
				zap.Bool("report_required", result.ReportRequired),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("classified", classified.Load()),
		zap.Int64("report_required", reportable.Load()),
		zap.Int64("failed", failed.Load()),
	)
	fmt.Fprintf(os.Stdout, "classified %d of %d records, %d require reporting, %d failed\n",
		classified.Load(), len(recs), reportable.Load(), failed.Load())
	return nil
}
