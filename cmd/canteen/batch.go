package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/canteen-orders/constants"
	"github.com/joseph-ayodele/canteen-orders/internal/app"
	"github.com/joseph-ayodele/canteen-orders/internal/export"
	"github.com/joseph-ayodele/canteen-orders/internal/ingest"
	"github.com/joseph-ayodele/canteen-orders/internal/ocr"
	"github.com/joseph-ayodele/canteen-orders/internal/server"
)

type queueFlags struct {
	workers int
	size    int
	timeout time.Duration
}

func (q *queueFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&q.workers, "workers", 4, "concurrent scan workers")
	cmd.Flags().IntVar(&q.size, "queue-size", 256, "pending jobs before enqueue blocks")
	cmd.Flags().DurationVar(&q.timeout, "job-timeout", 3*time.Minute, "per-image time limit")
}

func (q *queueFlags) config() app.QueueConfig {
	return app.QueueConfig{Workers: q.workers, Size: q.size, Timeout: q.timeout}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		qf       queueFlags
		watch    []string
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC API, metrics endpoint and batch queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				return a.Serve(cmd.Context(), app.ServeConfig{
					Queue:      qf.config(),
					WatchRoots: watch,
					Debounce:   debounce,
				})
			})
		},
	}
	qf.bind(cmd)
	cmd.Flags().StringArrayVar(&watch, "watch", nil, "folder to watch for new receipt images (repeatable)")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "wait for writes to settle before scanning")
	return cmd
}

func newBatchCmd(opts *rootOptions) *cobra.Command {
	var (
		qf         queueFlags
		skipHidden bool
		out        string
	)
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Scan every receipt image under a directory, optionally exporting the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				q := a.NewQueue(qf.config())
				results, stats, err := a.NewIngestor(q).IngestDirectory(cmd.Context(), args[0], skipHidden)
				// drain whatever was queued even if the walk failed part way
				q.Shutdown(context.WithoutCancel(cmd.Context()))
				if err != nil {
					return err
				}
				for _, r := range results {
					if r.Err != "" {
						fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %s\n", r.Path, r.Err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d matched=%d enqueued=%d failed=%d\n",
					stats.Scanned, stats.Matched, stats.Enqueued, stats.Failed)
				if out == "" {
					return nil
				}
				return writeExport(cmd, a, export.Filter{}, out)
			})
		},
	}
	qf.bind(cmd)
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", true, "ignore dot files and directories")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write an XLSX export of all orders here afterwards")
	return cmd
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		qf       queueFlags
		debounce time.Duration
		initial  bool
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Watch folders and scan receipt images as they appear (until interrupted)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				q := a.NewQueue(qf.config())
				defer q.Shutdown(context.WithoutCancel(cmd.Context()))
				err := a.NewIngestor(q).Watch(cmd.Context(), ingest.WatchConfig{
					Roots:       args,
					InitialScan: initial,
					Debounce:    debounce,
					SkipHidden:  true,
				})
				if cmd.Context().Err() != nil {
					return nil
				}
				return err
			})
		},
	}
	qf.bind(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "wait for writes to settle before scanning")
	cmd.Flags().BoolVar(&initial, "initial", false, "also scan images already in the folders")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		statusStr, fromStr, toStr, out string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write orders to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var f export.Filter
			if statusStr != "" {
				st, ok := constants.ParseVerificationStatus(statusStr)
				if !ok {
					return fmt.Errorf("unknown status %q (pending, verified, mismatch)", statusStr)
				}
				f.Status = st
			}
			var err error
			if f.From, err = parseDay("from", fromStr); err != nil {
				return err
			}
			if f.To, err = parseDay("to", toStr); err != nil {
				return err
			}
			return opts.withApp(cmd, func(a *app.App) error {
				return writeExport(cmd, a, f, out)
			})
		},
	}
	cmd.Flags().StringVar(&statusStr, "status", "", "only orders in this status")
	cmd.Flags().StringVar(&fromStr, "from", "", "from date YYYY-MM-DD")
	cmd.Flags().StringVar(&toStr, "to", "", "to date YYYY-MM-DD")
	cmd.Flags().StringVarP(&out, "out", "o", "orders.xlsx", "output file")
	return cmd
}

func parseDay(name, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s date format, use YYYY-MM-DD: %w", name, err)
	}
	return &t, nil
}

func writeExport(cmd *cobra.Command, a *app.App, f export.Filter, out string) error {
	xlsx, err := a.Export.OrdersXLSX(cmd.Context(), f)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(out); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(out, xlsx, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(xlsx))
	return nil
}

func newJobsCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent batch scan jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				jobs, err := a.Jobs.ListRecent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), jobs)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of jobs")
	return cmd
}

func newDBHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dbhealth",
		Short: "Open the configured store, create the schema and ping it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				if err := server.PingDB(cmd.Context(), a.DB, a.Logger, 3*time.Second); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s OK\n", a.DB.Dialect())
				return nil
			})
		},
	}
}

func newOCRCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ocr <image>",
		Short: "Print the text tesseract recognizes in a receipt image (no model, no store)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			x := ocr.NewExtractor(ocr.Config{
				Tesseract:     cfg.OCR.TesseractBin,
				TesseractLang: cfg.OCR.Language,
				TessdataDir:   cfg.OCR.TessdataDir,
				Timeout:       cfg.OCR.Timeout,
			}, nil, opts.logger(cmd))
			text, err := x.ExtractText(cmd.Context(), img)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "confidence=%.2f\n", ocr.HeuristicConfidence(text))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
}
