package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/canteen-orders/internal/app"
	"github.com/joseph-ayodele/canteen-orders/internal/common"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "canteen",
		Short: "Scan canteen order receipts into verified orders",
		Long: `canteen reads photographed canteen receipts, extracts the order with an
on-device or hosted language model and tracks each order through
pending, verified and mismatch.

Configuration comes from --config (YAML) and environment variables
(DB_URL, LLM_BACKEND, LLM_API_KEY, ...); environment variables win.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (env CONFIG_FILE)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "debug | info | warn | error")

	root.AddCommand(
		newServeCmd(opts),
		newScanCmd(opts),
		newOCRCmd(opts),
		newExtractCmd(opts),
		newAddCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newVerifyCmd(opts),
		newMismatchCmd(opts),
		newRescanCmd(opts),
		newProofCmd(opts),
		newDeleteCmd(opts),
		newBatchCmd(opts),
		newWatchCmd(opts),
		newExportCmd(opts),
		newJobsCmd(opts),
		newDBHealthCmd(opts),
	)
	return root
}

func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(o.logLevel))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (o *rootOptions) config() (*common.Config, error) {
	path := o.configPath
	if path == "" {
		path = common.ConfigFileFromEnv()
	}
	cfg, err := common.LoadConfigFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withApp builds the application for one command and closes it afterwards.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	cfg, err := o.config()
	if err != nil {
		return err
	}
	logger := o.logger(cmd)
	slog.SetDefault(logger)
	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
