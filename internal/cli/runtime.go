package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/app"
	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/audit"
	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/config"
	applog "github.com/Nicolasg7777/TicketWorkflowTracker/internal/log"
	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/report"
	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/storage"
)

var (
	loadConfigFn = config.Load
	openStoreFn  = storage.Open
)

type runtimeEnv struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *storage.Store
	activity *audit.Service
	tickets  *app.TicketService
}

// withRuntime loads configuration, opens the store (ensuring the schema), and
// hands fn a ready ticket service. The store and log file are closed on every
// path out.
func withRuntime(cmdCtx context.Context, deps commandDeps, errOut io.Writer, fn func(context.Context, *runtimeEnv) error) (retErr error) {
	ctx := cmdCtx
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfigFn(loadOptions(deps))
	if err != nil {
		return mapCommandError(fmt.Errorf("load config: %w", err))
	}

	logger, err := applog.New(cfg.Logging, errOut)
	if err != nil {
		return mapCommandError(fmt.Errorf("configure logging: %w", err))
	}
	defer func() { _ = logger.Close() }()

	store, err := openStoreFn(cfg.Storage.DBPath)
	if err != nil {
		return mapCommandError(fmt.Errorf("open store: %w", err))
	}
	defer func() {
		if err := store.Close(); err != nil && retErr == nil {
			retErr = mapCommandError(fmt.Errorf("close store: %w", err))
		}
	}()
	logger.Debug("store opened", slog.String("path", store.Path()))

	activity, err := audit.NewService(ctx, store.Audit)
	if err != nil {
		return mapCommandError(err)
	}

	env := &runtimeEnv{
		cfg:      cfg,
		logger:   logger.Logger,
		store:    store,
		activity: activity,
		tickets: app.NewTicketService(
			store.Tickets,
			report.NewGenerator(cfg.Report.Path, deps.clock, logger.Logger),
			activity,
			deps.clock,
			logger.Logger,
		),
	}
	return mapCommandError(fn(ctx, env))
}

func loadOptions(deps commandDeps) config.LoadOptions {
	opts := config.LoadOptions{Env: deps.env}
	if deps.globals == nil {
		return opts
	}
	opts.ConfigPath = strings.TrimSpace(deps.globals.ConfigPath)
	opts.Flags.DBPath = nonEmpty(deps.globals.DBPath)
	opts.Flags.ReportPath = nonEmpty(deps.globals.ReportPath)
	opts.Flags.LogLevel = nonEmpty(deps.globals.LogLevel)
	return opts
}

func nonEmpty(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
