package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/winxlab/winx/core"
	"github.com/winxlab/winx/learning"
	"github.com/winxlab/winx/persistence"
	"github.com/winxlab/winx/server"
	"github.com/winxlab/winx/shell"
	"github.com/winxlab/winx/telemetry"
	"github.com/winxlab/winx/tools"
)

func newServeCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tool protocol over stdio or TCP",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, cleanup, err := buildDeps(globalCfg, workspace)
			if err != nil {
				return err
			}
			deps.Events.Emit(telemetry.Event{
				Type:     telemetry.EventSessionStart,
				Metadata: map[string]any{"workspace": workspace},
			})
			defer func() {
				deps.Events.Emit(telemetry.Event{Type: telemetry.EventSessionExit})
				cleanup()
			}()

			if listen == "" && globalCfg != nil {
				listen = globalCfg.Transport.Listen
			}
			srv := &server.Server{
				Registry: tools.NewRegistry(deps),
				Logger:   log.New(cmd.ErrOrStderr(), "winx: ", log.LstdFlags),
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if listen != "" {
				return srv.ServeTCP(ctx, listen)
			}
			return srv.ServeStdio(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "TCP address to listen on (default: stdio)")
	return cmd
}

// buildDeps assembles the process-wide singletons from config. The returned
// cleanup closes sessions and flushes sinks.
func buildDeps(cfg *core.Config, workspace string) (*tools.Deps, func(), error) {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	engine := core.NewEngine()
	engine.SetWorkspace(workspace)
	if mode, err := core.ModeFromConfig(cfg); err == nil {
		engine.Gate.SetMode(mode)
	}

	sessions := shell.NewManager(shell.NewScreenManager())

	dataDir, err := core.DataDir()
	if err != nil {
		return nil, nil, err
	}
	contexts, err := persistence.NewContextStore(dataDir)
	if err != nil {
		return nil, nil, err
	}

	sinks := []telemetry.Sink{}
	var closers []func()
	if cfg.Telemetry.EventLog != "" {
		if sink, sinkErr := telemetry.NewJSONFile(cfg.Telemetry.EventLog); sinkErr == nil {
			sinks = append(sinks, sink)
			closers = append(closers, func() { sink.Close() })
		}
	}
	if cfg.Telemetry.AuditDB != "" {
		if audit, auditErr := persistence.NewAuditStore(cfg.Telemetry.AuditDB); auditErr == nil {
			sinks = append(sinks, audit)
			closers = append(closers, func() { audit.Close() })
		}
	}
	var events telemetry.Sink = telemetry.Discard{}
	if len(sinks) > 0 {
		events = telemetry.Multiplex{Sinks: sinks}
	}

	deps := &tools.Deps{
		Engine:      engine,
		Sessions:    sessions,
		Selector:    learning.NewSelector(time.Now().UnixNano()),
		Contexts:    contexts,
		Events:      events,
		MaxFileSize: cfg.Security.MaxFileSizeBytes,
	}
	cleanup := func() {
		sessions.CloseAll()
		for _, c := range closers {
			c()
		}
	}
	return deps, cleanup, nil
}
