package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nexuscore/agentd/internal/config"
	"github.com/nexuscore/agentd/internal/observability"
	"github.com/nexuscore/agentd/internal/sessions"
	"github.com/nexuscore/agentd/internal/telemetry"
	"github.com/nexuscore/agentd/pkg/chatmodel"
)

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the nexuscore service",
		Long: `Start the nexuscore service: the Sensor Daemon, Mode Manager,
Scheduler, and the Task Executor's HTTP surface, wired from the given
configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "nexuscore.yaml", "path to YAML/JSON5 configuration file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	app, err := Build(cfg, nil)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}

	app.Log.Info("starting nexuscore", "version", version, "commit", commit, "config", configPath)

	app.Daemon.Start(ctx)
	app.Scheduler.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.HTTP.ListenAndServe(ctx, cfg.Server.ShutdownTimeout)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		app.Log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	if err := app.Scheduler.Stop(ctx); err != nil {
		return err
	}
	return app.Close(context.Background())
}

func buildChatCmd() *cobra.Command {
	var (
		configPath string
		sessionID  string
		channel    string
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send one message through the Task Executor and print the reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), configPath, sessionID, channel, args[0])
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "nexuscore.yaml", "path to YAML/JSON5 configuration file")
	cmd.Flags().StringVar(&sessionID, "session", "", "existing session id; a new session is created when empty")
	cmd.Flags().StringVar(&channel, "channel", string(chatmodel.ChannelChat), "channel tag for a newly created session")
	return cmd
}

func runChat(ctx context.Context, configPath, sessionID, channel, message string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	app, err := Build(cfg, nil)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}

	if sessionID == "" {
		session, err := app.Sessions.CreateSession(ctx, chatmodel.Channel(channel), string(app.ModeMgr.Current()))
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		sessionID = session.ID
	}

	obsCtx := ctx
	if app.ObsLogger != nil {
		obsCtx = observability.AddSessionID(ctx, sessionID)
		obsCtx = observability.AddChatChannel(obsCtx, chatmodel.Channel(channel))
		app.ObsLogger.Info(obsCtx, "chat request received", "message_bytes", len(message))
	}

	result := app.Executor.Execute(ctx, sessionID, message, chatmodel.Channel(channel), telemetry.NewTrace())
	if result.Err != nil {
		if app.ObsLogger != nil {
			app.ObsLogger.Error(obsCtx, "chat request failed", "error", result.Err.Error())
		}
		return fmt.Errorf("task failed: %s", result.Err.Error())
	}
	if app.ObsLogger != nil {
		app.ObsLogger.Info(obsCtx, "chat request completed", "tool_iterations", result.ToolIterations, "tool_calls", len(result.ToolCalls))
	}
	fmt.Printf("session %s (%d tool iterations)\n", sessionID, result.ToolIterations)
	for _, call := range result.ToolCalls {
		fmt.Println(call.Display())
	}
	fmt.Println(result.Reply)
	return nil
}

func buildSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect sessions stored by the Task Executor",
	}
	cmd.AddCommand(buildSessionListCmd(), buildSessionGetCmd())
	return cmd
}

func buildSessionListCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			app, err := Build(cfg, nil)
			if err != nil {
				return fmt.Errorf("build app: %w", err)
			}
			list, err := app.Sessions.List(cmd.Context(), sessions.ListOptions{Limit: 50})
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			for _, s := range list {
				fmt.Printf("%s\t%s\t%s\t%s\n", s.ID, s.Channel, s.Mode, s.UpdatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "nexuscore.yaml", "path to configuration file")
	return cmd
}

func buildSessionGetCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "get [session-id]",
		Short: "Print a session's full message history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			app, err := Build(cfg, nil)
			if err != nil {
				return fmt.Errorf("build app: %w", err)
			}
			session, err := app.Sessions.GetSession(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get session: %w", err)
			}
			for _, m := range session.Messages {
				fmt.Printf("[%s] %s\n", m.Role, m.Content)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "nexuscore.yaml", "path to configuration file")
	return cmd
}

func buildTelemetryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telemetry",
		Short: "Query the Trace & Telemetry Bus's JSONL event log",
	}
	cmd.AddCommand(buildTelemetryQueryCmd(), buildTelemetryTraceCmd())
	return cmd
}

func buildTelemetryQueryCmd() *cobra.Command {
	var (
		path  string
		name  string
		level string
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print events from a telemetry log, optionally filtered by name/level",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open telemetry log: %w", err)
			}
			defer f.Close()

			events, err := telemetry.NewReader(f).ReadAll()
			if err != nil {
				return fmt.Errorf("read telemetry log: %w", err)
			}
			for _, e := range events {
				if name != "" && e.Name != name {
					continue
				}
				if level != "" && string(e.Level) != level {
					continue
				}
				fmt.Printf("%s\t%s\t%s\t%s\n", e.Timestamp.Format(time.RFC3339), e.Level, e.Name, e.TraceID)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "./data/telemetry/events.jsonl", "path to a JSONL telemetry log")
	cmd.Flags().StringVar(&name, "name", "", "filter by event name")
	cmd.Flags().StringVar(&level, "level", "", "filter by event level")
	return cmd
}

func buildTelemetryTraceCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "trace [trace-id]",
		Short: "Print every event sharing a trace id, in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open telemetry log: %w", err)
			}
			defer f.Close()

			events, err := telemetry.NewReader(f).ReadAll()
			if err != nil {
				return fmt.Errorf("read telemetry log: %w", err)
			}
			for _, e := range events {
				if e.TraceID != args[0] {
					continue
				}
				fmt.Printf("%s\t%s\t%s\t%v\n", e.Timestamp.Format(time.RFC3339), e.Level, e.Name, e.Fields)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "./data/telemetry/events.jsonl", "path to a JSONL telemetry log")
	return cmd
}
