package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/agentrelay/cmd/app/commands"
	"github.com/allisson/agentrelay/internal/app"
	"github.com/allisson/agentrelay/internal/config"
)

// contextFlags are shared by every command that resolves a reporting context.
func contextFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "initiative-id",
			Usage: "Initiative to report against (falls back to DEFAULT_INITIATIVE_ID)",
		},
		&cli.StringFlag{
			Name:  "run-id",
			Usage: "Locally tracked run id",
		},
		&cli.StringFlag{
			Name:  "correlation-id",
			Usage: "Opaque correlation id (preferred over run-id when both apply)",
		},
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}

// withContainer builds the DI container and hands it to the action, ensuring
// cleanup afterwards.
func withContainer(action func(ctx context.Context, container *app.Container) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		container := app.NewContainer(config.Load())
		defer func() {
			_ = container.Shutdown(context.Background())
		}()
		return action(ctx, container)
	}
}

func getCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the diagnostics server, metrics server and sync scheduler",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "sync",
			Usage: "Run one reconcile/refresh/flush pass",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				format := cmd.String("format")
				return withContainer(func(ctx context.Context, container *app.Container) error {
					syncScheduler, err := container.Scheduler()
					if err != nil {
						return fmt.Errorf("failed to initialize scheduler: %w", err)
					}
					replay, err := container.ReplayUseCase()
					if err != nil {
						return fmt.Errorf("failed to initialize replay use case: %w", err)
					}
					return commands.RunSync(ctx, syncScheduler, replay, container.Logger(), os.Stdout, format)
				})(ctx, cmd)
			},
		},
		{
			Name:  "flush",
			Usage: "Drain the outbox queues once",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				format := cmd.String("format")
				return withContainer(func(ctx context.Context, container *app.Container) error {
					replay, err := container.ReplayUseCase()
					if err != nil {
						return fmt.Errorf("failed to initialize replay use case: %w", err)
					}
					return commands.RunFlush(ctx, replay, container.Logger(), os.Stdout, format)
				})(ctx, cmd)
			},
		},
		{
			Name:  "reconcile",
			Usage: "Reap runs whose process died without reporting completion",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				format := cmd.String("format")
				return withContainer(func(ctx context.Context, container *app.Container) error {
					runs, err := container.RunUseCase()
					if err != nil {
						return fmt.Errorf("failed to initialize run use case: %w", err)
					}
					return commands.RunReconcile(ctx, runs, container.Logger(), os.Stdout, format)
				})(ctx, cmd)
			},
		},
		{
			Name:  "doctor",
			Usage: "Show gateway connectivity, replay state and pending queues",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				format := cmd.String("format")
				return withContainer(func(ctx context.Context, container *app.Container) error {
					diagnosticsService, err := container.Diagnostics()
					if err != nil {
						return fmt.Errorf("failed to initialize diagnostics: %w", err)
					}
					return commands.RunDoctor(ctx, diagnosticsService, container.Logger(), os.Stdout, format)
				})(ctx, cmd)
			},
		},
		{
			Name:  "emit-activity",
			Usage: "Post a progress update, buffering it if the gateway is unreachable",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:     "message",
					Aliases:  []string{"m"},
					Required: true,
					Usage:    "Progress message text",
				},
				formatFlag(),
			}, contextFlags()...),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(func(ctx context.Context, container *app.Container) error {
					emitter, err := container.EmitterUseCase()
					if err != nil {
						return fmt.Errorf("failed to initialize emitter use case: %w", err)
					}
					return commands.RunEmitActivity(
						ctx, emitter, container.Logger(), os.Stdout,
						cmd.String("message"),
						cmd.String("initiative-id"),
						cmd.String("run-id"),
						cmd.String("correlation-id"),
						cmd.String("format"),
					)
				})(ctx, cmd)
			},
		},
		{
			Name:  "record-decision",
			Usage: "Record a decision made during a run",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:     "question",
					Aliases:  []string{"q"},
					Required: true,
					Usage:    "Question the decision answers",
				},
				&cli.StringFlag{
					Name:     "decision",
					Aliases:  []string{"d"},
					Required: true,
					Usage:    "Decision taken",
				},
				&cli.StringFlag{
					Name:    "reasoning",
					Aliases: []string{"r"},
					Usage:   "Reasoning behind the decision",
				},
				formatFlag(),
			}, contextFlags()...),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(func(ctx context.Context, container *app.Container) error {
					emitter, err := container.EmitterUseCase()
					if err != nil {
						return fmt.Errorf("failed to initialize emitter use case: %w", err)
					}
					return commands.RunRecordDecision(
						ctx, emitter, container.Logger(), os.Stdout,
						cmd.String("question"),
						cmd.String("decision"),
						cmd.String("reasoning"),
						cmd.String("initiative-id"),
						cmd.String("run-id"),
						cmd.String("correlation-id"),
						cmd.String("format"),
					)
				})(ctx, cmd)
			},
		},
		{
			Name:  "register-artifact",
			Usage: "Register an artifact against a remote entity",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:     "entity-type",
					Required: true,
					Usage:    "Target entity type (task, initiative, decision or run)",
				},
				&cli.StringFlag{
					Name:     "entity-id",
					Required: true,
					Usage:    "Target entity id",
				},
				&cli.StringFlag{
					Name:  "name",
					Usage: "Human-readable artifact name",
				},
				&cli.StringFlag{
					Name:     "uri",
					Required: true,
					Usage:    "Artifact location (file path or URL)",
				},
				&cli.StringFlag{
					Name:  "media-type",
					Usage: "Artifact media type (e.g. text/html)",
				},
				formatFlag(),
			}, contextFlags()...),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(func(ctx context.Context, container *app.Container) error {
					emitter, err := container.EmitterUseCase()
					if err != nil {
						return fmt.Errorf("failed to initialize emitter use case: %w", err)
					}
					return commands.RunRegisterArtifact(
						ctx, emitter, container.Logger(), os.Stdout,
						cmd.String("entity-type"),
						cmd.String("entity-id"),
						cmd.String("name"),
						cmd.String("uri"),
						cmd.String("media-type"),
						cmd.String("initiative-id"),
						cmd.String("run-id"),
						cmd.String("correlation-id"),
						cmd.String("format"),
					)
				})(ctx, cmd)
			},
		},
		{
			Name:  "run-start",
			Usage: "Register a started agent run",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "run-id",
					Usage: "Run id (generated when omitted)",
				},
				&cli.StringFlag{
					Name:     "agent-id",
					Required: true,
					Usage:    "Identifier of the agent runtime",
				},
				&cli.StringFlag{
					Name:  "session-id",
					Usage: "Session transcript identifier",
				},
				&cli.IntFlag{
					Name:     "pid",
					Required: true,
					Usage:    "OS process id of the agent",
				},
				&cli.StringFlag{
					Name:  "initiative-id",
					Usage: "Initiative the run belongs to",
				},
				&cli.StringFlag{
					Name:  "task-id",
					Usage: "Task the run works on",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(func(ctx context.Context, container *app.Container) error {
					runs, err := container.RunUseCase()
					if err != nil {
						return fmt.Errorf("failed to initialize run use case: %w", err)
					}
					return commands.RunStartRun(
						ctx, runs, container.Logger(), os.Stdout,
						cmd.String("run-id"),
						cmd.String("agent-id"),
						cmd.String("session-id"),
						int(cmd.Int("pid")),
						cmd.String("initiative-id"),
						cmd.String("task-id"),
						cmd.String("format"),
					)
				})(ctx, cmd)
			},
		},
		{
			Name:  "run-stop",
			Usage: "Mark a run stopped via the agent's shutdown hook",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "run-id",
					Required: true,
					Usage:    "Run id to stop",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(func(ctx context.Context, container *app.Container) error {
					runs, err := container.RunUseCase()
					if err != nil {
						return fmt.Errorf("failed to initialize run use case: %w", err)
					}
					return commands.RunStopRun(
						ctx, runs, container.Logger(), os.Stdout,
						cmd.String("run-id"),
						cmd.String("format"),
					)
				})(ctx, cmd)
			},
		},
	}
}
