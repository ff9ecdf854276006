package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatsummary/internal/caption"
	"chatsummary/internal/channel"
	"chatsummary/internal/config"
	"chatsummary/internal/domain"
	"chatsummary/internal/platform"
	"chatsummary/internal/provider"
	"chatsummary/internal/render"
	"chatsummary/internal/retriever"
	"chatsummary/internal/schedule"
	"chatsummary/internal/store"
	"chatsummary/internal/summarizer"
	"chatsummary/internal/transcript"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "chatsummary",
		Short: "ChatSummary: LLM-powered group chat digests",
		Long:  "ChatSummary retrieves group chat history, formats it into a transcript, and posts an LLM summary back as text or a rendered image.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.chatsummary/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(summarizeCmd())
	root.AddCommand(gatewayCmd())
	root.AddCommand(recentCmd())
	root.AddCommand(statusCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.General.LogLevel)}))
	if err := config.LoadGroupOverlays(cfg, cfg.General.GroupsDir, logger); err != nil {
		logger.Warn("group overlays not loaded", "err", err)
	}
	return cfg, nil
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

// pipeline bundles everything a summary run needs.
type pipeline struct {
	orch    *summarizer.Orchestrator
	client  *platform.Client
	archive *store.Archive // nil when disabled
	cfg     *config.Config
}

func (p *pipeline) close() {
	if p.archive != nil {
		p.archive.Close()
	}
}

func buildPipeline(cfg *config.Config) (*pipeline, error) {
	client := platform.NewClient(platform.ClientConfig{
		APIBase:     cfg.Platform.APIBase,
		AccessToken: cfg.Platform.AccessToken,
		Logger:      logger,
	})

	providers := provider.NewFactory(cfg, logger)

	var captioner *caption.Service
	if cfg.Caption.Enabled {
		prov, err := providers.DefaultProvider()
		if err != nil {
			logger.Warn("caption service disabled, no provider", "err", err)
		} else {
			captioner = caption.NewService(caption.ServiceConfig{
				Provider:      prov,
				SystemPrompt:  cfg.Caption.SystemPrompt,
				MaxConcurrent: cfg.Caption.MaxConcurrent,
				Delay:         captionDelay(cfg),
				CacheSize:     cfg.Caption.CacheSize,
				Logger:        logger,
			})
		}
	}

	var renderers []domain.Renderer
	if cfg.Render.ServiceURL != "" {
		renderers = append(renderers, render.NewRemote(render.RemoteConfig{
			ServiceURL: cfg.Render.ServiceURL,
			Logger:     logger,
		}))
	}
	renderers = append(renderers, render.NewChrome(render.ChromeConfig{
		OutputDir: cfg.Render.OutputDir,
		Headless:  cfg.Render.Headless,
		Logger:    logger,
	}))
	renderer := domain.Renderer(render.NewChain(logger, renderers...))

	var archive *store.Archive
	if cfg.Archive.Enabled {
		var err error
		archive, err = store.NewArchive(cfg.Archive.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
	}

	var archiver summarizer.Archiver
	if archive != nil {
		archiver = archive
	}

	orch := summarizer.NewOrchestrator(summarizer.OrchestratorConfig{
		Store:     client,
		Retriever: retriever.New(client, logger),
		Formatter: transcript.New(transcript.FormatterConfig{
			WakePrefixes: cfg.Summary.WakePrefixes,
			Logger:       logger,
		}),
		Captioner: captioner,
		Providers: providers,
		Renderer:  renderer,
		Archive:   archiver,
		Config:    cfg,
		Logger:    logger,
	})

	return &pipeline{orch: orch, client: client, archive: archive, cfg: cfg}, nil
}

func captionDelay(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Caption.DelayMs) * time.Millisecond
}

func summarizeCmd() *cobra.Command {
	var groupID int64
	var wantImage bool
	var send bool

	cmd := &cobra.Command{
		Use:   "summarize <count|span>",
		Short: "Summarize a group's recent history once",
		Long:  "Runs one summary for the given window selector, e.g. 100 (messages) or 2h (time span). Prints the result; --send posts it back to the group.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			w, err := summarizer.ParseSelector(args[0])
			if err != nil {
				return err
			}

			p, err := buildPipeline(cfg)
			if err != nil {
				return err
			}
			defer p.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res := p.orch.Run(ctx, groupID, w, wantImage)
			fmt.Println(res.Text)
			if res.ImageRef != "" {
				fmt.Println(res.ImageRef)
			}

			if send && !res.Failed {
				parts := []domain.MessagePart{domain.TextPart(res.Text)}
				if res.ImageRef != "" {
					parts = append(parts, domain.ImagePart(res.ImageRef))
				}
				if err := p.client.SendGroupMessage(ctx, groupID, parts); err != nil {
					return fmt.Errorf("send to group: %w", err)
				}
			}
			if res.Failed {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().Int64VarP(&groupID, "group", "g", 0, "group ID to summarize (required)")
	cmd.Flags().BoolVar(&wantImage, "image", false, "also render the summary to an image")
	cmd.Flags().BoolVar(&send, "send", false, "post the result back to the group")
	cmd.MarkFlagRequired("group")
	return cmd
}

func gatewayCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Run the event gateway, scheduler, and enabled channels",
		Long:  "Listens for platform message events, serves in-group wake commands, runs scheduled digests, and starts the Telegram operator channel when enabled. Press Ctrl+C to stop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			p, err := buildPipeline(cfg)
			if err != nil {
				return err
			}
			defer p.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sched := schedule.New(schedule.SchedulerConfig{
				Orchestrator: p.orch,
				Store:        p.client,
				Config:       cfg,
				Logger:       logger,
			})
			if n := sched.Start(ctx); n > 0 {
				logger.Info("scheduled digests running", "groups", n)
			}

			if cfg.Telegram.Enabled && cfg.Telegram.Token != "" {
				tg := channel.NewTelegram(channel.TelegramConfig{
					Token:        cfg.Telegram.Token,
					AllowFrom:    cfg.Telegram.AllowFrom,
					Orchestrator: p.orch,
					Archive:      p.archive,
					Logger:       logger,
				})
				go func() {
					if err := tg.Start(ctx); err != nil {
						logger.Error("telegram channel stopped", "err", err)
					}
				}()
			}

			gw := channel.NewOneBotGateway(channel.OneBotGatewayConfig{
				Addr:         addr,
				WakePrefixes: cfg.Summary.WakePrefixes,
				Orchestrator: p.orch,
				Store:        p.client,
				Logger:       logger,
			})
			err = gw.Start(ctx)
			sched.Wait()
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "listen", ":8900", "listen address for platform event posts")
	return cmd
}

func recentCmd() *cobra.Command {
	var groupID int64
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List archived summaries for a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Archive.Enabled {
				return fmt.Errorf("archive is disabled in config")
			}

			archive, err := store.NewArchive(cfg.Archive.DBPath, logger)
			if err != nil {
				return err
			}
			defer archive.Close()

			recs, err := archive.Recent(context.Background(), groupID, limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Println("no archived summaries")
				return nil
			}
			for _, rec := range recs {
				fmt.Printf("— %s (%s)%s\n%s\n\n",
					rec.CreatedAt.Format("2006-01-02 15:04"),
					rec.Selector,
					degradedTag(rec.Degraded),
					rec.Summary)
			}
			return nil
		},
	}

	cmd.Flags().Int64VarP(&groupID, "group", "g", 0, "group ID (required)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "how many summaries to show")
	cmd.MarkFlagRequired("group")
	return cmd
}

func degradedTag(degraded bool) string {
	if degraded {
		return " [degraded]"
	}
	return ""
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check config, platform, and provider health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				cfg = config.Defaults()
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}

			ctx := context.Background()

			client := platform.NewClient(platform.ClientConfig{
				APIBase:     cfg.Platform.APIBase,
				AccessToken: cfg.Platform.AccessToken,
				Logger:      logger,
			})
			if selfID, err := client.LoginInfo(ctx); err != nil {
				logger.Info("platform", "reachable", false, "err", err)
			} else {
				logger.Info("platform", "reachable", true, "self_id", selfID)
			}

			factory := provider.NewFactory(cfg, logger)
			if prov := factory.HealthyProvider(ctx); prov != nil {
				logger.Info("provider", "name", prov.Name(), "healthy", true, "vision", prov.SupportsVision())
			} else {
				logger.Info("provider", "healthy", false)
			}

			logger.Info("version", "chatsummary", version)
			return nil
		},
	}
}
