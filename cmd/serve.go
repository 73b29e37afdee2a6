package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/trackbot/internal/bot"
	"github.com/desertthunder/trackbot/internal/chat"
	"github.com/desertthunder/trackbot/internal/confirm"
	"github.com/desertthunder/trackbot/internal/dedup"
	"github.com/desertthunder/trackbot/internal/models"
	"github.com/desertthunder/trackbot/internal/repositories"
	"github.com/desertthunder/trackbot/internal/server"
	"github.com/desertthunder/trackbot/internal/services"
	"github.com/desertthunder/trackbot/internal/shared"
	"github.com/desertthunder/trackbot/internal/ui"
	"github.com/desertthunder/trackbot/internal/watcher"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// newBot wires the queue, dedup gate, reconciler and confirmation handlers to transport.
func (r *Runner) newBot(transport chat.Transport) (*bot.Bot, *bot.Maintenance, error) {
	if err := r.config.Validate(); err != nil {
		return nil, nil, err
	}

	rec, err := r.reconciler()
	if err != nil {
		return nil, nil, err
	}

	db, err := r.database()
	if err != nil {
		return nil, nil, err
	}

	cfg := r.config.Bot
	jobs := repositories.NewJobRepository(db)
	markers := repositories.NewMarkerRepository(db)
	gate := dedup.NewGate(markers, r.metrics).WithTTLs(cfg.MessageTTL, cfg.LinkTTL)

	registry := confirm.NewRegistry()
	registry.Register(models.JobConfirmAddToPlaylist, confirm.ConfirmAddToPlaylist(rec, r.logger))

	scheduler := confirm.NewScheduler(jobs, transport, r.logger, r.metrics).WithTimings(cfg.PollInterval, cfg.StaleAfter)
	answerer := confirm.NewAnswerer(jobs, registry, transport, cfg.Name, r.logger, r.metrics)
	links := watcher.New(gate, rec, jobs, transport, watcher.Options{
		Confirm: cfg.Confirm,
		Logger:  r.logger,
		Metrics: r.metrics,
	})

	r.logger.Info("bot ready",
		"transport", transport.Name(), "playlist", cfg.PlaylistID, "confirm", cfg.Confirm,
		"handlers", registry.Types())

	return bot.New(transport, scheduler, answerer, links, r.logger), bot.NewMaintenance(markers, cfg.MaxUptime, r.logger), nil
}

// Serve runs the bot behind the webhook transport together with the HTTP server.
//
// Returns an error wrapping [shared.ErrUptimeExceeded] once bot.max_uptime has passed.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	chatConfig := r.config.Chat
	if chatConfig.WebhookURL == "" {
		return fmt.Errorf("%w: chat.webhook_url is required", shared.ErrInvalidConfig)
	}

	out := services.NewWebhookService(chatConfig.WebhookURL, chatConfig.Secret, r.httpClient)
	transport := chat.NewWebhook(out, chatConfig.Secret, chat.DefaultBuffer, r.logger)
	defer transport.Close()

	b, maintenance, err := r.newBot(transport)
	if err != nil {
		return err
	}

	router := server.NewBotRouter(r.logger, server.Routes{
		Webhook: transport,
		Metrics: r.metrics.Handler(),
		Health:  r.db.PingContext,
	})
	srv := server.New(r.config.Server.Addr(), router, r.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return b.Run(gctx) })
	g.Go(func() error { return maintenance.Run(gctx) })

	r.logger.Info("serving", "addr", srv.Addr())
	return g.Wait()
}

// Console runs the bot against the terminal console. Logs go to --log-file while the console is open.
func (r *Runner) Console(ctx context.Context, cmd *cli.Command) error {
	fileLogger, f, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer f.Close()
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())
	r.logger = fileLogger

	console := ui.NewConsole(os.Getenv("USER"), chat.DefaultBuffer)

	b, maintenance, err := r.newBot(console)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	title := fmt.Sprintf("%s · playlist %s", r.config.Bot.Name, r.config.Bot.PlaylistID)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(gctx) })
	g.Go(func() error { return maintenance.Run(gctx) })
	g.Go(func() error {
		defer cancel()
		return console.Run(gctx, title)
	})

	return g.Wait()
}
