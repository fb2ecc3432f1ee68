package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pyama86/itdesk/config"
	"github.com/pyama86/itdesk/domain/infra"
	"github.com/pyama86/itdesk/handler"
	"github.com/pyama86/itdesk/trigger"
)

func init() {
	// .env は無くてもよい
	_ = godotenv.Load()

	requiredEnv := []string{
		"GOOGLE_CLIENT_ID",
		"SESSION_SECRET",
	}
	for _, env := range requiredEnv {
		if os.Getenv(env) == "" {
			slog.Error("required environment variable not set", slog.String("env", env))
			os.Exit(1)
		}
	}
}

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ds, err := infra.NewDatastore()
	if err != nil {
		return err
	}
	if c, ok := ds.(io.Closer); ok {
		defer c.Close()
	}
	for _, email := range cfg.AdminEmails {
		if err := ds.AddAllowedAdmin(ctx, email); err != nil {
			return err
		}
	}

	bus, err := infra.NewEventBus()
	if err != nil {
		return err
	}
	if c, ok := bus.(io.Closer); ok {
		defer c.Close()
	}

	classifier, err := infra.NewClassifier()
	if err != nil {
		return err
	}
	if classifier == nil {
		slog.Warn("no classifier configured, questions are filed under その他")
	}

	var mailer infra.Mailer
	sg, err := infra.NewSendGrid()
	if err != nil {
		return err
	}
	if sg != nil {
		mailer = sg
	} else {
		slog.Warn("SENDGRID_API_KEY is not set, emails are disabled")
	}

	d := trigger.NewDispatcher(bus, cfg.TriggerTimeout, cfg.TriggerMaxAttempts, cfg.DispatchConcurrency)
	trigger.New(ds, classifier, mailer, infra.NewSlackAPI(), cfg.SlackChannel, cfg.DeskName, cfg.BaseURL).Register(d)

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		if err := d.Run(ctx); err != nil {
			slog.Error("dispatcher stopped", slog.Any("err", err))
		}
	}()

	// 取りこぼしたイベントの再送
	c, err := trigger.NewReconciler(ds, bus, cfg.ReconcileGrace).Start(ctx, cfg.ReconcileSchedule)
	if err != nil {
		return err
	}
	defer c.Stop()

	h := handler.NewHandler(cfg, ds, bus, infra.NewGoogleVerifier(cfg.GoogleClientID))
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", slog.Any("err", err))
		}
	}()

	if err := h.Handle(); err != nil {
		return err
	}
	<-ctx.Done()
	<-dispatched
	return nil
}
