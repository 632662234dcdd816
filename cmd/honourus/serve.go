package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"honourus/internal/analytics"
	"honourus/internal/app"
	"honourus/internal/config"
	"honourus/internal/engine"
	"honourus/internal/integrations"
	"honourus/internal/jobs"
	"honourus/internal/notify"
	"honourus/internal/repo"
	"honourus/internal/server"
)

const shutdownTimeout = 5 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("HONOURUS_JWT_SECRET (or --jwt-secret) is required for bearer auth")
			}
			providers, err := integrations.LoadProviders()
			if err != nil {
				return fmt.Errorf("load oauth providers: %w", err)
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				cfg, err := app.ResolvePolicy(ctx, r, viper.GetString("policy"))
				if err != nil {
					return err
				}
				return serve(ctx, r, cfg, providers, secret)
			})
		},
	}
	flags := cmd.Flags()
	flags.String("addr", "127.0.0.1:8080", "listen address")
	flags.String("base-path", server.DefaultBasePath, "API base path")
	flags.String("jwt-secret", "", "HS256 signing secret")
	flags.Duration("token-ttl", server.DefaultTokenTTL, "access token lifetime")
	flags.String("purge-schedule", jobs.DefaultPurgeSchedule, "cron schedule for expired OAuth state cleanup")
	flags.String("policy", "", "policy file to import before serving")
	for _, name := range []string{"addr", "base-path", "jwt-secret", "token-ttl", "purge-schedule", "policy"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
	return cmd
}

func serve(ctx context.Context, r repo.Repo, cfg *config.Config, providers integrations.Providers, secret string) error {
	e := engine.New(r.DB, r.Dialect, cfg)
	oauth := integrations.Client{
		Repo:      r,
		Events:    e.Events,
		Providers: providers,
		Policy:    func() *config.Config { return cfg },
	}
	handler, err := server.New(server.Config{
		Engine:       e,
		Analytics:    analytics.New(r),
		Integrations: oauth,
		BasePath:     viper.GetString("base-path"),
		Auth: server.AuthConfig{
			JWTSecret: secret,
			TokenTTL:  viper.GetDuration("token-ttl"),
		},
	})
	if err != nil {
		return err
	}

	scheduler := jobs.NewScheduler(oauth)
	if err := scheduler.Start(ctx, viper.GetString("purge-schedule")); err != nil {
		return err
	}
	notifier := notify.New(r, cfg.Webhooks)
	notifier.Start(ctx)

	addr := viper.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		log.Info("shutting down")
		scheduler.Stop()
		notifier.Stop()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.WithError(err).Error("http shutdown")
		}
	}()
	log.WithFields(log.Fields{
		"addr":      addr,
		"base_path": viper.GetString("base-path"),
		"award":     cfg.Credits.CompletionAward,
	}).Info("serving Honourus API (OpenAPI at {base}/openapi.json, Swagger UI at /docs)")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		scheduler.Stop()
		notifier.Stop()
		return err
	}
	<-stopped
	return nil
}
