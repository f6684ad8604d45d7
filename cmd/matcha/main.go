package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adapthttp "matcha/internal/adapter/http"
	"matcha/internal/adapter/memory"
	"matcha/internal/adapter/postgres"
	"matcha/internal/app"
	"matcha/internal/config"
	"matcha/internal/domain"
	"matcha/internal/image"
	"matcha/internal/logging"
	"matcha/internal/mail"
	"matcha/internal/storage"
	"matcha/internal/token"
)

// mainImageBound caps the longer edge of stored photo renditions.
const mainImageBound = 1280

// repositories is what the services need from a storage backend.
type repositories interface {
	domain.UserRepository
	domain.ProfileRepository
	domain.ActionTokenRepository
	domain.PhotoRepository
}

func main() {
	cfg := config.Load()
	log := logging.New()

	if cfg.JWTSecretIsDefault {
		log.Warn("JWT_SECRET not set, using the development fallback; do not run this in production")
	}

	var repos repositories
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			log.Error("db open", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		repos = db
	} else {
		log.Warn("DATABASE_URL not set, using the in-memory store; data will not survive a restart")
		repos = memory.New()
	}

	store, err := storage.NewDisk(cfg.UploadDir, log)
	if err != nil {
		log.Error("upload dir", "error", err)
		os.Exit(1)
	}

	var mailer mail.Mailer = mail.NewLog(log)
	if os.Getenv("SMTP_HOST") != "" {
		mailer = mail.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	}

	authSvc := app.NewAuthService(repos, repos, mailer, log, cfg.FrontendURL)
	profileSvc := app.NewProfileService(repos, repos)
	photoSvc := app.NewPhotoService(repos, store, image.NewResizer(mainImageBound), log)
	codec := token.NewCodec(cfg.JWTSecret, token.CredentialTTL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sso *adapthttp.SSO
	if cfg.SSOEnabled() {
		sso, err = adapthttp.NewSSO(ctx, cfg)
		if err != nil {
			log.Error("oidc discovery", "error", err)
			os.Exit(1)
		}
		log.Info("sso enabled", "issuer", cfg.OIDCIssuer)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           adapthttp.New(authSvc, profileSvc, photoSvc, codec, sso, cfg, log).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}
}
