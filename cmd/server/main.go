package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"invoria/internal/api"
	"invoria/internal/app"
	"invoria/internal/app/maintenance"
	iauth "invoria/internal/auth"
	"invoria/internal/database"
	"invoria/internal/services"
	"invoria/pkg/logger"
	"invoria/pkg/mail"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("invoria-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	jwtService, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	googleService, err := iauth.NewGoogleService(cfg.Google.GoogleServiceConfig())
	if err != nil {
		return fmt.Errorf("initialise google service: %w", err)
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return fmt.Errorf("initialise mailer: %w", err)
	}

	userSvc := services.NewUserService(db)

	accountSvc, err := services.NewEmailAccountService(db, []byte(cfg.Security.EncryptionKey))
	if err != nil {
		return fmt.Errorf("initialise email account service: %w", err)
	}

	inviteOpts := []services.InviteOption{}
	if cfg.Invites.SendEmailOnCreate {
		inviteOpts = append(inviteOpts, services.WithInviteMailer(mailer))
	}
	inviteSvc := services.NewInviteService(db, services.InviteServiceConfig{
		BaseURL:       inviteBaseURL(cfg),
		DefaultExpiry: cfg.Invites.DefaultExpiry,
		TokenBytes:    cfg.Invites.TokenBytes,
	}, inviteOpts...)

	sweeper := maintenance.NewSweeper(inviteSvc, maintenance.WithSchedule(cfg.Invites.SweepInterval))
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	defer func() {
		<-sweeper.Stop().Done()
	}()

	router, err := api.NewRouter(db, cfg, api.Services{
		JWT:      jwtService,
		Google:   googleService,
		Users:    userSvc,
		Accounts: accountSvc,
		Invites:  inviteSvc,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("config path %q: %w", path, err)
		}
		if info.IsDir() {
			return app.LoadConfig(path)
		}
		return app.LoadConfig(filepath.Dir(path))
	}
}

// inviteBaseURL prefers the explicit invite base URL and falls back to the
// frontend origin, since invite links open in the browser client.
func inviteBaseURL(cfg *app.Config) string {
	if cfg.Invites.BaseURL != "" {
		return cfg.Invites.BaseURL
	}
	return cfg.Server.FrontendURL
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.Database.DatabaseOpenConfig())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to resolve database handle", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
