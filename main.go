package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/fragmede/astroshare/internal/api"
	"github.com/fragmede/astroshare/internal/cli"
	"github.com/fragmede/astroshare/internal/config"
	"github.com/fragmede/astroshare/internal/idp"
	"github.com/fragmede/astroshare/internal/logging"
	"github.com/fragmede/astroshare/internal/session"
	"github.com/fragmede/astroshare/internal/store"
	"github.com/fragmede/astroshare/internal/ui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	log, logFile, err := logging.Open(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logFile.Close()

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	client := api.NewClient(cfg.APIBaseURL,
		api.WithTokenSource(session.StoredTokens(db)),
		api.WithLogger(log),
		api.WithTimeout(cfg.RequestTimeout),
		api.WithConcurrency(cfg.MaxConcurrent),
	)
	sessions := session.New(client, db,
		session.WithAssetBaseURL(cfg.AssetBaseURL),
		session.WithLogger(log),
	)
	if err := sessions.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("restoring session")
	}

	if len(args) > 0 {
		return runCommand(ctx, cfg, sessions, log, args)
	}

	app := ui.NewApp(cfg, client, db, sessions, log)
	defer app.Close()
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	app.SetProgram(p)
	_, err = p.Run()
	return err
}

func runCommand(ctx context.Context, cfg config.Config, sessions *session.Manager, log zerolog.Logger, args []string) error {
	if args[0] == "whoami" {
		refreshCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		if err := sessions.RefreshUserData(refreshCtx); err != nil {
			log.Warn().Err(err).Msg("refreshing user data")
		}
		cancel()
	}

	provider := idp.Select(cfg.GoogleCredential, idp.GoogleConfig{
		Issuer:       cfg.GoogleIssuer,
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
	}, devicePrompt(os.Stderr), log)

	return cli.New(sessions, provider, os.Stdin, os.Stdout, log).Run(ctx, args)
}

func devicePrompt(w io.Writer) func(idp.DevicePrompt) {
	return func(p idp.DevicePrompt) {
		fmt.Fprintf(w, "To sign in with Google, open %s and enter code %s\n", p.VerificationURI, p.UserCode)
	}
}
