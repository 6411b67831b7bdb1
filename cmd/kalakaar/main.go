package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sjawhar/kalakaar/internal/auth"
	"github.com/sjawhar/kalakaar/internal/config"
	"github.com/sjawhar/kalakaar/internal/content"
	"github.com/sjawhar/kalakaar/internal/imaging"
	"github.com/sjawhar/kalakaar/internal/logging"
	"github.com/sjawhar/kalakaar/internal/server"
	"github.com/sjawhar/kalakaar/internal/session"
	"github.com/sjawhar/kalakaar/internal/storage"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, warnings, err := config.Load(*configPath)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	log, logCloser := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFile)
	defer func() { _ = logCloser.Close() }()
	log.Info().Str("version", version).Msg("kalakaar starting")
	for _, w := range warnings {
		log.Warn().Msg(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer func() { _ = store.Close() }()

	files, err := newBlobStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.BlobBackend).Msg("failed to init blob storage")
	}

	reg := buildRegistry(ctx, cfg, files, log)
	hub := server.NewHub(log)

	mgr := session.NewManager(session.Deps{
		Store:      store,
		STT:        reg.stt,
		Translator: reg.translator,
		Voice:      reg.voice,
		Events:     hub,
		Languages: session.Languages{
			Speech: cfg.SpeechLanguage,
			Source: cfg.SourceLanguage,
			Target: cfg.TargetLanguage,
		},
		Logger: log,
	})

	var assembler *content.Assembler
	if reg.text != nil {
		assembler = content.NewAssembler(reg.text, cfg.TextModel, log)
	}
	enhancer := imaging.NewEnhancer(reg.editor, reg.generator, files, cfg.MaxUploadBytes, log)

	secret := cfg.JWTSecret
	if secret == "" {
		secret, err = auth.RandomSecret()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to generate jwt secret")
		}
	}
	issuer := auth.NewIssuer(secret, cfg.ParsedJWTTTL())

	var fallback auth.Fallback
	if cfg.DemoFallback {
		// Nobody logs in as the demo user; its password is random.
		hash, err := auth.HashPassword(uuid.NewString())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to hash demo password")
		}
		demo, err := store.EnsureDemoUser(ctx, hash)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create demo user")
		}
		log.Info().Int64("user_id", demo.ID).Msg("anonymous requests use the demo user")
		fallback = func(context.Context) (int64, error) { return demo.ID, nil }
	}

	handler := server.NewRouter(server.Deps{
		Sessions:       mgr,
		Store:          store,
		Blob:           files,
		Assembler:      assembler,
		Enhancer:       enhancer,
		Issuer:         issuer,
		Fallback:       fallback,
		Hub:            hub,
		Exports:        storage.NewWriter(cfg.ExportDir),
		Adapters:       reg.available,
		Warnings:       warnings,
		CORSOrigins:    cfg.CORSOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		HTTPClient:     &http.Client{Timeout: cfg.ParsedAdapterTimeout()},
		Logger:         log.With().Str("component", "http").Logger(),
	})
	srv := server.NewServer(cfg.ListenAddr, handler, log.With().Str("component", "http").Logger())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("kalakaar stopped")
}
