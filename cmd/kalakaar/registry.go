package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/api/drive/v3"

	"github.com/sjawhar/kalakaar/internal/blob"
	"github.com/sjawhar/kalakaar/internal/config"
	"github.com/sjawhar/kalakaar/internal/gcloud"
	"github.com/sjawhar/kalakaar/internal/imaging"
	"github.com/sjawhar/kalakaar/internal/llm"
	"github.com/sjawhar/kalakaar/internal/session"
	"github.com/sjawhar/kalakaar/internal/transcribe"
	"github.com/sjawhar/kalakaar/internal/translate"
	"github.com/sjawhar/kalakaar/internal/voice"
)

// registry holds every configured external adapter. Unconfigured adapters
// stay nil and the features that need them report unavailable.
type registry struct {
	stt        session.Transcriber
	translator session.Translator
	voice      session.PromptVoice
	text       llm.Client
	editor     imaging.BackgroundEditor
	generator  imaging.Generator
	available  map[string]bool
}

func buildRegistry(ctx context.Context, cfg config.Config, files blob.Store, log zerolog.Logger) registry {
	timeout := cfg.ParsedAdapterTimeout()
	reg := registry{available: map[string]bool{}}

	gopts, err := gcloud.ClientOptions(ctx, cfg.GoogleAPIKey, cfg.GoogleCredentialsFile)
	if err != nil && !errors.Is(err, gcloud.ErrNotConfigured) {
		log.Warn().Err(err).Msg("google credentials unusable")
	}
	google := err == nil

	switch {
	case cfg.STTProvider == "deepgram" && cfg.DeepgramAPIKey != "":
		reg.stt = transcribe.NewDeepgram(cfg.DeepgramAPIKey, cfg.DeepgramModel, timeout)
	case cfg.STTProvider == "google" && google:
		if g, err := transcribe.NewGoogle(ctx, timeout, gopts...); err != nil {
			log.Warn().Err(err).Msg("speech-to-text unavailable")
		} else {
			reg.stt = g
		}
	}

	if google {
		if g, err := translate.NewGoogle(ctx, timeout, gopts...); err != nil {
			log.Warn().Err(err).Msg("translation unavailable")
		} else {
			reg.translator = g
		}

		if g, err := voice.NewGoogle(ctx, timeout, gopts...); err != nil {
			log.Warn().Err(err).Msg("text-to-speech unavailable")
		} else {
			reg.voice = voice.NewPromptRenderer(g, files, voices(cfg), 0)
		}
	}

	if client, err := newTextClient(cfg); err != nil {
		log.Warn().Err(err).Str("model", cfg.TextModel).Msg("text generation unavailable")
	} else {
		reg.text = client
	}

	if cfg.ClipdropAPIKey != "" {
		reg.editor = imaging.NewClipdrop(cfg.ClipdropAPIKey, timeout)
	}

	if gen, err := newImageGenerator(cfg); err != nil {
		log.Warn().Err(err).Str("model", cfg.ImageModel).Msg("image generation unavailable")
	} else {
		reg.generator = gen
	}

	reg.available["speech_to_text"] = reg.stt != nil
	reg.available["translation"] = reg.translator != nil
	reg.available["text_to_speech"] = reg.voice != nil
	reg.available["content_generation"] = reg.text != nil
	reg.available["image_enhancement"] = reg.editor != nil
	reg.available["image_generation"] = reg.generator != nil
	log.Info().Interface("adapters", reg.available).Msg("adapters configured")

	return reg
}

func voices(cfg config.Config) []voice.Voice {
	parsed := cfg.ParsedVoices()
	if len(parsed) == 0 {
		return voice.DefaultVoices
	}
	out := make([]voice.Voice, 0, len(parsed))
	for _, v := range parsed {
		out = append(out, voice.Voice{LanguageCode: v.LanguageCode, Name: v.Name})
	}
	return out
}

func newTextClient(cfg config.Config) (llm.Client, error) {
	provider, model, err := llm.ParseModel(cfg.TextModel)
	if err != nil {
		return nil, err
	}
	key := cfg.ProviderKey(provider)
	if key == "" {
		return nil, fmt.Errorf("no API key for provider %q", provider)
	}
	return llm.NewClient(provider, key, model, llm.WithMaxTokens(1024), llm.WithTemperature(0.7))
}

func newImageGenerator(cfg config.Config) (imaging.Generator, error) {
	provider, model, err := llm.ParseModel(cfg.ImageModel)
	if err != nil {
		return nil, err
	}
	key := cfg.ProviderKey(provider)
	if key == "" {
		return nil, fmt.Errorf("no API key for provider %q", provider)
	}
	return imaging.NewGenerator(provider, key, model, "")
}

func newBlobStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (blob.Store, error) {
	switch cfg.BlobBackend {
	case "s3":
		s, err := blob.NewS3(ctx, blob.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			Prefix:    cfg.S3Prefix,
			AccessKey: cfg.S3AccessKeyID,
			SecretKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		if err := s.HeadBucket(ctx); err != nil {
			log.Warn().Err(err).Str("bucket", cfg.S3Bucket).Msg("s3 bucket not reachable")
		}
		return s, nil
	case "gdrive":
		opts, err := gcloud.ClientOptions(ctx, "", cfg.GoogleCredentialsFile, drive.DriveFileScope)
		if err != nil {
			return nil, fmt.Errorf("drive credentials: %w", err)
		}
		d, err := blob.NewDrive(ctx, cfg.GDriveFolderID, cfg.PublicBaseURL, opts...)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return blob.NewLocal(cfg.DataDir, cfg.PublicBaseURL), nil
	}
}
