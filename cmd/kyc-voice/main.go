package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/satriahrh/kyc-voice/adapters"
	"github.com/satriahrh/kyc-voice/adapters/audio"
	"github.com/satriahrh/kyc-voice/adapters/console"
	"github.com/satriahrh/kyc-voice/adapters/jsonfile"
	"github.com/satriahrh/kyc-voice/adapters/llm"
	"github.com/satriahrh/kyc-voice/adapters/mongo"
	"github.com/satriahrh/kyc-voice/adapters/stt"
	"github.com/satriahrh/kyc-voice/adapters/tts"
	"github.com/satriahrh/kyc-voice/adapters/voice"
	"github.com/satriahrh/kyc-voice/domain/entities"
	"github.com/satriahrh/kyc-voice/domain/repositories"
	"github.com/satriahrh/kyc-voice/domain/validation"
	"github.com/satriahrh/kyc-voice/internal/api"
	"github.com/satriahrh/kyc-voice/internal/auth"
	"github.com/satriahrh/kyc-voice/internal/config"
	"github.com/satriahrh/kyc-voice/internal/websocket"
	"github.com/satriahrh/kyc-voice/usecase"
)

const (
	exitDone    = 0
	exitAborted = 1
	exitError   = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return exitError
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return exitError
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// cleanups run in reverse order once the session ends
	var cleanups []func()
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	prompter, cleanup, err := newPrompter(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to set up audio", zap.String("mode", string(cfg.AudioMode)), zap.Error(err))
		return exitError
	}
	cleanups = append(cleanups, cleanup)

	var normalizer repositories.TranscriptNormalizer
	if cfg.NormalizeWithGemini {
		gemini, err := llm.NewGeminiNormalizer(ctx, cfg.Gemini(), logger)
		if err != nil {
			logger.Error("Failed to create Gemini normalizer", zap.Error(err))
			return exitError
		}
		normalizer = gemini
	}

	sink, cleanup, err := newRecordSink(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to set up record storage", zap.Error(err))
		return exitError
	}
	cleanups = append(cleanups, cleanup)

	specs := validation.DefaultFieldSpecs()
	for i := range specs {
		specs[i].MaxRetries = cfg.MaxRetries
	}

	collector := usecase.NewFieldCollector(prompter, normalizer, logger)
	service, err := usecase.NewKYCService(prompter, collector, sink, specs,
		usecase.SessionOptions{RequireConsent: cfg.RequireConsent}, logger)
	if err != nil {
		logger.Error("Failed to create KYC service", zap.Error(err))
		return exitError
	}

	record, session, err := service.RunSession(ctx)
	switch {
	case err == nil:
		logger.Info("KYC session complete",
			zap.String("session_id", session.ID),
			zap.String("sink", sink.Name()),
			zap.Time("timestamp", record.Timestamp))
		return exitDone
	case errors.Is(err, entities.ErrSessionAborted):
		logger.Warn("KYC session aborted", zap.String("session_id", session.ID), zap.Error(err))
		return exitAborted
	default:
		logger.Error("KYC session failed", zap.String("session_id", session.ID), zap.Error(err))
		return exitError
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid KYC_LOG_LEVEL: %w", err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	// stdout carries the dialogue transcript
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

func newPrompter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.Prompter, func(), error) {
	if cfg.AudioMode == config.AudioModeConsole {
		return console.NewPrompter(os.Stdin, os.Stdout), func() {}, nil
	}

	speech, err := tts.NewElevenLabsTTS(cfg.ElevenLabs(), logger)
	if err != nil {
		return nil, nil, err
	}

	recognizer, err := stt.NewGoogleSpeechToText(ctx, logger)
	if err != nil {
		return nil, nil, err
	}
	audioConfig := repositories.AudioConfig{
		SampleRate: cfg.SampleRate,
		Encoding:   "LINEAR16",
		Language:   cfg.Language,
	}
	captureTimeout := cfg.ListenTimeout + cfg.PhraseLimit

	var (
		output  repositories.AudioOutput
		input   repositories.AudioInput
		cleanup = func() { recognizer.Close() }
	)

	switch cfg.AudioMode {
	case config.AudioModeLocal:
		player, err := audio.NewPlayer(audio.DefaultPlayers(speech.SampleRate()), logger)
		if err != nil {
			recognizer.Close()
			return nil, nil, err
		}
		recorder, err := audio.NewRecorder(
			audio.DefaultRecorders(cfg.SampleRate, int(cfg.PhraseLimit/time.Second)),
			captureTimeout, logger)
		if err != nil {
			recognizer.Close()
			return nil, nil, err
		}
		output, input = player, recorder

	case config.AudioModeRemote:
		bridge := websocket.NewBridge(cfg.SampleRate, captureTimeout, logger)
		shutdown, err := startServer(cfg, bridge, logger)
		if err != nil {
			recognizer.Close()
			return nil, nil, err
		}
		output, input = bridge, bridge
		cleanup = func() {
			shutdown()
			recognizer.Close()
		}
	}

	return voice.NewPrompter(speech, output, input, recognizer, audioConfig, os.Stdout, logger), cleanup, nil
}

// startServer serves the device endpoints and returns a graceful shutdown func
func startServer(cfg *config.Config, bridge *websocket.Bridge, logger *zap.Logger) (func(), error) {
	authenticator, err := auth.NewAuthenticator([]byte(cfg.JWTSecret), cfg.DeviceID, cfg.DeviceSecret)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := authenticator.GenerateDeviceToken(cfg.DeviceID)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("request", zap.String("uri", v.URI), zap.Int("status", v.Status))
			return nil
		},
	}))

	api.InitRoutes(e, bridge, authenticator, logger)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Device server stopped", zap.Error(err))
		}
	}()

	logger.Info("Waiting for audio device",
		zap.String("port", cfg.Port),
		zap.String("device_id", cfg.DeviceID),
		zap.Time("token_expires_at", expiresAt))
	printDeviceToken(os.Stderr, cfg, token, expiresAt)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			logger.Warn("Device server forced to shutdown", zap.Error(err))
		}
	}, nil
}

// printDeviceToken tells the operator how to connect the device. The token
// stays out of the structured logs.
func printDeviceToken(w io.Writer, cfg *config.Config, token string, expiresAt time.Time) {
	fmt.Fprintf(w, "Device %s can connect to ws://<host>:%s/ws until %s with\n  kyc-device --token %s\n",
		cfg.DeviceID, cfg.Port, expiresAt.Format(time.RFC3339), token)
}

func newRecordSink(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.RecordSink, func(), error) {
	primary := jsonfile.NewRecordWriter(cfg.OutputFile, logger)
	if cfg.MongoURI == "" {
		return primary, func() {}, nil
	}

	client, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	if err != nil {
		return nil, nil, err
	}
	closeClient := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Close(ctx)
	}

	records := mongo.NewRecordRepository(client.Database, logger)
	if err := records.EnsureIndexes(ctx); err != nil {
		closeClient()
		return nil, nil, err
	}
	return adapters.NewRecordSink(primary, logger, records), closeClient, nil
}
