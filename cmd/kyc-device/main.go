package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/satriahrh/kyc-voice/adapters/audio"
	"github.com/satriahrh/kyc-voice/domain/repositories"
	"github.com/satriahrh/kyc-voice/internal/device"
)

type options struct {
	server   string
	deviceID string
	secret   string
	token    string
	logLevel string
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "kyc-device",
		Short: "Remote microphone and speaker for kyc-voice",
		Long: "Connects to a kyc-voice server running in remote audio mode, plays each spoken prompt " +
			"and records the answer with the local audio tools.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.server, "server", envOr("KYC_SERVER_URL", "http://localhost:8080"), "kyc-voice server base URL")
	flags.StringVar(&opts.deviceID, "device-id", envOr("KYC_DEVICE_ID", "kyc-device-1"), "device ID")
	flags.StringVar(&opts.secret, "secret", os.Getenv("KYC_DEVICE_SECRET"), "device secret exchanged for a token")
	flags.StringVar(&opts.token, "token", os.Getenv("KYC_DEVICE_TOKEN"), "JWT token printed by the server; skips authentication")
	flags.StringVar(&opts.logLevel, "log-level", envOr("KYC_LOG_LEVEL", "info"), "log level")
	return cmd
}

func run(ctx context.Context, opts *options) error {
	level, err := zapcore.ParseLevel(opts.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	logger, err := zc.Build()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if opts.token == "" && opts.secret == "" {
		return fmt.Errorf("either --token or --secret is required")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := device.NewClient(opts.server, opts.deviceID, opts.secret,
		func(sampleRate int) (repositories.AudioOutput, error) {
			return audio.NewPlayer(audio.DefaultPlayers(sampleRate), logger)
		},
		func(sampleRate int, timeout time.Duration) (repositories.AudioInput, error) {
			seconds := max(int(timeout/time.Second), 1)
			return audio.NewRecorder(audio.DefaultRecorders(sampleRate, seconds), timeout, logger)
		},
		logger)

	token := opts.token
	if token == "" {
		if token, err = client.Authenticate(ctx); err != nil {
			logger.Error("Authentication failed", zap.Error(err))
			return err
		}
	}

	if err := client.Run(ctx, token); err != nil {
		logger.Error("Device stopped", zap.Error(err))
		return err
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
