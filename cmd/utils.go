package cmd

import (
	"context"
	"flag"
	"fmt"
	"hole-detector/internal/messaging"
	"hole-detector/internal/storage"
	"log"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CreateStorage returns an S3 provider when an endpoint or region is
// configured, and a directory-backed provider under root otherwise. The
// archive bucket is created if it does not exist.
func CreateStorage(ctx context.Context, root string, s3Cfg storage.S3ProviderConfig, bucket string) (storage.Provider, error) {
	var provider storage.Provider
	if s3Cfg.S3EndpointURL != "" || s3Cfg.S3Region != "" {
		slog.Info("using s3 archive storage", "endpoint", s3Cfg.S3EndpointURL, "region", s3Cfg.S3Region, "bucket", bucket)
		s3p, err := storage.NewS3Provider(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("error creating s3 provider: %w", err)
		}
		provider = s3p
	} else {
		dir := filepath.Join(root, "storage")
		slog.Info("using local archive storage", "dir", dir, "bucket", bucket)
		local, err := storage.NewLocalProvider(dir)
		if err != nil {
			return nil, fmt.Errorf("error creating local provider: %w", err)
		}
		provider = local
	}

	if err := provider.CreateBucket(ctx, bucket); err != nil {
		return nil, fmt.Errorf("error creating archive bucket: %w", err)
	}

	return provider, nil
}

// CreateEventQueue connects a publisher to RabbitMQ when a url is given and
// returns a nil reciever, leaving the queue to outside consumers. Without a
// url an in-memory queue is used and its events are drained to the log.
func CreateEventQueue(rabbitMQURL string) (messaging.Publisher, messaging.Reciever, error) {
	if rabbitMQURL == "" {
		queue := messaging.NewInMemoryQueue()
		return queue, queue, nil
	}

	publisher, err := messaging.NewRabbitMQPublisher(rabbitMQURL)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating rabbitmq publisher: %w", err)
	}

	return publisher, nil, nil
}
