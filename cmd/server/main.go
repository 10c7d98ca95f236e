package main

import (
	"context"
	"fmt"
	"hole-detector/cmd"
	"hole-detector/internal/api"
	"hole-detector/internal/core"
	"hole-detector/internal/database"
	"hole-detector/internal/messaging"
	"hole-detector/internal/storage"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	ort "github.com/yalue/onnxruntime_go"
)

type Config struct {
	Root     string `env:"ROOT" envDefault:"./hole-detector"`
	Port     int    `env:"PORT" envDefault:"8501"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DetectorType        string  `env:"DETECTOR_TYPE" envDefault:"onnx"`
	ModelPath           string  `env:"MODEL_PATH" envDefault:"./models/detection_model.onnx"`
	OnnxRuntimeDylib    string  `env:"ONNX_RUNTIME_DYLIB"`
	ModelInputSize      int     `env:"MODEL_INPUT_SIZE" envDefault:"640"`
	InferenceURL        string  `env:"INFERENCE_URL"`
	ConfidenceThreshold float32 `env:"CONFIDENCE_THRESHOLD" envDefault:"0.25"`
	IouThreshold        float32 `env:"IOU_THRESHOLD" envDefault:"0.7"`
	MaxUploadBytes      int64   `env:"MAX_UPLOAD_BYTES" envDefault:"104857600"`

	DatabaseURL string `env:"DATABASE_URL"`

	S3EndpointURL     string        `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string        `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string        `env:"AWS_REGION"`
	ArchiveBucket     string        `env:"ARCHIVE_BUCKET" envDefault:"archives"`
	ArchiveRetention  time.Duration `env:"ARCHIVE_RETENTION" envDefault:"1h"`

	RabbitMQURL string `env:"RABBITMQ_URL"`
}

func initLogging(cfg Config) *os.File {
	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating directory for log file: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(cfg.Root, "backend.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}

	out := io.MultiWriter(f, os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetOutput(out)
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: cmd.ParseLogLevel(cfg.LogLevel)})))

	return f
}

func loadDetector(cfg Config) (core.Detector, func()) {
	detectorType := core.DetectorType(cfg.DetectorType)

	cleanup := func() {}
	if detectorType == core.OnnxYolo {
		if cfg.OnnxRuntimeDylib == "" {
			log.Fatalf("ONNX_RUNTIME_DYLIB must be set for the onnx detector")
		}
		ort.SetSharedLibraryPath(cfg.OnnxRuntimeDylib)
		if err := ort.InitializeEnvironment(); err != nil {
			log.Fatalf("could not init ONNX Runtime: %v", err)
		}
		cleanup = func() {
			if err := ort.DestroyEnvironment(); err != nil {
				slog.Error("error destroying onnx env", "error", err)
			}
		}
	}

	detector, err := core.LoadDetector(detectorType, core.DetectorConfig{
		ModelPath:    cfg.ModelPath,
		InputSize:    cfg.ModelInputSize,
		IouThreshold: cfg.IouThreshold,
		InferenceURL: cfg.InferenceURL,
	})
	if err != nil {
		cleanup()
		log.Fatalf("could not load hole detection model: %v", err)
	}

	return detector, func() {
		detector.Release()
		cleanup()
	}
}

func createServer(service *api.DetectionService, port int) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	service.AddRoutes(r)

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}

func main() {
	cmd.LoadEnvFile()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	logFile := initLogging(cfg)
	defer logFile.Close()

	slog.Info("starting hole detector", "root", cfg.Root, "port", cfg.Port, "detector_type", cfg.DetectorType, "model_path", cfg.ModelPath, "confidence_threshold", cfg.ConfidenceThreshold)

	detector, releaseDetector := loadDetector(cfg)
	defer releaseDetector()

	db, err := database.NewDatabase(cfg.Root, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	archives, err := cmd.CreateStorage(context.Background(), cfg.Root, storage.S3ProviderConfig{
		S3EndpointURL:     cfg.S3EndpointURL,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
		S3Region:          cfg.S3Region,
	}, cfg.ArchiveBucket)
	if err != nil {
		log.Fatalf("failed to initialize archive storage: %v", err)
	}

	publisher, reciever, err := cmd.CreateEventQueue(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("failed to initialize event queue: %v", err)
	}

	pipeline := core.NewPipeline(detector, cfg.ConfidenceThreshold)
	service := api.NewDetectionService(db, archives, publisher, pipeline, cfg.ArchiveBucket, cfg.MaxUploadBytes)
	server := createServer(service, cfg.Port)

	janitor := core.NewArchiveJanitor(db, archives, cfg.ArchiveBucket, cfg.ArchiveRetention)
	go janitor.Start()

	drainCtx, stopDrain := context.WithCancel(context.Background())
	eventsDone := make(chan struct{})
	if reciever != nil {
		go func() {
			messaging.DrainBatchEvents(drainCtx, reciever)
			close(eventsDone)
		}()
	} else {
		close(eventsDone)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("server forced to shutdown: %v", err)
		}
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("could not listen on %d: %v", cfg.Port, err)
	}

	janitor.Stop()
	stopDrain()
	<-eventsDone

	publisher.Close()
	if reciever != nil {
		reciever.Close()
	}

	slog.Info("server stopped")
}
