// Command signkitd serves the signing REST API over a PostgreSQL gateway and
// an S3-compatible blob store.
//
// Configuration is environment-driven:
//
//	SIGNKIT_ADDR    listen address (default :8080)
//	DATABASE_URL    PostgreSQL DSN (required)
//	S3_BUCKET       blob bucket (required)
//	S3_REGION       bucket region
//	S3_ENDPOINT     optional MinIO/S3-compatible endpoint
//	S3_ACCESS_KEY   optional static credentials
//	S3_SECRET_KEY
//	SIGNKIT_STAMP   "1" to stamp flattened images with the signing date
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wudi/signkit/httpapi"
	"github.com/wudi/signkit/service"
	"github.com/wudi/signkit/store/pgstore"
	"github.com/wudi/signkit/store/s3blob"
)

type config struct {
	addr  string
	dsn   string
	s3    s3blob.Config
	stamp bool
}

func loadConfig() (config, error) {
	cfg := config{
		addr: envDefault("SIGNKIT_ADDR", ":8080"),
		dsn:  os.Getenv("DATABASE_URL"),
		s3: s3blob.Config{
			Region:    os.Getenv("S3_REGION"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Bucket:    os.Getenv("S3_BUCKET"),
		},
		stamp: os.Getenv("SIGNKIT_STAMP") == "1",
	}
	if cfg.dsn == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}
	if cfg.s3.Bucket == "" {
		return cfg, errors.New("S3_BUCKET is required")
	}
	return cfg, nil
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "signkitd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := pgstore.Migrate(ctx, cfg.dsn); err != nil {
		return err
	}
	store, err := pgstore.Connect(ctx, cfg.dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	blobs, err := s3blob.New(ctx, cfg.s3)
	if err != nil {
		return err
	}

	opts := []service.Option{service.WithLogger(log)}
	if cfg.stamp {
		opts = append(opts, service.WithStamp(true))
	}
	svc, err := service.New(store, blobs, blobs, opts...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.addr,
		Handler:           httpapi.New(svc, store, log).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	slog.Info("signkitd listening", "addr", cfg.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
