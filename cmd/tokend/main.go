// Command tokend serves the goToken engine over HTTP.
//
// Usage:
//
//	tokend -config tokend.yaml
//
// The file carries both the engine settings (token, store, rate_limit,
// audit, metrics) and the server settings (server, backend, log, users,
// archive). Environment variables override both; a .env file is loaded first
// when present.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/auditarchive"
	"github.com/MrEthical07/goToken/credentials"
	"github.com/MrEthical07/goToken/internal/logging"
	"github.com/MrEthical07/goToken/store"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", os.Getenv("TOKEND_CONFIG"), "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "tokend: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := goToken.LoadConfig(configPath)
	if err != nil {
		return err
	}
	sc, err := loadServerConfig(configPath)
	if err != nil {
		return err
	}

	log := newLogger(os.Stderr, sc.Log.Level, sc.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := openBackend(ctx, sc, log)
	if err != nil {
		return err
	}
	defer deps.close()

	builder := goToken.New().WithConfig(cfg).WithLogger(log)
	if deps.redis != nil {
		builder = builder.WithRedis(deps.redis)
	}
	if deps.store != nil {
		builder = builder.WithStore(deps.store)
	}

	users := credentials.NewStaticUsers()
	hashes, err := sc.userHashes()
	if err != nil {
		return err
	}
	for id, hash := range hashes {
		users.AddHash(id, hash)
	}
	validator, err := credentials.NewValidator(users)
	if err != nil {
		return err
	}
	builder = builder.WithCredentialValidator(validator)

	var archive *auditarchive.S3Sink
	if sc.Archive.Bucket != "" {
		archive, err = newArchive(ctx, sc, log)
		if err != nil {
			return err
		}
		builder = builder.WithAuditSink(archive)
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	srv := &http.Server{
		Addr:              sc.Server.Listen,
		Handler:           newHandler(engine, log, sc.Server.TrustForwarded),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", sc.Server.Listen, "backend", sc.Backend.Kind)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			engine.Close()
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sc.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}

	engine.Close()
	if archive != nil {
		if err := archive.Close(shutdownCtx); err != nil {
			log.Error("audit archive flush", "error", err)
		}
	}
	return nil
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logging.ParseLevel(level)}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

type backendDeps struct {
	store store.Store
	redis redis.UniversalClient
	db    *sql.DB
}

func (d backendDeps) close() {
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
}

// openBackend connects the configured revocation store. A Redis address is
// also honored for the memory and postgres backends so rate limits can run.
func openBackend(ctx context.Context, sc serverConfig, log *slog.Logger) (backendDeps, error) {
	var deps backendDeps
	if sc.Backend.RedisAddr != "" {
		deps.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{sc.Backend.RedisAddr},
			Password: sc.Backend.RedisPassword,
			DB:       sc.Backend.RedisDB,
		})
		if err := deps.redis.Ping(ctx).Err(); err != nil {
			deps.close()
			return backendDeps{}, fmt.Errorf("redis ping: %w", err)
		}
	}

	switch sc.Backend.Kind {
	case backendPostgres:
		db, err := store.OpenPostgres(sc.Backend.PostgresDSN)
		if err != nil {
			deps.close()
			return backendDeps{}, err
		}
		deps.db = db
		if sc.Backend.Migrate {
			if err := store.MigratePostgres(ctx, db); err != nil {
				deps.close()
				return backendDeps{}, err
			}
			log.Info("postgres migrations applied")
		}
		deps.store = store.NewPostgresStore(db)
	case backendMemory:
		log.Warn("memory backend: revocations are lost on restart")
		deps.store = store.NewMemoryStore()
	}
	return deps, nil
}

func newArchive(ctx context.Context, sc serverConfig, log *slog.Logger) (*auditarchive.S3Sink, error) {
	client, err := auditarchive.NewClient(ctx, auditarchive.ClientConfig{
		Region:    sc.Archive.Region,
		Endpoint:  sc.Archive.Endpoint,
		AccessKey: sc.Archive.AccessKey,
		SecretKey: sc.Archive.SecretKey,
		PathStyle: sc.Archive.PathStyle,
	})
	if err != nil {
		return nil, err
	}
	return auditarchive.NewS3Sink(client, auditarchive.Config{
		Bucket:        sc.Archive.Bucket,
		Prefix:        sc.Archive.Prefix,
		BatchSize:     sc.Archive.BatchSize,
		FlushInterval: sc.Archive.FlushInterval,
		Logger:        log,
	})
}
