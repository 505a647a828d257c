package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	artifactcache "iconresolve/internal/cache/artifact"
	"iconresolve/internal/config"
	artifactrepo "iconresolve/internal/repository/artifact"
	"iconresolve/internal/safeio"
)

// initStore picks the artifact origin: S3 when fully configured, Postgres
// when DATABASE_URL is set, the local file store otherwise. The origin is
// always fronted by the cache.
func initStore(ctx context.Context, cfg *config.Config, fsys *safeio.SafeFS, logger *slog.Logger) (*artifactcache.CachedStore, func() error, error) {
	s3Factory := newArtifactS3StoreFactory(cfg, logger)

	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		db, err := artifactrepo.OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize postgres artifact store: %w", err)
		}
		store, err := chooseArtifactStore(cfg, artifactrepo.NewPostgresStore(db), "postgres", s3Factory, logger)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, closeDB(db), nil
	}

	fileStore, err := artifactrepo.NewFileStore(fsys, cfg.Env)
	if err != nil {
		return nil, nil, err
	}
	store, err := chooseArtifactStore(cfg, fileStore, "file", s3Factory, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, func() error { return nil }, nil
}

func newArtifactS3StoreFactory(cfg *config.Config, logger *slog.Logger) func() (artifactrepo.Store, error) {
	return func() (artifactrepo.Store, error) {
		s3Cfg := artifactrepo.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		}
		s3Store, err := artifactrepo.NewS3Store(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize artifact s3 store: %w", err)
		}
		logger.Info("artifact store selected", "kind", "s3", "bucket", s3Cfg.Bucket, "endpoint", s3Cfg.Endpoint)
		return s3Store, nil
	}
}

func chooseArtifactStore(
	cfg *config.Config,
	fallback artifactrepo.Store,
	fallbackLabel string,
	s3Factory func() (artifactrepo.Store, error),
	logger *slog.Logger,
) (*artifactcache.CachedStore, error) {
	var origin artifactrepo.Store
	if cfg.Artifact.CanUseS3() {
		s3Store, err := s3Factory()
		if err != nil {
			return nil, err
		}
		origin = s3Store
	} else {
		if strings.TrimSpace(cfg.Artifact.Endpoint) != "" {
			logger.Warn("s3 config incomplete, using fallback store", "kind", fallbackLabel)
		} else {
			logger.Info("artifact store selected", "kind", fallbackLabel)
		}
		origin = fallback
	}
	if origin == nil {
		return nil, fmt.Errorf("artifact origin store is nil")
	}
	return artifactcache.NewCachedStore(origin, artifactcache.DefaultCacheConfig()), nil
}

func closeDB(db *sql.DB) func() error {
	return func() error { return db.Close() }
}
