package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"blueprint/internal/archive"
	"blueprint/internal/config"
	"blueprint/internal/templatestore"
)

func initTemplates(ctx context.Context, cfg *config.Config, logger *zap.Logger) (templatestore.Store, func() error, error) {
	tc := cfg.Templates
	switch tc.Backend {
	case "file":
		s, err := templatestore.NewFileStore(ctx, tc.Dir)
		if err != nil {
			return nil, nil, err
		}
		if tc.SeedBuiltin {
			if err := seedMissing(ctx, s); err != nil {
				return nil, nil, err
			}
		}
		logger.Info("template store: file", zap.String("dir", tc.Dir))
		return s, noClose, nil

	case "postgres":
		pg, err := templatestore.NewPostgres(ctx, tc.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("init template store: %w", err)
		}
		if tc.SeedBuiltin {
			if err := seedMissing(ctx, pg); err != nil {
				_ = pg.Close()
				return nil, nil, err
			}
		}
		logger.Info("template store: postgres", zap.Int("cache_size", tc.CacheSize), zap.Duration("cache_ttl", tc.CacheTTL))
		return templatestore.NewCachedStore(pg, tc.CacheSize, tc.CacheTTL), pg.Close, nil

	default:
		s := templatestore.NewMemoryStore()
		if tc.SeedBuiltin {
			if err := templatestore.Seed(ctx, s, templatestore.Builtin()); err != nil {
				return nil, nil, err
			}
		}
		logger.Info("template store: in-memory")
		return s, noClose, nil
	}
}

// seedMissing adds built-in templates whose ids the store does not hold,
// leaving edited copies untouched.
func seedMissing(ctx context.Context, s templatestore.Store) error {
	for _, t := range templatestore.Builtin() {
		if _, err := s.GetTemplate(ctx, t.ID); err == nil {
			continue
		}
		if err := s.PutTemplate(ctx, t); err != nil {
			return fmt.Errorf("seed template %s: %w", t.ID, err)
		}
	}
	return nil
}

func initArchive(cfg *config.Config, logger *zap.Logger) (*archive.Archive, error) {
	ac := cfg.Archive
	if ac.Backend != "s3" {
		logger.Info("bundle archive: in-memory")
		return archive.New(archive.NewMemoryStore()), nil
	}
	s3, err := archive.NewS3Store(archive.S3Config{
		Endpoint:  ac.Endpoint,
		Region:    ac.Region,
		AccessKey: ac.AccessKey,
		SecretKey: ac.SecretKey,
		Bucket:    ac.Bucket,
		UseSSL:    ac.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bundle s3 store: %w", err)
	}
	logger.Info("bundle archive: s3", zap.String("bucket", ac.Bucket), zap.String("endpoint", ac.Endpoint))
	return archive.New(s3), nil
}

func noClose() error { return nil }
