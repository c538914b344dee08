package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Backend selects which concrete Store implementation NewStore constructs.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendQdrant   Backend = "qdrant"
	BackendChromem  Backend = "chromem"
)

// Config is the union of settings needed to construct any backend. Only
// the fields relevant to the selected Backend are read.
type Config struct {
	Backend Backend

	PostgresDSN string

	QdrantHost           string
	QdrantPort           int
	QdrantUseTLS         bool
	QdrantAPIKey         string
	QdrantMaxMessageSize int

	ChromemPath string

	Dimension int
	MaxConns  int
}

// NewStore constructs the configured Store backend.
func NewStore(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case BackendPostgres, "":
		return NewPostgresStore(ctx, PostgresConfig{
			DSN:       cfg.PostgresDSN,
			MaxConns:  cfg.MaxConns,
			Dimension: cfg.Dimension,
		}, logger)
	case BackendQdrant:
		return NewQdrantStore(ctx, QdrantConfig{
			Host:           cfg.QdrantHost,
			Port:           cfg.QdrantPort,
			Dimension:      uint64(cfg.Dimension),
			UseTLS:         cfg.QdrantUseTLS,
			APIKey:         cfg.QdrantAPIKey,
			MaxMessageSize: cfg.QdrantMaxMessageSize,
		}, logger)
	case BackendChromem:
		return NewChromemStore(ChromemConfig{
			Path:      cfg.ChromemPath,
			Dimension: cfg.Dimension,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
	}
}
