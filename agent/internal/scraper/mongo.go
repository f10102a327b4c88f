package scraper

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mongorelic/mongorelic/agent/internal/config"
	"github.com/mongorelic/mongorelic/agent/internal/status"
)

const appName = "mongorelic-agent"

// MongoSource runs serverStatus against a live server.
type MongoSource struct {
	client  *mongo.Client
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// NewMongoSource builds a client for cfg. The driver connects lazily, so an
// unreachable server surfaces as a ServerStatus error rather than here.
func NewMongoSource(ctx context.Context, cfg config.MongoConfig, logger *zap.SugaredLogger) (*MongoSource, error) {
	client, err := mongo.Connect(ctx, clientOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("scraper: connect %s: %w", cfg.Host, err)
	}
	return &MongoSource{client: client, timeout: cfg.Timeout, logger: logger}, nil
}

// clientOptions maps the mongo config section onto driver options.
func clientOptions(cfg config.MongoConfig) *options.ClientOptions {
	opts := options.Client().
		ApplyURI(cfg.Host).
		SetAppName(appName).
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout).
		SetMaxPoolSize(1)

	if cfg.User != "" {
		opts.SetAuth(options.Credential{
			Username:   cfg.User,
			Password:   cfg.Password(),
			AuthSource: cfg.AuthSource,
		})
	}
	return opts
}

// ServerStatus implements StatusSource. Each call is bounded by the
// configured timeout.
func (m *MongoSource) ServerStatus(ctx context.Context) (status.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	raw, err := m.client.Database("admin").
		RunCommand(ctx, bson.D{{Key: "serverStatus", Value: 1}}).
		Raw()
	if err != nil {
		return status.Document{}, fmt.Errorf("scraper: serverStatus: %w", err)
	}

	m.logger.Debugw("scraper: serverStatus fetched",
		"bytes", len(raw), "took", time.Since(start))
	return status.New(raw), nil
}

// Close disconnects the client.
func (m *MongoSource) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
