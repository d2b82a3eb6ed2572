package database

import (
	"context"
	"fmt"

	"github.com/docsync/docsync/internal/config"
	"github.com/docsync/docsync/internal/document/repository"
	"github.com/docsync/docsync/pkg/logger"
)

const mongoConnectAttempts = 5

// OpenStore builds the record store selected by cfg.Store.Driver. The
// returned close function releases the underlying client.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Repository, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.Store.Driver {
	case config.DriverMongo:
		client, err := ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, mongoConnectAttempts)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoRepo(client.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.Collection))
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		logger.Infof("record store: mongo db=%s collection=%s", cfg.MongoDB.Database, cfg.MongoDB.Collection)
		return repo, client.Disconnect, nil
	case config.DriverCouch:
		client, err := ConnectCouch(ctx, cfg.CouchDB.URL, cfg.CouchDB.Database)
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("record store: couchdb db=%s", cfg.CouchDB.Database)
		return repository.NewCouchRepo(client, cfg.CouchDB.Database), func(context.Context) error { return client.Close() }, nil
	default:
		logger.Warnf("record store: memory (documents are lost on restart)")
		return repository.NewMemoryRepo(), noop, nil
	}
}
