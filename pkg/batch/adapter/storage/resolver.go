package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"

	storageConfig "github.com/forlulz/spring-batch/pkg/batch/adapter/storage/config"
	coreConfig "github.com/forlulz/spring-batch/pkg/batch/core/config"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// ConnectionResolver opens named connections on first use and caches them.
type ConnectionResolver struct {
	cfg         *coreConfig.Config
	providers   map[string]StorageProvider
	connections map[string]StorageConnection
	mu          sync.Mutex
}

// NewConnectionResolver creates a resolver over providers, keyed by their Type.
func NewConnectionResolver(cfg *coreConfig.Config, providers ...StorageProvider) *ConnectionResolver {
	byType := make(map[string]StorageProvider, len(providers))
	for _, p := range providers {
		byType[p.Type()] = p
	}
	return &ConnectionResolver{
		cfg:         cfg,
		providers:   byType,
		connections: make(map[string]StorageConnection),
	}
}

// ResolveStorageConnection returns the connection configured under name.
func (r *ConnectionResolver) ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.connections[name]; ok {
		return conn, nil
	}

	cfg, err := storageConfig.Lookup(r.cfg, name)
	if err != nil {
		return nil, err
	}
	provider, ok := r.providers[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("no storage provider found for type '%s' (connection '%s')", cfg.Type, name)
	}
	conn, err := provider.Connect(ctx, cfg, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage connection '%s': %w", name, err)
	}
	r.connections[name] = conn
	logger.Debugf("Opened storage connection '%s' (%s).", name, cfg.Type)
	return conn, nil
}

// CloseAll closes every cached connection.
func (r *ConnectionResolver) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs *multierror.Error
	for name, conn := range r.connections {
		if err := conn.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to close storage connection '%s': %w", name, err))
		}
		delete(r.connections, name)
	}
	return errs.ErrorOrNil()
}

// ResolverParams collects the providers registered in the ProviderGroup.
type ResolverParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *coreConfig.Config
	Providers []StorageProvider `group:"storage_providers"`
}

// NewConnectionResolverProvider builds the resolver and closes its connections on stop.
func NewConnectionResolverProvider(p ResolverParams) *ConnectionResolver {
	r := NewConnectionResolver(p.Config, p.Providers...)
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return r.CloseAll()
		},
	})
	return r
}

// Module provides the ConnectionResolver. Add local.Module or gcs.Module for the backends.
var Module = fx.Options(
	fx.Provide(NewConnectionResolverProvider),
)
