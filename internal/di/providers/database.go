package providers

import (
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/tallyapp/tally-server/internal/config"
	"github.com/tallyapp/tally-server/internal/gateway"
	"github.com/tallyapp/tally-server/internal/logger"
	"github.com/tallyapp/tally-server/internal/sse"
	"github.com/tallyapp/tally-server/internal/store"
)

// HubHandle wraps the SSE hub with shutdown capability.
type HubHandle struct {
	*sse.Hub
}

// Shutdown implements do.Shutdownable.
func (h *HubHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideHub provides the server-sent events hub.
func ProvideHub(i do.Injector) (*HubHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return &HubHandle{sse.NewHub(log.Logger)}, nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the database store. Every persisted change is
// emitted through the SSE hub.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	hubHandle := do.MustInvoke[*HubHandle](i)

	dbPath := filepath.Join(cfg.Data.BasePath, "db")
	db, err := store.Open(dbPath, log.Logger, hubHandle.Hub)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}

// GatewayHandle wraps the cached gateway with shutdown capability.
type GatewayHandle struct {
	*gateway.Cached
}

// Shutdown implements do.Shutdownable.
func (h *GatewayHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideGateway provides the room and membership gateway with its
// read-through cache in front of the store.
func ProvideGateway(i do.Injector) (*GatewayHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	backend := gateway.NewStoreGateway(storeHandle.Store)
	cached := gateway.NewCached(backend, cfg.Cache.TTL, cfg.Cache.SweepInterval)

	return &GatewayHandle{Cached: cached}, nil
}
