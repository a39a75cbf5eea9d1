package router

import (
	"strings"
	"sync"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/provider"
	"travelsync-service/pkg/logger"
)

// ProviderRouter dispatches to a provider client by provider kind or airline key
type ProviderRouter struct {
	mu      sync.RWMutex
	clients map[entity.ProviderKind]provider.Client
	status  map[string]provider.StatusClient
	logger  logger.Logger
}

// NewProviderRouter creates a new provider router
func NewProviderRouter(logger logger.Logger) *ProviderRouter {
	return &ProviderRouter{
		clients: make(map[entity.ProviderKind]provider.Client),
		status:  make(map[string]provider.StatusClient),
		logger:  logger,
	}
}

// Register registers an account-scoped client under its kind, replacing any previous one
func (r *ProviderRouter) Register(client provider.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.Kind()] = client
	r.logger.Info("Registered provider client", "kind", client.Kind())
}

// RegisterStatus registers a flight-status client under its airline key
func (r *ProviderRouter) RegisterStatus(client provider.StatusClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[strings.ToUpper(client.Airline())] = client
	r.logger.Info("Registered flight status client", "airline", client.Airline())
}

// Client returns the client for a provider kind
func (r *ProviderRouter) Client(kind entity.ProviderKind) (provider.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[kind]
	return c, ok
}

// Status returns the flight-status client for an airline key, case-insensitive
func (r *ProviderRouter) Status(airline string) (provider.StatusClient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.status[strings.ToUpper(airline)]
	return c, ok
}

// Kinds returns the registered kinds that satisfy keep, in a stable order
func (r *ProviderRouter) Kinds(keep func(entity.ProviderKind) bool) []entity.ProviderKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var kinds []entity.ProviderKind
	for _, kind := range []entity.ProviderKind{entity.ProviderGmail, entity.ProviderOutlook, entity.ProviderFoursquare} {
		if _, ok := r.clients[kind]; ok && keep(kind) {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}
