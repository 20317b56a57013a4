package services

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Health states
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

// ServiceHealth is the result of one provider's health check
type ServiceHealth struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
}

// SystemStatus is the admin status page
type SystemStatus struct {
	Status    string          `json:"status"`
	Services  []ServiceHealth `json:"services"`
	Database  *DatabaseInfo   `json:"database,omitempty"`
	CheckedAt time.Time       `json:"checkedAt"`
}

// Registry manages service providers
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a new service registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = provider
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// List returns all registered provider names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthCheckAll checks health of all registered providers
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make(map[string]error)
	for name, provider := range r.providers {
		results[name] = provider.HealthCheck(ctx)
	}
	return results
}

// Status runs every health check and inspects the database. The overall status is
// down when every provider fails and degraded when some do.
func (r *Registry) Status(ctx context.Context) *SystemStatus {
	status := &SystemStatus{
		Status:    StatusOK,
		Services:  []ServiceHealth{},
		CheckedAt: time.Now().UTC(),
	}

	failed := 0
	for _, name := range r.List() {
		provider := r.Get(name)
		if provider == nil {
			continue
		}

		start := time.Now()
		err := provider.HealthCheck(ctx)
		h := ServiceHealth{
			Name:      name,
			Type:      provider.Type(),
			Status:    StatusOK,
			LatencyMs: time.Since(start).Milliseconds(),
		}
		if err != nil {
			failed++
			h.Status = StatusDown
			h.Error = err.Error()
		} else if inspector, ok := provider.(DatabaseInspector); ok && status.Database == nil {
			info, err := inspector.Inspect(ctx)
			if err != nil {
				slog.Warn("failed to inspect database", "provider", name, "error", err)
			} else {
				status.Database = info
			}
		}
		status.Services = append(status.Services, h)
	}

	switch {
	case failed == 0:
	case failed == len(status.Services):
		status.Status = StatusDown
	default:
		status.Status = StatusDegraded
	}
	return status
}

// Unregister removes a provider from the registry
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, name)
}
