package services

import (
	"context"
)

// Provider is an external dependency whose health is reported on the status page
type Provider interface {
	// Type returns the service type name
	Type() string

	// HealthCheck checks if the service is available
	HealthCheck(ctx context.Context) error
}

// DatabaseInspector is implemented by providers that can describe the database server
type DatabaseInspector interface {
	Inspect(ctx context.Context) (*DatabaseInfo, error)
}

// DatabaseInfo describes the database server
type DatabaseInfo struct {
	Version   string `json:"version"`
	Size      string `json:"size"`
	SizeBytes int64  `json:"sizeBytes"`
}

// BaseProvider provides common functionality for providers
type BaseProvider struct {
	serviceType string
}

// Type returns the service type
func (p *BaseProvider) Type() string {
	return p.serviceType
}

// CheckFunc adapts a ping function into a Provider
type CheckFunc struct {
	BaseProvider
	check func(ctx context.Context) error
}

// NewCheckFunc creates a Provider named serviceType backed by check
func NewCheckFunc(serviceType string, check func(ctx context.Context) error) *CheckFunc {
	return &CheckFunc{BaseProvider: BaseProvider{serviceType: serviceType}, check: check}
}

// HealthCheck runs the wrapped check
func (c *CheckFunc) HealthCheck(ctx context.Context) error {
	return c.check(ctx)
}
