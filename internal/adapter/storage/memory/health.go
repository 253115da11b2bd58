package memory

import "context"

// HealthCheck reports the in-memory backend as always reachable.
type HealthCheck struct{}

func NewHealthCheck() *HealthCheck { return &HealthCheck{} }

func (HealthCheck) Ping(ctx context.Context) error { return nil }

func (HealthCheck) Name() string { return "memory" }
