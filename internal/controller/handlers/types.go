package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/Freeeeeet/class_scheduler/internal/service"
)

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers serves the plain HTTP endpoints.
type Handlers struct {
	authService *service.AuthService
	storage     Pinger
	logger      *zap.Logger
}

// NewHandlers creates the HTTP handlers
func NewHandlers(authService *service.AuthService, storage Pinger, logger *zap.Logger) *Handlers {
	return &Handlers{
		authService: authService,
		storage:     storage,
		logger:      logger,
	}
}
