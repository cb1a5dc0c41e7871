package backend

import (
	"context"

	"hisaab/internal/amqp"
	"hisaab/internal/services"
	"hisaab/internal/storage"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Result holds the store and the optional event client of a backend.
type Result struct {
	Store   storage.Store
	Events  *amqp.Client
	Cleanup CleanupFunc
}

// Publisher returns the event client as a services.EventPublisher, or nil
// when events are disabled.
func (r *Result) Publisher() services.EventPublisher {
	if r.Events == nil {
		return nil
	}
	return r.Events
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Change events, sqlite only
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
