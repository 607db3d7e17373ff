// internal/storage/storage.go
package storage

import (
	"errors"

	"github.com/railsim/formation/pkg/core"
)

// ErrUnsupported is returned by backends that cannot serve an operation,
// such as loading from a write-only sink.
var ErrUnsupported = errors.New("operation not supported by storage backend")

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Formations
	SaveFormation(rec *core.FormationRecord) error
	DeleteFormation(id core.FormationID) error

	// Cars
	SaveCar(rec *core.CarRecord) error
	DeleteCar(id core.CarID) error

	// Load returns everything persisted so far.
	Load() (*Snapshot, error)
}

// Snapshot is the full persisted state of a simulation.
type Snapshot struct {
	Formations []core.FormationRecord `json:"formations"`
	Cars       []core.CarRecord       `json:"cars"`
}

// Flusher is an optional interface for backends that buffer writes.
// Flush blocks until every queued write has reached the store.
type Flusher interface {
	Flush() error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to a web server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() UploadMetadata
}

// UploadMetadata describes an exported snapshot file.
type UploadMetadata struct {
	Name       string
	Formations int
	Cars       int
	Tag        string
}
