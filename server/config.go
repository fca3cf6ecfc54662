package server

import (
	"log/slog"

	"github.com/signadot/sessiond/registry"
	"github.com/signadot/sessiond/storage"
)

// Spec holds the runtime specification for the server.
// Config contains the serializable settings loaded from a file.
type Spec struct {
	Config   *Config
	Registry *registry.Registry
	Store    *storage.Store
	Log      *slog.Logger
}
