// Package injector assembles the engine with wire: config file to
// logger to context to engine.
package injector

import (
	"github.com/keel-engine/keel/internal/core/object"
	"github.com/keel-engine/keel/internal/core/observability/log"
	"github.com/keel-engine/keel/internal/engine"
)

// ProvideLogger builds the process logger at the configured level.
func ProvideLogger(cfg engine.Config) *log.Logger {
	return log.New(log.ParseLevel(cfg.LogLevel))
}

// ProvideContext creates the object context on the calling goroutine,
// which becomes the main goroutine for event dispatch. Whoever calls
// the injector must also be the one driving Engine.Run.
func ProvideContext(logger *log.Logger) *object.Context {
	return object.NewContext(logger)
}
