//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/keel-engine/keel/internal/engine"
)

// InitializeEngine builds a ready-to-run engine from a config file.
func InitializeEngine(configPath string) (*engine.Engine, error) {
	wire.Build(
		engine.LoadFile,
		ProvideLogger,
		ProvideContext,
		engine.New,
	)
	return nil, nil
}

// InitializeEngineFromConfig builds an engine from an already loaded
// configuration. Tests and embedders use this to skip the file step.
func InitializeEngineFromConfig(cfg engine.Config) (*engine.Engine, error) {
	wire.Build(
		ProvideLogger,
		ProvideContext,
		engine.New,
	)
	return nil, nil
}
