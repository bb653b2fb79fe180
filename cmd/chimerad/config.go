package main

import (
	"encoding/json"
	"os"

	"github.com/chimera-nas/chimera/backend/cairn"
	"github.com/chimera-nas/chimera/backend/demofs"
	"github.com/chimera-nas/chimera/vfs"
	"github.com/pkg/errors"
)

// serverConfig is chimerad's own top-level config file shape (spec.md §6:
// "config is loaded as JSON... into typed cairn.Config / demofs.Config
// structs"). The "module" key selects which back end this process runs;
// its sibling object is decoded straight into that back end's own Config
// type, so cairn/demofs keep sole ownership of their config schemas.
type serverConfig struct {
	Module  string          `json:"module"`
	Workers int             `json:"workers"`
	Cairn   json.RawMessage `json:"cairn"`
	Demofs  json.RawMessage `json:"demofs"`
}

const defaultWorkers = 4

func loadServerConfig(path string) (serverConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return serverConfig{}, errors.Wrap(err, "chimerad: reading config")
	}
	var cfg serverConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return serverConfig{}, errors.Wrap(err, "chimerad: parsing config")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return cfg, nil
}

// applyModuleFlag lets --module override the config file's "module" key,
// since the CLI exposes both as independent knobs (spec.md §6).
func applyModuleFlag(cfg serverConfig, flag string) serverConfig {
	if flag != "" {
		cfg.Module = flag
	}
	return cfg
}

// buildModule constructs the unconfigured vfs.Module named by cfg.Module,
// plus the raw JSON block its Init should receive.
func buildModule(cfg serverConfig) (vfs.Module, json.RawMessage, error) {
	switch cfg.Module {
	case cairn.Name:
		return cairn.New(), cfg.Cairn, nil
	case demofs.Name:
		return demofs.New(), cfg.Demofs, nil
	default:
		return nil, nil, errors.Errorf("chimerad: unrecognized module %q (want %q or %q)", cfg.Module, cairn.Name, demofs.Name)
	}
}
