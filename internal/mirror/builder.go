package mirror

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tamzrod/panel-keeper/internal/config"
	"github.com/tamzrod/panel-keeper/internal/mirror/ingest"
	mmodbus "github.com/tamzrod/panel-keeper/internal/mirror/modbus"
)

// Build creates the endpoint client for cfg and wraps it in a Mirror.
// It returns nil when mirroring is disabled.
// Assumes config has already passed validation.
func Build(cfg config.MirrorConfig, log *slog.Logger) (*Mirror, *BlockWriter, error) {
	if !cfg.Enabled() {
		return nil, nil, nil
	}

	cli, err := newClient(cfg)
	if err != nil {
		return nil, nil, err
	}

	bw, err := NewBlockWriter(Plan{
		Endpoint: cfg.Endpoint,
		UnitID:   cfg.UnitID,
		Address:  cfg.Address,
		Name:     cfg.Name,
	}, cli)
	if err != nil {
		_ = cli.Close()
		return nil, nil, err
	}

	return New(bw, log), bw, nil
}

func newClient(cfg config.MirrorConfig) (endpointClient, error) {
	switch cfg.Transport {
	case "modbus":
		return mmodbus.NewEndpointClient(mmodbus.Config{
			Endpoint: cfg.Endpoint,
			Timeout:  cfg.Timeout(),
		})
	case "ingest":
		return ingest.NewEndpointClient(ingest.Config{
			Endpoint: cfg.Endpoint,
			Timeout:  cfg.Timeout(),
			MemoryID: cfg.MemoryID,
		})
	case "":
		return nil, errors.New("mirror: transport required")
	default:
		return nil, fmt.Errorf("mirror: unknown transport %q", cfg.Transport)
	}
}
