package service

import (
	"fmt"
	"time"

	"bizzytrack/backend/internal/ports"
)

type Service struct {
	repo      ports.Repository
	telemetry ports.Telemetry
	catalog   ports.CatalogCodec
	now       func() time.Time
}

func New(repo ports.Repository, telemetry ports.Telemetry, catalog ports.CatalogCodec) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("new service: repository is nil")
	}
	if telemetry == nil {
		return nil, fmt.Errorf("new service: telemetry is nil")
	}
	if catalog == nil {
		return nil, fmt.Errorf("new service: catalog codec is nil")
	}
	return &Service{repo: repo, telemetry: telemetry, catalog: catalog, now: time.Now}, nil
}
