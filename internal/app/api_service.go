package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sengledd/internal/api"
	"github.com/dokzlo13/sengledd/internal/command"
	"github.com/dokzlo13/sengledd/internal/config"
	"github.com/dokzlo13/sengledd/internal/ledger"
	"github.com/dokzlo13/sengledd/internal/poller"
)

// APIService wraps the HTTP API server.
type APIService struct {
	cfg    *config.Config
	server *api.Server
}

// NewAPIService creates a new APIService.
func NewAPIService(cfg *config.Config, manager *poller.Manager, dispatcher *command.Dispatcher, l *ledger.Ledger) *APIService {
	server := api.NewServer(cfg.API.Host, cfg.API.Port, manager, dispatcher, l)
	return &APIService{
		cfg:    cfg,
		server: server,
	}
}

// Start begins the API server if enabled.
func (s *APIService) Start(ctx context.Context) {
	if !s.cfg.API.Enabled {
		log.Debug().Msg("API server disabled")
		return
	}

	go func() {
		if err := s.server.Run(ctx, s.cfg.GetShutdownTimeout()); err != nil {
			log.Error().Err(err).Msg("API server error")
		}
	}()
}
