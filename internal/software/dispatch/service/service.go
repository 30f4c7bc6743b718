package service

import (
	"trip-dispatch/internal/general/config"
	"trip-dispatch/internal/general/logger"
	"trip-dispatch/internal/general/rabbitmq"
	"trip-dispatch/internal/ports"
)

// dispatchService encapsulates the trip dispatch logic and dependencies.
type dispatchService struct {
	logger   *logger.Logger
	cfg      *config.Config
	uow      ports.UnitOfWork
	trips    ports.TripRepository
	offers   ports.OfferRepository
	events   ports.TripEventRepository
	presence ports.PresenceIndex
	pub      ports.MessagePublisher
	realtime ports.Realtime
	rabbitmq *rabbitmq.Client // nil in tests; consumers are skipped
}

// NewDispatchService creates a DispatchService with the provided dependencies.
func NewDispatchService(
	logger *logger.Logger,
	cfg *config.Config,
	uow ports.UnitOfWork,
	trips ports.TripRepository,
	offers ports.OfferRepository,
	events ports.TripEventRepository,
	presence ports.PresenceIndex,
	pub ports.MessagePublisher,
	realtime ports.Realtime,
	rabbit *rabbitmq.Client,
) ports.DispatchService {
	return &dispatchService{
		logger:   logger,
		cfg:      cfg,
		uow:      uow,
		trips:    trips,
		offers:   offers,
		events:   events,
		presence: presence,
		pub:      pub,
		realtime: realtime,
		rabbitmq: rabbit,
	}
}
