// Package app wires configuration, stores, and services into a running
// dependency graph shared by the CLI and the API server.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	calendarApp "github.com/felixgeelhaar/accord/internal/calendar/application"
	"github.com/felixgeelhaar/accord/internal/calendar/infrastructure/caldav"
	"github.com/felixgeelhaar/accord/internal/calendar/infrastructure/memory"
	"github.com/felixgeelhaar/accord/internal/calendar/infrastructure/postgres"
	"github.com/felixgeelhaar/accord/internal/calendar/infrastructure/resilience"
	"github.com/felixgeelhaar/accord/internal/calendar/infrastructure/sqlite"
	schedServices "github.com/felixgeelhaar/accord/internal/scheduling/application/services"
	schedDomain "github.com/felixgeelhaar/accord/internal/scheduling/domain"
	"github.com/felixgeelhaar/accord/internal/scheduling/infrastructure/sessionstore"
	"github.com/felixgeelhaar/accord/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/accord/pkg/config"
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Calendar
	Calendar  calendarApp.Client // resilient decorated client
	Directory calendarApp.Directory
	Registry  *calendarApp.ProviderRegistry

	// Sessions
	Sessions schedDomain.SessionStore

	// Events
	Publisher eventbus.Publisher
	LocalBus  *eventbus.InProcessBus

	// Services
	Evaluator   *schedServices.PriorityEvaluator
	Resolver    *schedServices.AvailabilityResolver
	SlotFinder  *schedServices.SlotFinder
	Negotiator  *schedServices.NegotiationEngine
	Executor    *schedServices.ExecutionEngine
	Coordinator *schedServices.Coordinator

	closers []func() error
}

// NewContainer builds the dependency graph from configuration.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{Config: cfg, Logger: logger}

	hours := schedDomain.BusinessHours{
		DayStart: cfg.BusinessDayStart,
		DayEnd:   cfg.BusinessDayEnd,
	}

	if err := c.initCalendar(ctx, cfg); err != nil {
		return nil, err
	}
	if err := c.initSessions(cfg); err != nil {
		return nil, err
	}
	if err := c.initPublisher(cfg); err != nil {
		return nil, err
	}

	c.Evaluator = schedServices.NewPriorityEvaluator(schedServices.EvaluatorConfig{
		BasePriority:      cfg.BasePriority,
		AttendeeThreshold: cfg.AttendeeThreshold,
		UrgentKeywords:    cfg.UrgentKeywords,
		LowStakesKeywords: cfg.LowStakesKeywords,
	})
	c.Resolver = schedServices.NewAvailabilityResolver(c.Calendar, hours, logger)
	c.SlotFinder = schedServices.NewSlotFinder(c.Resolver, hours, schedServices.SlotFinderConfig{
		Step:              cfg.ScanStep,
		RelocationHorizon: cfg.RelocationHorizon,
	}, logger)
	c.Negotiator = schedServices.NewNegotiationEngine(c.SlotFinder, schedServices.NegotiationConfig{
		MaxProposals: cfg.MaxProposals,
		Weights: schedDomain.ImpactWeights{
			MovedEvent:       cfg.WeightMovedEvent,
			AffectedAttendee: cfg.WeightAffectedAttendee,
			PriorityDelta:    cfg.WeightPriorityDelta,
		},
	}, logger)
	c.Executor = schedServices.NewExecutionEngine(c.Calendar, logger)
	c.Coordinator = schedServices.NewCoordinator(
		c.Evaluator, c.Resolver, c.SlotFinder, c.Negotiator, c.Executor,
		c.Sessions, c.Publisher, hours,
		schedServices.CoordinatorConfig{SessionTTL: cfg.SessionTTL},
		logger,
	)

	return c, nil
}

// initCalendar registers every backend factory and resolves the configured
// one, wrapped in the resilience decorator.
func (c *Container) initCalendar(ctx context.Context, cfg *config.Config) error {
	c.Registry = calendarApp.NewProviderRegistry()

	// The memory store doubles as the directory for backends without one.
	memStore := memory.NewStore()
	c.Directory = memStore

	c.Registry.Register(calendarApp.BackendMemory, func(_ context.Context) (calendarApp.Client, error) {
		return memStore, nil
	})
	c.Registry.Register(calendarApp.BackendSQLite, func(ctx context.Context) (calendarApp.Client, error) {
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		c.Directory = store
		c.closers = append(c.closers, store.Close)
		return store, nil
	})
	c.Registry.Register(calendarApp.BackendPostgres, func(ctx context.Context) (calendarApp.Client, error) {
		store, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		c.Directory = store
		c.closers = append(c.closers, func() error { store.Close(); return nil })
		return store, nil
	})
	c.Registry.Register(calendarApp.BackendCalDAV, func(_ context.Context) (calendarApp.Client, error) {
		participants := func(ctx context.Context) ([]string, error) {
			agents, err := c.Directory.List(ctx)
			if err != nil {
				return nil, err
			}
			ids := make([]string, 0, len(agents))
			for _, agent := range agents {
				ids = append(ids, agent.ID)
			}
			return ids, nil
		}
		return caldav.NewClient(caldav.Config{
			BaseURL:      cfg.CalDAVBaseURL,
			Username:     cfg.CalDAVUsername,
			Password:     cfg.CalDAVPassword,
			PathTemplate: cfg.CalDAVPathTemplate,
			Timeout:      cfg.CallTimeout,
		}, participants, c.Logger), nil
	})

	backend, err := c.Registry.Create(ctx, calendarApp.BackendType(cfg.CalendarBackend))
	if err != nil {
		return fmt.Errorf("init calendar backend: %w", err)
	}

	c.Calendar = resilience.NewClient(backend, resilience.Config{
		CallTimeout:      cfg.CallTimeout,
		MaxRetries:       cfg.MaxRetries,
		RetryBaseDelay:   cfg.RetryBaseDelay,
		RetryMaxDelay:    cfg.RetryMaxDelay,
		MaxRequests:      3,
		Interval:         cfg.BreakerInterval,
		Timeout:          cfg.BreakerTimeout,
		FailureThreshold: uint32(cfg.BreakerThreshold),
	}, c.Logger)
	return nil
}

func (c *Container) initSessions(cfg *config.Config) error {
	switch cfg.SessionBackend {
	case "redis":
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opt)
		c.closers = append(c.closers, client.Close)
		c.Sessions = sessionstore.NewRedisStore(client, c.Logger)
	default:
		c.Sessions = sessionstore.NewMemoryStore(c.Logger)
	}
	return nil
}

func (c *Container) initPublisher(cfg *config.Config) error {
	switch cfg.EventBus {
	case "rabbitmq":
		publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, c.Logger)
		if err != nil {
			return fmt.Errorf("init rabbitmq publisher: %w", err)
		}
		c.Publisher = publisher
	case "none":
		c.Publisher = eventbus.NewNoopPublisher(c.Logger)
	default:
		c.LocalBus = eventbus.NewInProcessBus(c.Logger)
		c.Publisher = c.LocalBus
	}
	c.closers = append(c.closers, c.Publisher.Close)
	return nil
}

// StartBackground launches maintenance work bound to the context.
func (c *Container) StartBackground(ctx context.Context) {
	if store, ok := c.Sessions.(*sessionstore.MemoryStore); ok {
		store.StartSweeper(ctx, c.Config.SweepInterval)
	}
}

// Close releases held resources in reverse order.
func (c *Container) Close() error {
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
