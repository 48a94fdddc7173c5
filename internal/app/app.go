// Package app assembles stores and services from configuration. It is shared
// by the API, the worker and leadprepctl.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Lokman32/leadprep/internal/auth"
	"github.com/Lokman32/leadprep/internal/aws"
	"github.com/Lokman32/leadprep/internal/catalog"
	"github.com/Lokman32/leadprep/internal/config"
	"github.com/Lokman32/leadprep/internal/events"
	"github.com/Lokman32/leadprep/internal/idempotency"
	"github.com/Lokman32/leadprep/internal/orders"
	"github.com/Lokman32/leadprep/internal/reporting"
)

// App holds the backing stores selected by store.driver.
type App struct {
	Config   config.Config
	Log      logrus.FieldLogger
	Location *time.Location

	Parts       catalog.Repository
	Orders      orders.Repository
	Users       auth.UserStore
	Idempotency idempotency.Keeper
	Notifier    events.Notifier

	// Clients is nil with the memory driver.
	Clients *aws.AWSClients
}

func New(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Log: log, Location: loc, Notifier: events.Discard{}}

	if cfg.Store.Driver == config.DriverMemory {
		a.Parts = catalog.NewMemoryStore()
		a.Orders = orders.NewMemoryStore()
		a.Users = auth.NewMemoryUserStore()
		a.Idempotency = idempotency.NewMemoryStore(cfg.Idempotency.TTL)
		log.Warn("using in-memory stores, data is lost on restart")
		return a, nil
	}

	clients, err := aws.NewAWSClients(ctx, aws.Settings{
		Region:           cfg.AWS.Region,
		EndpointOverride: cfg.AWS.EndpointOverride,
	})
	if err != nil {
		return nil, fmt.Errorf("init aws clients: %w", err)
	}
	a.Clients = clients
	a.Parts = catalog.NewStore(clients.DynamoDB, cfg.Tables.Parts)
	a.Orders = orders.NewStore(clients.DynamoDB, cfg.Tables.Orders, cfg.Tables.Serials)
	a.Users = auth.NewDynamoUserStore(clients.DynamoDB, cfg.Tables.Users)
	a.Idempotency = idempotency.NewStore(clients.DynamoDB, cfg.Tables.Idempotency, cfg.Idempotency.TTL)
	if cfg.Queue.URL != "" {
		a.Notifier = events.NewSQSNotifier(aws.NewPublisher(clients.SQS, cfg.Queue.URL))
	}
	return a, nil
}

// Engine builds the order engine. extra notifiers receive every event next
// to the configured queue.
func (a *App) Engine(extra ...events.Notifier) *orders.Engine {
	var n events.Notifier = a.Notifier
	if len(extra) > 0 {
		n = append(events.Multi{a.Notifier}, extra...)
	}
	return orders.NewEngine(a.Orders, a.Parts, n, a.Log, orders.EngineConfig{
		MaxWriteRetries: a.Config.Orders.MaxWriteRetries,
		Location:        a.Location,
	})
}

func (a *App) Reports() *reporting.Service {
	return reporting.NewService(a.Orders, a.Parts, a.Log, reporting.Config{
		Location:      a.Location,
		OverdueAfter:  a.Config.Orders.OverdueAfter,
		PendingWindow: a.Config.Orders.PendingWindow,
	})
}

func (a *App) Catalog() *catalog.Service {
	return catalog.NewService(a.Parts, a.Log)
}

func (a *App) Auth() (*auth.Service, *auth.Issuer, error) {
	issuer, err := auth.NewIssuer(a.Config.Auth.JWTSecret, a.Config.Auth.TokenTTL)
	if err != nil {
		return nil, nil, err
	}
	return auth.NewService(a.Users, issuer, a.Log), issuer, nil
}

// TableSpecs lists the DynamoDB tables the service expects.
func TableSpecs(t config.TablesConfig) []aws.TableSpec {
	return []aws.TableSpec{
		{Name: t.Orders, HashKey: "serial_code"},
		{Name: t.Serials, HashKey: "serial"},
		{Name: t.Parts, HashKey: "part_key"},
		{Name: t.Users, HashKey: "matricule"},
		{Name: t.Idempotency, HashKey: "idempotency_key", TTLAttribute: "expires_at"},
	}
}
