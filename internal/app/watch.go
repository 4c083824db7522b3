package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/drawmap/internal/api"
	"github.com/tphakala/drawmap/internal/coordinator"
	"github.com/tphakala/drawmap/internal/events"
	"github.com/tphakala/drawmap/internal/logger"
	"github.com/tphakala/drawmap/internal/mqtt"
	"github.com/tphakala/drawmap/internal/observability"
)

// busShutdownTimeout bounds how long queued notifications may take to drain.
const busShutdownTimeout = 5 * time.Second

// maxConnectBackoff caps the delay between broker connection attempts.
const maxConnectBackoff = 5 * time.Minute

// Watch runs the coordinator on the drawing directory, plus the API, the
// metrics endpoint and MQTT notifications when enabled, until ctx is
// cancelled.
func (a *App) Watch(ctx context.Context) error {
	var client mqtt.Client
	if a.Settings.MQTT.Enabled {
		c, err := a.newMQTTClient()
		if err != nil {
			return err
		}
		// Disconnect after the bus has drained.
		defer c.Disconnect()
		client = c
	}

	bus := events.New(events.DefaultConfig(), a.log.Module("events"))
	defer func() {
		if err := bus.Shutdown(busShutdownTimeout); err != nil {
			a.log.Warn("Event bus did not drain", logger.Error(err))
		}
	}()

	if err := a.registerConsumers(bus); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if client != nil {
		if err := bus.RegisterConsumer(mqtt.NewReadyPublisher(client, a.Settings.MQTT.Topic, 0, a.log.Module("mqtt"))); err != nil {
			return err
		}
		g.Go(func() error { return connectWithRetry(gctx, client, a.log.Module("mqtt")) })
	}

	coord, err := a.newCoordinator(a.Settings.Drawings.Dir, a.Settings.Watch.Enabled, bus)
	if err != nil {
		return err
	}
	g.Go(func() error { return coord.Run(gctx) })

	if a.Settings.API.Enabled {
		srv, err := api.New(api.Config{Listen: a.Settings.API.Listen}, a.Store,
			api.WithLogger(a.log.Module("api")),
			api.WithMetrics(a.Metrics.HTTP),
			api.WithStatus(coord))
		if err != nil {
			return err
		}
		g.Go(func() error { return srv.Run(gctx) })
	}

	if a.Settings.Metrics.Enabled {
		ep, err := observability.NewEndpoint(a.Settings.Metrics.Listen, a.Metrics, a.log.Module("metrics"))
		if err != nil {
			return err
		}
		g.Go(func() error { return ep.Run(gctx) })
	}

	return g.Wait()
}

// registerConsumers attaches the log and cache invalidation consumers.
func (a *App) registerConsumers(bus *events.Bus) error {
	if err := bus.RegisterConsumer(events.NewLogConsumer(a.log.Module("events"))); err != nil {
		return err
	}
	return bus.RegisterConsumer(events.NewConsumer("cache", func(e events.Event) error {
		if e.Kind == events.KindReady {
			a.Store.Invalidate(e.Drawing)
		}
		return nil
	}))
}

func (a *App) newCoordinator(dir string, watch bool, publisher events.Publisher) (*coordinator.Coordinator, error) {
	return coordinator.New(coordinator.Config{
		Dir:          dir,
		Workers:      a.Settings.Ingest.Workers,
		Watch:        watch,
		Debounce:     a.Settings.Watch.Debounce,
		PollInterval: a.Settings.Watch.PollInterval,
	}, a.Pipeline, a.Store, publisher,
		coordinator.WithLogger(a.log.Module("coordinator")),
		coordinator.WithMetrics(a.Metrics.Ingest))
}

func (a *App) newMQTTClient() (mqtt.Client, error) {
	cfg := mqtt.DefaultConfig()
	s := a.Settings.MQTT
	cfg.Broker = s.Broker
	cfg.ClientID = s.ClientID
	cfg.Username = s.Username
	cfg.Password = s.Password
	cfg.Topic = s.Topic
	cfg.Retain = s.Retain
	return mqtt.NewClient(cfg, a.Metrics.MQTT, a.log.Module("mqtt"))
}

// connectWithRetry keeps trying to reach the broker with exponential
// backoff. Once connected, paho handles reconnection itself.
func connectWithRetry(ctx context.Context, client mqtt.Client, log logger.Logger) error {
	delay := mqtt.DefaultConfig().ReconnectCooldown
	for {
		err := client.Connect(ctx)
		if err == nil {
			return nil
		}
		log.Warn("MQTT connection failed, retrying",
			logger.Error(err),
			logger.Duration("retry_in", delay))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, maxConnectBackoff)
	}
}
