// Command maestra-core boots the full Maestra process: the durable
// catalog (C1), the ephemeral registry (C2), the dual fan-out bus (C3),
// the state engine (C4), the stream registry (C5), the negotiator (C6),
// the SSE preview proxy (C7), and the REST+SSE front (C8).
package main

import (
	"context"
	"log"

	"github.com/jordansnyder/maestra-core/internal/bus"
	"github.com/jordansnyder/maestra-core/internal/config"
	"github.com/jordansnyder/maestra-core/internal/domain"
	"github.com/jordansnyder/maestra-core/internal/httpapi"
	"github.com/jordansnyder/maestra-core/internal/httpmw"
	"github.com/jordansnyder/maestra-core/internal/lifecycle"
	"github.com/jordansnyder/maestra-core/internal/logger"
	"github.com/jordansnyder/maestra-core/internal/metrics"
	"github.com/jordansnyder/maestra-core/internal/negotiator"
	"github.com/jordansnyder/maestra-core/internal/previewproxy"
	"github.com/jordansnyder/maestra-core/internal/registry"
	"github.com/jordansnyder/maestra-core/internal/stateengine"
	"github.com/jordansnyder/maestra-core/internal/store"
	"github.com/jordansnyder/maestra-core/internal/streamreg"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalf("maestra-core: %v", err)
	}
}

func run(ctx context.Context) error {
	bootLog, err := lifecycle.NewLoggerImpl(logger.DefaultConfig())
	if err != nil {
		return err
	}

	cfg, err := config.Load(ctx, bootLog)
	if err != nil {
		return err
	}

	logCfg := &logger.Config{
		Level:  cfg.LogLevel,
		Debug:  cfg.Debug,
		Output: "stdout",
	}

	mainLog, err := lifecycle.CreateComponentLogger(cfg.ServiceName, logCfg)
	if err != nil {
		return err
	}

	component := func(name string) logger.Logger {
		l, compErr := lifecycle.CreateComponentLogger(name, logCfg)
		if compErr != nil {
			return mainLog
		}

		return l
	}

	durable, err := store.Connect(ctx, cfg.DatabaseURL, mainLog)
	if err != nil {
		return err
	}
	defer durable.Close()

	ephemeral, err := registry.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := ephemeral.Close(); closeErr != nil {
			mainLog.Warn().Err(closeErr).Msg("ephemeral registry close failed")
		}
	}()

	fanout, err := bus.Connect(bus.Config{
		NATSURL:    cfg.NATSURL,
		MQTTBroker: cfg.MQTTBroker,
		MQTTPort:   cfg.MQTTPort,
		MQTTClient: cfg.MQTTClient,
	}, mainLog)
	if err != nil {
		return err
	}
	defer fanout.Close()

	mtr := metrics.New()
	fanout.SetMetrics(mtr)

	bridge := bus.NewBridge(fanout, component("bridge"))

	engine := stateengine.New(durable, fanout, component("stateengine"))

	// The negotiator needs C5 to verify a stream is live; C5 needs the
	// negotiator to cascade-delete sessions on withdraw. Neither
	// constructor can run first, so the negotiator gets a thin lookup
	// indirection that is pointed at the registry once it exists.
	lookup := &lazyStreamLookup{}
	negotiatorSvc := negotiator.New(ephemeral, fanout, lookup, durable, component("negotiator"))
	negotiatorSvc.SetMetrics(mtr)
	streams := streamreg.New(ephemeral, fanout, negotiatorSvc, component("streamreg"))
	streams.SetMetrics(mtr)
	lookup.streams = streams

	proxy := previewproxy.New(streams, negotiatorSvc, component("previewproxy"))

	httpServer := httpapi.NewServer(httpapi.Deps{
		Store:       durable,
		Engine:      engine,
		Streams:     streams,
		Negotiator:  negotiatorSvc,
		Proxy:       proxy,
		Bus:         fanout,
		Log:         component("httpapi"),
		ServiceName: cfg.ServiceName,
		CORS:        httpmw.CORSConfig{AllowedOrigins: []string{"*"}},
	})

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ListenAddr:  cfg.HTTPAddr,
		ServiceName: cfg.ServiceName,
		Service:     &bridgeService{bridge: bridge},
		Handler:     httpServer,
		Logger:      mainLog,
	})
}

// bridgeService adapts the MQTT<->NATS bridge relay to lifecycle.Service.
type bridgeService struct {
	bridge *bus.Bridge
}

func (b *bridgeService) Start(context.Context) error {
	return b.bridge.Start()
}

func (b *bridgeService) Stop(context.Context) error {
	b.bridge.Stop()

	return nil
}

// lazyStreamLookup breaks the construction cycle between the negotiator
// and the stream registry: it is handed to the negotiator before the
// registry exists, and pointed at the real registry once it does.
type lazyStreamLookup struct {
	streams *streamreg.Registry
}

func (l *lazyStreamLookup) Get(ctx context.Context, id string) (*domain.Stream, error) {
	return l.streams.Get(ctx, id)
}
