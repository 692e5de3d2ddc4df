package main

import (
	"context"
	"flag"
	"os"
	"time"

	"clipstash/internal/biz"
	"clipstash/internal/conf"
	"clipstash/internal/hitcounter"
	"clipstash/internal/infra/eventbus"
	"clipstash/internal/maintenance"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"

	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name = "clipstash"
	// Version is the version of the compiled software.
	Version string
	// flagconf is the config flag.
	flagconf string

	id, _ = os.Hostname()
)

// stopTimeout bounds the final hit flush on shutdown.
const stopTimeout = 10 * time.Second

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs", "config path, eg: -conf config.yaml")
}

func newApp(
	logger log.Logger,
	hs *http.Server,
	eventBus *eventbus.EventBus,
	router *eventbus.Router,
	aggregator *hitcounter.Aggregator,
	sweeper *maintenance.Sweeper,
) *kratos.App {
	helper := log.NewHelper(logger)

	// Register event handlers
	biz.RegisterEventHandlers(router, logger)

	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(
			hs,
		),
		kratos.BeforeStart(func(ctx context.Context) error {
			// The router outlives the servers so the final flush is still delivered.
			go func() {
				if err := router.Run(context.Background()); err != nil {
					helper.Errorf("event router error: %v", err)
				}
			}()
			aggregator.Start()
			_, _ = sweeper.Sweep(ctx)
			sweeper.Start(ctx)
			return nil
		}),
		kratos.BeforeStop(func(ctx context.Context) error {
			sweeper.Stop()
			return nil
		}),
		kratos.AfterStop(func(_ context.Context) error {
			// Servers are down, no more hits can arrive.
			ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			if err := aggregator.Stop(ctx); err != nil {
				helper.Errorf("hit counter did not stop cleanly: %v", err)
			}
			if err := router.Close(); err != nil {
				helper.Errorf("failed to close router: %v", err)
			}
			if err := eventBus.Close(); err != nil {
				helper.Errorf("failed to close event bus: %v", err)
			}
			return nil
		}),
	)
}

func main() {
	flag.Parse()
	logger := log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)
	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	app, cleanup, err := wireApp(bc.Server, bc.Data, bc.HitCounter, bc.Maintenance, logger)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// start and wait for stop signal
	if err := app.Run(); err != nil {
		panic(err)
	}
}
