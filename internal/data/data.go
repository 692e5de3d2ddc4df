package data

import (
	"context"
	"fmt"
	"time"

	"clipstash/internal/conf"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(NewData, NewClipCache, NewClipRepo, NewUnitOfWork)

// sqliteParams configure a file database for concurrent use: WAL lets reads
// run beside an open write transaction, and writers wait on each other for up
// to busy_timeout instead of failing. Shared-cache mode must not be combined
// with them, it reports SQLITE_LOCKED without waiting.
const sqliteParams = "_fk=1&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"

const defaultSource = "file:clipstash.db?" + sqliteParams

// Data holds the database driver and the optional redis client.
type Data struct {
	db       *sql.Driver
	rdb      *redis.Client
	cacheTTL time.Duration
}

// NewData opens the database, creates the schema and connects to redis
// when an address is configured.
func NewData(c *conf.Data, logger log.Logger) (*Data, func(), error) {
	log := log.NewHelper(log.With(logger, "module", "data"))

	driver, source := dialect.SQLite, defaultSource
	if c != nil && c.Database != nil {
		if c.Database.Driver != "" {
			driver = c.Database.Driver
		}
		if c.Database.Source != "" {
			source = c.Database.Source
		}
	}

	drv, err := sql.Open(driver, source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed opening connection to %s: %w", driver, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	// Run the auto migration tool.
	if err := Migrate(ctx, drv); err != nil {
		_ = drv.Close()
		return nil, nil, fmt.Errorf("failed creating schema resources: %w", err)
	}

	d := &Data{db: drv, cacheTTL: conf.DefaultCacheTTL}
	if c != nil && c.Redis != nil {
		d.cacheTTL = c.Redis.CacheTTLOrDefault()
		if c.Redis.Addr != "" {
			d.rdb = redis.NewClient(&redis.Options{
				Addr:         c.Redis.Addr,
				Password:     c.Redis.Password,
				DB:           c.Redis.DB,
				ReadTimeout:  c.Redis.ReadTimeout.AsDuration(),
				WriteTimeout: c.Redis.WriteTimeout.AsDuration(),
			})
			if err := d.rdb.Ping(ctx).Err(); err != nil {
				log.Warnf("redis at %s is not reachable, clips are read from the database: %v", c.Redis.Addr, err)
			}
		}
	}

	cleanup := func() {
		log.Info("message", "closing the data resources")
		if d.rdb != nil {
			if err := d.rdb.Close(); err != nil {
				log.Error(err)
			}
		}
		if err := d.db.Close(); err != nil {
			log.Error(err)
		}
	}

	return d, cleanup, nil
}

// NewDataWithDriver wraps an already opened driver. The schema is not migrated.
func NewDataWithDriver(drv *sql.Driver, rdb *redis.Client) *Data {
	return &Data{db: drv, rdb: rdb, cacheTTL: conf.DefaultCacheTTL}
}
