package conf

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bootstrap is the root of the configuration file.
type Bootstrap struct {
	Server      *Server      `json:"server"`
	Data        *Data        `json:"data"`
	HitCounter  *HitCounter  `json:"hit_counter"`
	Maintenance *Maintenance `json:"maintenance"`
}

// Server configures the HTTP transport.
type Server struct {
	Http *Server_HTTP `json:"http"`
}

type Server_HTTP struct {
	Network string   `json:"network"`
	Addr    string   `json:"addr"`
	Timeout Duration `json:"timeout"`
}

// Data configures the persistence sink and its cache.
type Data struct {
	Database *Data_Database `json:"database"`
	Redis    *Data_Redis    `json:"redis"`
}

type Data_Database struct {
	// Driver is an ent dialect name: "sqlite3" or "postgres".
	Driver string `json:"driver"`
	Source string `json:"source"`
}

type Data_Redis struct {
	// Addr is optional. An empty address disables the clip cache.
	Addr         string   `json:"addr"`
	Password     string   `json:"password"`
	DB           int      `json:"db"`
	ReadTimeout  Duration `json:"read_timeout"`
	WriteTimeout Duration `json:"write_timeout"`
	CacheTTL     Duration `json:"cache_ttl"`
}

// HitCounter configures the hit aggregator.
type HitCounter struct {
	FlushInterval Duration `json:"flush_interval"`
	CommitTimeout Duration `json:"commit_timeout"`
	QueueSize     int      `json:"queue_size"`
}

// Maintenance configures the expiry sweeper.
type Maintenance struct {
	SweepInterval Duration `json:"sweep_interval"`
	SweepTimeout  Duration `json:"sweep_timeout"`
}

// Duration is a time.Duration that decodes from "5s"-style strings or from
// integer nanoseconds.
type Duration time.Duration

// AsDuration returns d as a time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		if value == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("conf: invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
		return nil
	case nil:
		*d = 0
		return nil
	default:
		return fmt.Errorf("conf: invalid duration %v", v)
	}
}

const (
	DefaultFlushInterval = 5 * time.Second
	DefaultCommitTimeout = 3 * time.Second
	DefaultQueueSize     = 1024
	DefaultSweepInterval = 10 * time.Second
	DefaultSweepTimeout  = 5 * time.Second
	DefaultCacheTTL      = 10 * time.Minute
)

// FlushIntervalOrDefault returns the configured flush interval or the default.
func (c *HitCounter) FlushIntervalOrDefault() time.Duration {
	if c == nil || c.FlushInterval <= 0 {
		return DefaultFlushInterval
	}
	return c.FlushInterval.AsDuration()
}

func (c *HitCounter) CommitTimeoutOrDefault() time.Duration {
	if c == nil || c.CommitTimeout <= 0 {
		return DefaultCommitTimeout
	}
	return c.CommitTimeout.AsDuration()
}

func (c *HitCounter) QueueSizeOrDefault() int {
	if c == nil || c.QueueSize <= 0 {
		return DefaultQueueSize
	}
	return c.QueueSize
}

func (c *Maintenance) SweepIntervalOrDefault() time.Duration {
	if c == nil || c.SweepInterval <= 0 {
		return DefaultSweepInterval
	}
	return c.SweepInterval.AsDuration()
}

func (c *Maintenance) SweepTimeoutOrDefault() time.Duration {
	if c == nil || c.SweepTimeout <= 0 {
		return DefaultSweepTimeout
	}
	return c.SweepTimeout.AsDuration()
}

func (c *Data_Redis) CacheTTLOrDefault() time.Duration {
	if c == nil || c.CacheTTL <= 0 {
		return DefaultCacheTTL
	}
	return c.CacheTTL.AsDuration()
}
