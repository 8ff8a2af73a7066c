package memcache

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig is the TOML representation of a client configuration, for
// tools that load their setup from a file:
//
//	servers = ["cache-1:11211", "cache-2:11211"]
//	min_size = 1
//	max_size = 8
//	connect_timeout = "2s"
//	read_timeout = "500ms"
//	max_conn_lifetime = "10m"
//	max_conn_idle_time = "1m"
//	health_check_interval = "30s"
//
// Programmatic concerns (dial override, pool factory, flag registry,
// circuit breaker) have no file form and are set on the Config afterwards.
type FileConfig struct {
	Servers             []string `toml:"servers"`
	MinSize             int32    `toml:"min_size"`
	MaxSize             int32    `toml:"max_size"`
	ConnectTimeout      duration `toml:"connect_timeout"`
	ReadTimeout         duration `toml:"read_timeout"`
	MaxConnLifetime     duration `toml:"max_conn_lifetime"`
	MaxConnIdleTime     duration `toml:"max_conn_idle_time"`
	HealthCheckInterval duration `toml:"health_check_interval"`
}

// duration makes time.Duration decodable from TOML strings like "500ms".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// LoadConfig reads a TOML configuration file and returns the server list
// and client configuration it describes.
func LoadConfig(path string) (Servers, Config, error) {
	var fc FileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return nil, Config{}, fmt.Errorf("memcache: loading config %s: %w", path, err)
	}

	if len(fc.Servers) == 0 {
		return nil, Config{}, fmt.Errorf("memcache: config %s lists no servers", path)
	}

	config := Config{
		MinSize:             fc.MinSize,
		MaxSize:             fc.MaxSize,
		ConnectTimeout:      fc.ConnectTimeout.Duration,
		ReadTimeout:         fc.ReadTimeout.Duration,
		MaxConnLifetime:     fc.MaxConnLifetime.Duration,
		MaxConnIdleTime:     fc.MaxConnIdleTime.Duration,
		HealthCheckInterval: fc.HealthCheckInterval.Duration,
	}
	return NewStaticServers(fc.Servers...), config, nil
}
