package main

import (
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
)

type Config struct {
	Listen  string        `koanf:"listen"`
	History HistoryConfig `koanf:"history"`
	Auth    AuthConfig    `koanf:"auth"`
	Store   StoreConfig   `koanf:"store"`
	TLS     TLSConfig     `koanf:"tls"`
	Log     LogConfig     `koanf:"log"`
}

type HistoryConfig struct {
	Depth int    `koanf:"depth"`
	Key   string `koanf:"key"`
}

type AuthConfig struct {
	Owner string `koanf:"owner"`
}

type StoreConfig struct {
	Backend  string `koanf:"backend"`
	Path     string `koanf:"path"`
	RedisURL string `koanf:"redis-url"`
	Prefix   string `koanf:"prefix"`
}

type TLSConfig struct {
	Cert string `koanf:"cert"`
	Key  string `koanf:"key"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	Dev   bool   `koanf:"dev"`
}

var DefaultConfig = Config{
	Listen: ":8080",
	History: HistoryConfig{
		Depth: 5,
		Key:   "price-history",
	},
	Store: StoreConfig{
		Backend: backendMemory,
		Path:    "pricehistory.db",
		Prefix:  "pricehistoryd:",
	},
	Log: LogConfig{
		Level: "info",
	},
}

func ConfigAddOptions(f *flag.FlagSet) {
	f.String("conf.file", "", "path to a JSON configuration file")
	f.String("listen", DefaultConfig.Listen, "address to serve HTTP on")
	f.Int("history.depth", DefaultConfig.History.Depth, "number of prices required to compute the average")
	f.String("history.key", DefaultConfig.History.Key, "storage key of the hosted history")
	f.String("auth.owner", DefaultConfig.Auth.Owner, "only account allowed to record prices and reset the history")
	f.String("store.backend", DefaultConfig.Store.Backend, "storage backend: memory, pebble or redis")
	f.String("store.path", DefaultConfig.Store.Path, "pebble database directory")
	f.String("store.redis-url", DefaultConfig.Store.RedisURL, "redis url, e.g. redis://localhost:6379/0")
	f.String("store.prefix", DefaultConfig.Store.Prefix, "prefix for redis keys")
	f.String("tls.cert", DefaultConfig.TLS.Cert, "TLS certificate file, reloaded on change")
	f.String("tls.key", DefaultConfig.TLS.Key, "TLS private key file")
	f.String("log.level", DefaultConfig.Log.Level, "log level: debug, info, warn or error")
	f.Bool("log.dev", DefaultConfig.Log.Dev, "human readable development logging")
}

// ParseConfig reads flags from args, layered over the optional
// --conf.file. Flags set explicitly win over the file.
func ParseConfig(args []string) (*Config, error) {
	f := flag.NewFlagSet("pricehistoryd", flag.ContinueOnError)
	ConfigAddOptions(f)
	if err := f.Parse(args); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if path, _ := f.GetString("conf.file"); path != "" {
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return nil, errors.Wrapf(err, "loading config file %s", path)
		}
	}
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, errors.Wrap(err, "loading flags")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.History.Depth <= 0 || c.History.Depth > MaxRingCapacity {
		return errors.Errorf("invalid --history.depth %d", c.History.Depth)
	}
	if c.History.Key == "" {
		return errors.New("--history.key must not be empty")
	}
	switch c.Store.Backend {
	case backendMemory:
	case backendPebble:
		if c.Store.Path == "" {
			return errors.New("--store.path is required for the pebble backend")
		}
	case backendRedis:
		if c.Store.RedisURL == "" {
			return errors.New("--store.redis-url is required for the redis backend")
		}
	default:
		return errors.Errorf("unknown --store.backend %q", c.Store.Backend)
	}
	if (c.TLS.Cert == "") != (c.TLS.Key == "") {
		return errors.New("--tls.cert and --tls.key must be set together")
	}
	return nil
}
