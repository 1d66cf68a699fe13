package sqlmapper

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/syssam/sqlmapper/dialect"
)

// EnvPrefix is the prefix of the environment variables read by LoadConfig.
// SQLMAPPER_READ_COMMITTED sets read_committed, and so on.
const EnvPrefix = "SQLMAPPER_"

// Config holds the connection settings.
type Config struct {
	// Engine is the dialect: mysql, postgres or sqlite.
	Engine string `koanf:"engine" yaml:"engine"`
	// Driver overrides the database/sql driver name, e.g. "pgx" for postgres.
	Driver string `koanf:"driver" yaml:"driver,omitempty"`

	Host     string `koanf:"host" yaml:"host,omitempty"`
	Port     int    `koanf:"port" yaml:"port,omitempty"`
	User     string `koanf:"user" yaml:"user,omitempty"`
	Password string `koanf:"password" yaml:"-"`
	// DB is the database name, or the file path for sqlite.
	DB string `koanf:"db" yaml:"db"`

	// Autocreate creates the database when it does not exist.
	Autocreate bool `koanf:"autocreate" yaml:"autocreate"`
	// ReadCommitted runs transactions at the READ COMMITTED isolation level.
	// SQLite ignores it.
	ReadCommitted bool `koanf:"read_committed" yaml:"read_committed"`

	// Debug logs every statement.
	Debug bool `koanf:"debug" yaml:"debug"`
	// SlowQueryThreshold logs statements slower than it. Zero disables it.
	SlowQueryThreshold time.Duration `koanf:"slow_query_threshold" yaml:"slow_query_threshold,omitempty"`

	// Options holds additional driver specific DSN parameters.
	Options map[string]string `koanf:"options" yaml:"options,omitempty"`
}

// defaults are the lowest-priority configuration layer.
var defaults = map[string]any{
	"engine": dialect.SQLite,
	"host":   "127.0.0.1",
}

// LoadConfig loads configuration from defaults, the YAML file at path (if
// path is not empty) and SQLMAPPER_ environment variables, in increasing
// order of precedence.
func LoadConfig(path string) (*Config, error) {
	k, err := LoadKoanf(path)
	if err != nil {
		return nil, err
	}
	return UnmarshalConfig(k)
}

// LoadKoanf loads the configuration layers of LoadConfig without decoding
// them, so callers can add layers of higher precedence.
func LoadKoanf(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}
	return k, nil
}

// UnmarshalConfig decodes and validates a Config from a loaded koanf
// instance. It lets callers add their own layers, such as command line flags.
func UnmarshalConfig(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration and fills in engine specific defaults.
func (c *Config) Validate() error {
	c.Engine = strings.ToLower(c.Engine)
	if c.Engine == "postgresql" {
		c.Engine = dialect.Postgres
	}
	if !dialect.Supported(c.Engine) {
		return fmt.Errorf("sqlmapper: unsupported engine %q", c.Engine)
	}
	switch c.Engine {
	case dialect.SQLite:
		if c.DB == "" {
			c.DB = ":memory:"
		}
	default:
		if c.DB == "" {
			return fmt.Errorf("sqlmapper: %s requires a database name", c.Engine)
		}
		if c.Host == "" {
			c.Host = "127.0.0.1"
		}
	}
	return nil
}

// DriverName returns the database/sql driver used for the engine.
func (c *Config) DriverName() string {
	if c.Driver != "" {
		return c.Driver
	}
	return c.Engine
}

// DSN returns the data source name of the configured database.
func (c *Config) DSN() string {
	return c.dsn(c.DB)
}

// serverDSN returns a data source name suitable for creating the database.
func (c *Config) serverDSN() string {
	switch c.Engine {
	case dialect.Postgres:
		return c.dsn("postgres")
	default:
		return c.dsn("")
	}
}

func (c *Config) dsn(db string) string {
	switch c.Engine {
	case dialect.MySQL:
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.port(3306)))
		mc.DBName = db
		mc.ParseTime = true
		if len(c.Options) > 0 {
			mc.Params = c.Options
		}
		return mc.FormatDSN()
	case dialect.Postgres:
		params := map[string]string{
			"host":    c.Host,
			"port":    strconv.Itoa(c.port(5432)),
			"dbname":  db,
			"sslmode": "disable",
		}
		if c.User != "" {
			params["user"] = c.User
		}
		if c.Password != "" {
			params["password"] = c.Password
		}
		for k, v := range c.Options {
			params[k] = v
		}
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = k + "=" + quoteConnValue(params[k])
		}
		return strings.Join(pairs, " ")
	default:
		if len(c.Options) == 0 {
			return c.DB
		}
		keys := make([]string, 0, len(c.Options))
		for k := range c.Options {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = k + "=" + c.Options[k]
		}
		return "file:" + c.DB + "?" + strings.Join(pairs, "&")
	}
}

func (c *Config) port(def int) int {
	if c.Port > 0 {
		return c.Port
	}
	return def
}

// quoteConnValue quotes a libpq connection string value when needed.
func quoteConnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
