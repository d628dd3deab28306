package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "ORDERAPI_"

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout    time.Duration `koanf:"read_timeout"`
		WriteTimeout   time.Duration `koanf:"write_timeout"`
		IdleTimeout    time.Duration `koanf:"idle_timeout"`
		RequestTimeout time.Duration `koanf:"request_timeout"`
		UploadTimeout  time.Duration `koanf:"upload_timeout"`
		MaxBodyBytes   int64         `koanf:"max_body_bytes"`
	} `koanf:"http"`

	Store struct {
		Driver string `koanf:"driver"` // mysql | memory
		Seed   struct {
			Staff []StaffSeed `koanf:"staff"`
		} `koanf:"seed"`
	} `koanf:"store"`

	MySQL struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
		Migrate         bool          `koanf:"migrate"`
	} `koanf:"mysql"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Cache struct {
		OrdersTTL time.Duration `koanf:"orders_ttl"`
		RolesTTL  time.Duration `koanf:"roles_ttl"`
	} `koanf:"cache"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Rabbit struct {
		URL        string `koanf:"url"`
		Exchange   string `koanf:"exchange"`
		RoutingKey string `koanf:"routing_key"`
		Queue      string `koanf:"queue"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Brokers           []string `koanf:"brokers"`
		GroupID           string   `koanf:"group_id"`
		TopicOrdersPlaced string   `koanf:"topic_orders_placed"`
	} `koanf:"kafka"`

	Security struct {
		JWTSecret string        `koanf:"jwt_secret"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
		TTL       time.Duration `koanf:"ttl"`
		DevTokens bool          `koanf:"dev_tokens"`
	} `koanf:"security"`

	Storage struct {
		Dir           string `koanf:"dir"`
		PublicBaseURL string `koanf:"public_base_url"`
		ServePath     string `koanf:"serve_path"`
	} `koanf:"storage"`

	Assessment ServiceConfig `koanf:"assessment"`
	ImageEdit  ServiceConfig `koanf:"image_edit"`

	Sync struct {
		MaxConcurrency int `koanf:"max_concurrency"`
	} `koanf:"sync"`
}

// ServiceConfig addresses one external JSON/HTTP collaborator.
type ServiceConfig struct {
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

// StaffSeed preloads the in-memory staff directory.
type StaffSeed struct {
	ID   string `koanf:"id"`
	Name string `koanf:"name"`
	Role string `koanf:"role"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables, nested with __
	// e.g. ORDERAPI_MYSQL__DSN, ORDERAPI_SECURITY__JWT_SECRET
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret required")
	}
	switch c.Store.Driver {
	case "mysql":
		if c.MySQL.DSN == "" {
			return fmt.Errorf("mysql.dsn required when store.driver is mysql")
		}
	case "memory":
	default:
		return fmt.Errorf("store.driver must be mysql or memory, got %q", c.Store.Driver)
	}
	if c.Storage.Dir == "" || c.Storage.PublicBaseURL == "" {
		return fmt.Errorf("storage.dir and storage.public_base_url required")
	}
	if c.Assessment.URL == "" {
		return fmt.Errorf("assessment.url required")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.GroupID == "" {
		return fmt.Errorf("kafka.group_id required when kafka.brokers is set")
	}
	return nil
}
