package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const DefaultPath = "config.yaml"

type Config struct {
	App      App      `yaml:"app"`
	HTTP     HTTP     `yaml:"http"`
	Log      Log      `yaml:"log"`
	Storage  Storage  `yaml:"storage"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Kafka    Kafka    `yaml:"kafka"`
	Domain   Domain   `yaml:"domain"`
	Oracle   Oracle   `yaml:"oracle"`
	Bridge   Bridge   `yaml:"bridge"`
	Auth     Auth     `yaml:"auth"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"reflights"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port        string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	MetricsPort string `yaml:"metrics_port" env:"METRICS_PORT" env-default:"9090"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// Storage selects the repository backend: "postgres" or "memory".
type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"reflights"`
}

func (p Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", p.User, p.Password, p.Host, p.Port, p.DBName)
}

// Redis.Addr is either host:port or a redis:// URL. Empty disables redis.
type Redis struct {
	Addr string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
}

type Kafka struct {
	Brokers     []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	EventsTopic string   `yaml:"events_topic" env:"KAFKA_EVENTS_TOPIC" env-default:"reflights-events"`
	// Relocation messages for domain X travel on TopicPrefix + X.
	TopicPrefix string `yaml:"topic_prefix" env:"KAFKA_TOPIC_PREFIX" env-default:"reflights-relocations-"`
	GroupID     string `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"reflights-receiver"`
	StartOffset string `yaml:"start_offset" env:"KAFKA_START_OFFSET" env-default:"first"`
}

type Domain struct {
	ID     string `yaml:"id" env:"DOMAIN_ID" env-default:"domain-a"`
	Admin  string `yaml:"admin" env:"DOMAIN_ADMIN" env-default:"admin"`
	Sender string `yaml:"sender" env:"DOMAIN_SENDER" env-default:"bridge-domain-a"`
}

type Oracle struct {
	Driver    string        `yaml:"driver" env:"ORACLE_DRIVER" env-default:"static"`
	URL       string        `yaml:"url" env:"ORACLE_URL"`
	Answer    int64         `yaml:"answer" env:"ORACLE_ANSWER" env-default:"10000000000"`
	Decimals  uint8         `yaml:"decimals" env:"ORACLE_DECIMALS" env-default:"8"`
	Precision uint8         `yaml:"precision" env:"ORACLE_PRECISION" env-default:"2"`
	MaxAge    time.Duration `yaml:"max_age" env:"ORACLE_MAX_AGE" env-default:"1h"`
	CacheTTL  time.Duration `yaml:"cache_ttl" env:"ORACLE_CACHE_TTL" env-default:"30s"`
	Timeout   time.Duration `yaml:"timeout" env:"ORACLE_TIMEOUT" env-default:"5s"`
}

type Bridge struct {
	BaseFee    int64 `yaml:"base_fee" env:"BRIDGE_BASE_FEE" env-default:"500"`
	FeePerByte int64 `yaml:"fee_per_byte" env:"BRIDGE_FEE_PER_BYTE" env-default:"1"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET" env-default:"change-me"`
}

// New reads path when it exists and lets environment variables override it.
// Without a file the configuration comes from the environment alone.
func New(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg := &Config{}

	// ReadConfig applies environment overrides on top of the file itself.
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	switch cfg.Storage.Driver {
	case "postgres", "memory":
	default:
		return nil, fmt.Errorf("config error: unknown storage driver %q", cfg.Storage.Driver)
	}
	switch cfg.Oracle.Driver {
	case "static", "http":
	default:
		return nil, fmt.Errorf("config error: unknown oracle driver %q", cfg.Oracle.Driver)
	}
	return cfg, nil
}
