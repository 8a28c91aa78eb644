package config

import (
	"flag"
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
	"os"
	"time"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type Config struct {
	Env     string  `yaml:"env" env-default:"local" env-description:"Environment" env-choices:"local,dev,prod"`
	ApiPort int     `yaml:"api_port" env-default:"8080"`
	ApiHost string  `yaml:"api_host" env-default:"localhost"`
	Storage Storage `yaml:"storage"`
	JWT     JWT     `yaml:"jwt"`
	Pricing Pricing `yaml:"pricing"`
	Seed    Seed    `yaml:"seed"`
}

type Storage struct {
	Driver          string   `yaml:"driver" env-default:"sqlite3" env-choices:"sqlite3,postgres"`
	Path            string   `yaml:"path" env-default:"portfolio.db"`
	MigrationsTable string   `yaml:"migrations_table" env-default:"schema_migrations"`
	Postgres        Postgres `yaml:"postgres"`
}

type Postgres struct {
	Host string `yaml:"host" env-default:"localhost"`
	Port string `yaml:"port" env-default:"5433"`
	User string `yaml:"user" env-default:"test"`
	Pass string `yaml:"pass" env-default:"12345"`
	Db   string `yaml:"db" env-default:"portfolio"`
}

type JWT struct {
	Secret string        `yaml:"secret" env:"JWT_SECRET" env-default:"change-me"`
	TTL    time.Duration `yaml:"ttl" env-default:"24h"`
}

type Pricing struct {
	BaseURL    string        `yaml:"base_url" env-default:"https://eodhd.com/api"`
	APIToken   string        `yaml:"api_token" env:"EODHD_API_TOKEN" env-default:"demo"`
	Timeout    time.Duration `yaml:"timeout" env-default:"10s"`
	MaxRetries uint64        `yaml:"max_retries" env-default:"3"`
	RateLimit  float64       `yaml:"rate_limit" env-default:"5"`
	PricePath  string        `yaml:"price_path" env-default:"$.close"`
	NamePath   string        `yaml:"name_path" env-default:"$[0].Name"`
}

type Seed struct {
	ReferencePath  string `yaml:"reference_path" env-default:"config/tickers.yaml"`
	Limit          int    `yaml:"limit" env-default:"50"`
	FetchPrices    bool   `yaml:"fetch_prices" env-default:"true"`
	RefreshOnStart bool   `yaml:"refresh_on_start" env-default:"false"`
}

// DSN returns the database/sql data source name for the configured driver.
// SQLite connections are opened with foreign keys enabled so that cascade
// deletes are honoured.
func (s Storage) DSN() string {
	if s.Driver == DriverPostgres {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			s.Postgres.User,
			s.Postgres.Pass,
			s.Postgres.Host,
			s.Postgres.Port,
			s.Postgres.Db,
		)
	}
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", s.Path)
}

func MustLoad() *Config {
	return MustLoadPath(fetchConfigPath())
}

func MustLoadPath(path string) *Config {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config file does not exist: " + path)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		panic("failed to read config: " + err.Error())
	}

	return &cfg
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
