package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"tcgsync_api/config/values"
)

// ProviderConfig describes the external trading-card data provider: the
// paginated catalog API and the per-group CSV price feed.
type ProviderConfig struct {
	BaseURL     string  `yaml:"base_url"`
	CSVBaseURL  string  `yaml:"csv_base_url"`
	APIKey      string  `yaml:"api_key"`
	RateLimit   float64 `yaml:"rate_limit"` // requests per second, 0 = unlimited
	CSVEncoding string  `yaml:"csv_encoding"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type AppConfig struct {
	Server   ServerConfig      `yaml:"server"`
	Provider ProviderConfig    `yaml:"provider"`
	Sync     values.SyncValues `yaml:"sync"`
	Postgres PostgresConfig    `yaml:"postgres"`
}

func LoadConfig(filename string) (*AppConfig, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	config := &AppConfig{}
	if err := decoder.Decode(config); err != nil {
		return nil, err
	}
	config.Sync.Normalize()
	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	return config, nil
}
