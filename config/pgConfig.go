package config

import (
	"fmt"
)

type DbConfig interface {
	GetConnectionString() string
}

// PostgresConfig represents the configuration needed to connect to a
// PostgreSQL database. Yaml values override the environment defaults
// field by field.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

func (pc *PostgresConfig) GetConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName)
}

// Merge overlays the non-empty fields of other onto pc.
func (pc *PostgresConfig) Merge(other PostgresConfig) {
	if other.Host != "" {
		pc.Host = other.Host
	}
	if other.Port != "" {
		pc.Port = other.Port
	}
	if other.User != "" {
		pc.User = other.User
	}
	if other.Password != "" {
		pc.Password = other.Password
	}
	if other.DBName != "" {
		pc.DBName = other.DBName
	}
}
