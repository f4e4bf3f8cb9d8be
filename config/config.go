// Package config reads the server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Host           string
	Port           string
	DataDir        string
	Backend        string
	Environment    string
	AllowedOrigins []string
	LogLevel       string
	MaxConnections int
	SeedFile       string
}

// Addr returns host:port for the listener.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Env returns the value of key, or fallback when it is unset or empty.
func Env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load builds a Config from the environment.
//
//	HOST             listen host            (0.0.0.0)
//	PORT             listen port            (3000)
//	DATA_DIR         storage directory      (./data)
//	STORE_BACKEND    json|sqlite|sqlite-purego|bolt|buntdb|memory (json)
//	ENVIRONMENT      "production" makes the server read-only (development)
//	ALLOWED_ORIGINS  comma separated CORS origins (*)
//	LOG_LEVEL        CRITICAL|ERROR|WARNING|NOTICE|INFO|DEBUG (INFO)
//	MAX_CONNECTIONS  concurrent connection cap, 0 for none (0)
//	SEED_FILE        JSON object merged into missing keys at startup
func Load() (Config, error) {
	c := Config{
		Host:        Env("HOST", "0.0.0.0"),
		Port:        Env("PORT", "3000"),
		DataDir:     Env("DATA_DIR", "./data"),
		Backend:     Env("STORE_BACKEND", "json"),
		Environment: Env("ENVIRONMENT", "development"),
		LogLevel:    Env("LOG_LEVEL", "INFO"),
		SeedFile:    os.Getenv("SEED_FILE"),
	}
	for _, o := range strings.Split(Env("ALLOWED_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			c.AllowedOrigins = append(c.AllowedOrigins, o)
		}
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	n, err := strconv.Atoi(Env("MAX_CONNECTIONS", "0"))
	if err != nil || n < 0 {
		return Config{}, fmt.Errorf("MAX_CONNECTIONS: invalid value %q", os.Getenv("MAX_CONNECTIONS"))
	}
	c.MaxConnections = n
	if _, err := strconv.Atoi(c.Port); err != nil {
		return Config{}, fmt.Errorf("PORT: invalid value %q", c.Port)
	}
	return c, nil
}
