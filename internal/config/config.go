// Package config binds server settings from flags with environment
// variable fallback (PORT, DATA_FILE, ... mirror the flag names).
package config

import (
	flag "github.com/jnovack/flag"
)

type Config struct {
	Port         string `json:"port"`
	StoreDriver  string `json:"storeDriver"` // "file" or "sqlite"
	DataFile     string `json:"dataFile"`    // snapshot path (file) or DSN (sqlite)
	RetentionCap int    `json:"retentionCap"`
	LogLevel     string `json:"logLevel"`
	AnalyzeURL   string `json:"analyzeUrl"`
	AnalyzeKey   string `json:"-"`
}

func Load(args []string) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("hookmaster", flag.ContinueOnError)
	fs.StringVar(&cfg.Port, "port", "8080", "HTTP listen port")
	fs.StringVar(&cfg.StoreDriver, "store-driver", "file", "persistence backend: file or sqlite")
	fs.StringVar(&cfg.DataFile, "data-file", "data.json", "snapshot file path (file driver) or DSN (sqlite driver)")
	fs.IntVar(&cfg.RetentionCap, "retention-cap", 200, "global cap on retained requests; oldest are evicted first, across all endpoints")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&cfg.AnalyzeURL, "analyze-url", "", "base URL of the text-generation service (empty disables analysis)")
	fs.StringVar(&cfg.AnalyzeKey, "analyze-key", "", "API key for the text-generation service")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}
