package config

import (
	"github.com/spf13/pflag"
)

// DeriveConfig holds configuration for the derive command.
type DeriveConfig struct {
	Network    string
	Input      string
	PGDSN      string
	BatchSize  int
	CursorFile string
	CursorName string
	LogLevel   string
}

// LoadDerive merges config file, environment variables, and flags into
// DeriveConfig.
func LoadDerive(cfgFile string, flags *pflag.FlagSet) (DeriveConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"network":     "bsc",
		"batch-size":  1000,
		"cursor-name": "derive",
		"log-level":   "info",
	})
	if err != nil {
		return DeriveConfig{}, err
	}

	cfg := DeriveConfig{
		Network:    v.GetString("network"),
		Input:      v.GetString("in"),
		PGDSN:      v.GetString("pg-dsn"),
		BatchSize:  v.GetInt("batch-size"),
		CursorFile: v.GetString("cursor-file"),
		CursorName: v.GetString("cursor-name"),
		LogLevel:   v.GetString("log-level"),
	}

	return cfg, nil
}
