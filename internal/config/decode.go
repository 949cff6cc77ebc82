package config

import (
	"github.com/spf13/pflag"
)

// DecodeConfig holds configuration for the decode command.
type DecodeConfig struct {
	RPCURL    string
	In        string
	Out       string
	Errors    string
	LogLevel  string
	Factories []string
	CrpList   []string
	FetchMeta bool
}

// LoadDecode merges config file, environment variables, and flags into
// DecodeConfig.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":        "./data/events.jsonl",
		"errors":     "./data/decode_errors.jsonl",
		"fetch-meta": false,
		"log-level":  "info",
	})
	if err != nil {
		return DecodeConfig{}, err
	}

	cfg := DecodeConfig{
		RPCURL:    v.GetString("rpc"),
		In:        v.GetString("in"),
		Out:       v.GetString("out"),
		Errors:    v.GetString("errors"),
		LogLevel:  v.GetString("log-level"),
		Factories: getStringSlice(v, "factory"),
		CrpList:   getStringSlice(v, "crp-controller"),
		FetchMeta: v.GetBool("fetch-meta"),
	}

	return cfg, nil
}
