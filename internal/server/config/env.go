package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every variable name declared in Config tags.
const EnvPrefix = "GOPHTOKEN_"

// dotenvFiles are loaded before the environment is read. Missing files are
// ignored; variables already present in the process win.
var dotenvFiles = []string{".env"}

// parseEnv overlays variables named EnvPrefix+tag onto config. Unset
// variables leave the current values alone.
func parseEnv(config *Config) error {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix})
}
