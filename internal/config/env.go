package config

import (
	"os"

	"github.com/joho/godotenv"
)

var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads the first existing dotenv file. Variables already set in
// the process environment win.
func loadEnvFiles() (string, error) {
	for _, name := range envFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return name, err
		}
		return name, nil
	}
	return "", nil
}

// expandEnv replaces ${VAR} references in the address and path settings.
// Issue rule patterns are regular expressions and are left untouched.
func expandEnv(cfg *Config) {
	for _, field := range []*string{
		&cfg.Server.BaseURL,
		&cfg.Cache.Path,
		&cfg.Watch.MetricsAddr,
		&cfg.Watch.NATSURL,
		&cfg.Watch.Subject,
	} {
		*field = os.ExpandEnv(*field)
	}
}
