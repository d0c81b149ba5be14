package configs

import (
	"flag"
	"os"

	"github.com/syncstream/syncstream/internal/infrastructure/env"
)

// DetermineConfigPath resolves the config file location from the --config
// flag, the SYNCSTREAM_CONFIG env var, or a set of conventional paths. An
// empty result means defaults-only, which is fine for local runs.
func DetermineConfigPath() string {
	var configPath string

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if configPath == "" {
		configPath = env.GetString("SYNCSTREAM_CONFIG", "")
	}

	if configPath == "" {
		candidates := []string{
			"./config.yaml",
			"./config.yml",
			"/etc/syncstream/config.yaml",
			"/app/config.yaml", // common in Docker
		}

		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	return configPath
}
