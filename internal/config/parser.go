package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	zferrors "github.com/zoneflow/zoneflow/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// ParseConfig loads a configuration file from disk, validates it and
// returns the resulting model with defaults applied.
func ParseConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, zferrors.NewConfigurationError("config", fmt.Sprintf("reading %s", path), err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		if line := extractLine(err); line > 0 {
			return nil, zferrors.NewConfigurationError("config", fmt.Sprintf("parsing %s (line %d)", path, line), err)
		}
		return nil, zferrors.NewConfigurationError("config", fmt.Sprintf("parsing %s", path), err)
	}

	cfg.applyDefaults()

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	if _, scanErr := fmt.Sscanf(matches[1], "%d", &line); scanErr != nil {
		return 0
	}

	return line
}
