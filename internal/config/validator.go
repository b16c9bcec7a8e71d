package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	zferrors "github.com/zoneflow/zoneflow/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	phaseNamePattern  = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
	pluginNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
)

// validatorInstance configures and returns the shared validator instance
// used across the config package.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("phase_name", func(fl validator.FieldLevel) bool {
			return phaseNamePattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("plugin_name", func(fl validator.FieldLevel) bool {
			return pluginNamePattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// ValidateConfig performs structural and cross-field validation on an
// entire configuration.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return zferrors.NewConfigurationError("config", "configuration is nil", nil)
	}

	v := validatorInstance()
	if err := v.Struct(cfg); err != nil {
		return convertValidationError(err)
	}

	for from, to := range cfg.Route.Phases {
		if !phaseNamePattern.MatchString(from) {
			return zferrors.NewConfigurationError("route.phases", fmt.Sprintf("invalid phase name %q", from), nil)
		}
		if !phaseNamePattern.MatchString(to) {
			return zferrors.NewConfigurationError("route.phases", fmt.Sprintf("invalid phase name %q (successor of %q)", to, from), nil)
		}
	}

	seen := make(map[string]struct{}, len(cfg.Plugins))
	for _, name := range cfg.Plugins {
		if _, exists := seen[name]; exists {
			return zferrors.NewConfigurationError("plugins", fmt.Sprintf("duplicate plugin %q", name), nil)
		}
		seen[name] = struct{}{}
	}

	for name := range cfg.PluginConfig {
		if !pluginNamePattern.MatchString(name) {
			return zferrors.NewConfigurationError("plugin_config", fmt.Sprintf("invalid plugin name %q", name), nil)
		}
	}

	return nil
}

func convertValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		field := strings.TrimPrefix(first.Namespace(), "Config.")
		return zferrors.NewConfigurationError(field, fmt.Sprintf("failed %q validation", first.Tag()), err)
	}
	return zferrors.NewConfigurationError("config", "validation failed", err)
}
