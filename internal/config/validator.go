package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aleister1102/ratekeeper/internal/common/errorwrapper"
	"github.com/aleister1102/ratekeeper/internal/ratelimit"
	"github.com/go-playground/validator/v10"
)

// newValidator returns a validator with the application's custom rules registered.
func newValidator() *validator.Validate {
	validate := validator.New()

	_ = validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "debug", "info", "warn", "error", "fatal", "panic":
			return true
		default:
			return false
		}
	})

	_ = validate.RegisterValidation("logformat", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "console", "text", "json":
			return true
		default:
			return false
		}
	})

	_ = validate.RegisterValidation("strategy", func(fl validator.FieldLevel) bool {
		_, err := ratelimit.ParseStrategy(fl.Field().String())
		return err == nil
	})

	_ = validate.RegisterValidation("preset", func(fl validator.FieldLevel) bool {
		_, err := ratelimit.PresetConfig(fl.Field().String())
		return err == nil
	})

	return validate
}

// ValidateConfig performs validation on the GlobalConfig structure.
// Field rule failures are reported together, one per line. The retry
// section is also resolved so cross-field problems such as a max delay
// below the base delay surface here rather than at client construction.
func ValidateConfig(cfg *GlobalConfig) error {
	if cfg == nil {
		return errorwrapper.NewValidationError("config", nil, "config is nil")
	}

	if err := newValidator().Struct(cfg); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			messages := make([]string, 0, len(errs))
			for _, e := range errs {
				messages = append(messages, formatFieldError(e))
			}
			return fmt.Errorf("%w: configuration validation failed:\n  %s",
				errorwrapper.ErrInvalidConfiguration, strings.Join(messages, "\n  "))
		}
		return fmt.Errorf("configuration validation error: %w", err)
	}

	if _, err := cfg.RetryConfig.ToRateLimitConfig(); err != nil {
		return fmt.Errorf("%w: %w", errorwrapper.ErrInvalidConfiguration, err)
	}

	if cfg.MetricsConfig.Enabled && cfg.MetricsConfig.ListenAddr == "" {
		return errorwrapper.NewValidationError("metrics_config.listen_addr", "", "required when metrics are enabled")
	}

	return nil
}

// formatFieldError renders "Section.Field" without the GlobalConfig prefix.
func formatFieldError(e validator.FieldError) string {
	fieldName := strings.TrimPrefix(e.StructNamespace(), "GlobalConfig.")
	msg := fmt.Sprintf("Validation failed for '%s': rule '%s'", fieldName, e.Tag())
	if e.Param() != "" {
		msg += fmt.Sprintf(" (expected: %s)", e.Param())
	}
	if v := e.Value(); v != nil && v != "" {
		msg += fmt.Sprintf(", actual: '%v'", v)
	}
	return msg
}
