package validator

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Size constants used by FormatSize
const (
	Byte int64 = 1
	KB         = 1024 * Byte
	MB         = 1024 * KB
	GB         = 1024 * MB
)

// Timeout bounds accepted for attempt and backoff durations.
const (
	MinTimeout = 1 * time.Second
	MaxTimeout = 60 * time.Minute
	MaxBackoff = 5 * time.Minute
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Validator defines the validation operations used by the installer configuration.
type Validator interface {
	// ValidateLoglevel validates whether the provided log level fits slog log levels and returns a valid string.
	// Returns "info" for an empty input.
	ValidateLoglevel(ctx context.Context, logLevel string) (string, error)

	// ValidateVersion accepts "latest" or a semantic version with an optional "v" prefix.
	// Returns the normalised version without the prefix.
	ValidateVersion(ctx context.Context, version string) (string, error)

	// ValidateExtractor accepts "native" or "builtin". Empty means "native".
	ValidateExtractor(ctx context.Context, mode string) (string, error)

	// ValidateURL requires an absolute http or https URL.
	ValidateURL(ctx context.Context, param, raw string) (string, error)

	// ValidateName checks a GitHub org/repo or binary name.
	ValidateName(ctx context.Context, param, name string) (string, error)

	// ValidateAttempts requires at least one download attempt.
	ValidateAttempts(ctx context.Context, attempts int) (int, error)

	// ValidateTimeout checks that a duration lies within [MinTimeout, MaxTimeout].
	ValidateTimeout(ctx context.Context, param string, timeout time.Duration) error

	// ValidateBackoff checks that a backoff base is positive and at most MaxBackoff.
	ValidateBackoff(ctx context.Context, base time.Duration) error

	// FormatSize converts a size in bytes to a human-readable format.
	FormatSize(ctx context.Context, bytes int64) string
}

// validatorImpl implements the Validator interface.
type validatorImpl struct{}

// New creates a new instance of the Validator interface.
func New() Validator {
	return &validatorImpl{}
}

// ValidateLoglevel implements the ValidateLoglevel method of the Validator interface.
func (v *validatorImpl) ValidateLoglevel(ctx context.Context, logLevel string) (string, error) {
	logLevel = strings.ToLower(strings.TrimSpace(logLevel))
	validLoglevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

	if logLevel == "" {
		return "info", nil
	}
	if validLoglevels[logLevel] {
		return logLevel, nil
	}
	return "", fmt.Errorf("loglevel must be 'debug', 'info', 'warn' or 'error'")
}

// ValidateVersion implements the ValidateVersion method of the Validator interface.
func (v *validatorImpl) ValidateVersion(ctx context.Context, version string) (string, error) {
	version = strings.TrimSpace(version)
	if version == "" || strings.EqualFold(version, "latest") {
		return "latest", nil
	}
	parsed, err := semver.StrictNewVersion(strings.TrimPrefix(version, "v"))
	if err != nil {
		return "", fmt.Errorf("version %q is not a valid semantic version (e.g. 0.4.1)", version)
	}
	return parsed.String(), nil
}

// ValidateExtractor implements the ValidateExtractor method of the Validator interface.
func (v *validatorImpl) ValidateExtractor(ctx context.Context, mode string) (string, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	switch mode {
	case "":
		return "native", nil
	case "native", "builtin":
		return mode, nil
	}
	return "", fmt.Errorf("extractor must be 'native' or 'builtin'")
}

// ValidateURL implements the ValidateURL method of the Validator interface.
func (v *validatorImpl) ValidateURL(ctx context.Context, param, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%s cannot be empty", param)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%s is not a valid URL: %w", param, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%s must use http or https", param)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%s must include a host", param)
	}
	return strings.TrimRight(raw, "/"), nil
}

// ValidateName implements the ValidateName method of the Validator interface.
func (v *validatorImpl) ValidateName(ctx context.Context, param, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%s cannot be empty", param)
	}
	if !nameRe.MatchString(name) {
		return "", fmt.Errorf("%s may only contain letters, digits, '.', '_' and '-'", param)
	}
	return name, nil
}

// ValidateAttempts implements the ValidateAttempts method of the Validator interface.
func (v *validatorImpl) ValidateAttempts(ctx context.Context, attempts int) (int, error) {
	if attempts < 1 {
		return 0, fmt.Errorf("max_attempts must be at least 1")
	}
	return attempts, nil
}

// ValidateTimeout implements the ValidateTimeout method of the Validator interface.
func (v *validatorImpl) ValidateTimeout(ctx context.Context, param string, timeout time.Duration) error {
	if timeout < MinTimeout {
		return fmt.Errorf("%s must be at least %s", param, MinTimeout)
	}
	if timeout > MaxTimeout {
		return fmt.Errorf("%s must not exceed %s", param, MaxTimeout)
	}
	return nil
}

// ValidateBackoff implements the ValidateBackoff method of the Validator interface.
func (v *validatorImpl) ValidateBackoff(ctx context.Context, base time.Duration) error {
	if base <= 0 {
		return fmt.Errorf("backoff_base must be positive")
	}
	if base > MaxBackoff {
		return fmt.Errorf("backoff_base must not exceed %s", MaxBackoff)
	}
	return nil
}

// FormatSize implements the FormatSize method of the Validator interface.
func (v *validatorImpl) FormatSize(ctx context.Context, bytes int64) string {
	if bytes >= GB {
		return fmt.Sprintf("%.1fGB", float64(bytes)/float64(GB))
	}
	if bytes >= MB {
		return fmt.Sprintf("%.1fMB", float64(bytes)/float64(MB))
	}
	if bytes >= KB {
		return fmt.Sprintf("%.1fKB", float64(bytes)/float64(KB))
	}
	return fmt.Sprintf("%dB", bytes)
}
