// Package config assembles installer settings from, in increasing priority:
// built-in defaults, an optional YAML file, a ".env" file in the working
// directory, and POMOWISE_* environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/validator"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix      = "POMOWISE_"
	ConfigFileName = "installer.yaml"
	EnvFileName    = ".env"
	InstallDirName = ".pomowise"
)

// Config holds every tunable of the installer.
type Config struct {
	App               string        `yaml:"app"`
	Helper            string        `yaml:"helper"`
	Host              string        `yaml:"host"`
	APIHost           string        `yaml:"api_host"`
	Org               string        `yaml:"org"`
	Repo              string        `yaml:"repo"`
	Version           string        `yaml:"version"`
	InstallRoot       string        `yaml:"install_root"`
	ShimDir           string        `yaml:"shim_dir"`
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffBase       time.Duration `yaml:"backoff_base"`
	AttemptTimeout    time.Duration `yaml:"attempt_timeout"`
	MaxRedirects      int           `yaml:"max_redirects"`
	Extractor         string        `yaml:"extractor"`
	MinisignPublicKey string        `yaml:"minisign_public_key"`
	SourceRepo        string        `yaml:"source_repo"`
	LogLevel          string        `yaml:"log_level"`
}

// BinDir is where installed executables live.
func (c *Config) BinDir() string {
	return filepath.Join(c.InstallRoot, "bin")
}

// LogDir holds crash logs.
func (c *Config) LogDir() string {
	return filepath.Join(c.InstallRoot, "logs")
}

// StatusFile is the IPC file the running app writes.
func (c *Config) StatusFile() string {
	return filepath.Join(c.InstallRoot, "status.json")
}

// Default returns the built-in configuration rooted at home.
func Default(home string) *Config {
	root := filepath.Join(home, InstallDirName)
	return &Config{
		App:            "pomowise",
		Helper:         "pomowise-tray",
		Host:           "https://github.com",
		APIHost:        "https://api.github.com",
		Org:            "pomowise",
		Repo:           "pomowise",
		Version:        "latest",
		InstallRoot:    root,
		ShimDir:        filepath.Join(home, ".local", "bin"),
		MaxAttempts:    3,
		BackoffBase:    time.Second,
		AttemptTimeout: 10 * time.Minute,
		MaxRedirects:   5,
		Extractor:      "native",
		SourceRepo:     "https://github.com/pomowise/pomowise.git",
		LogLevel:       "warn",
	}
}

// Options controls where Load looks.
type Options struct {
	// Home overrides the detected home directory.
	Home string
	// File is an explicit YAML path. When empty, <install_root>/installer.yaml
	// is used if it exists.
	File string
	// EnvFile is the dotenv path. Defaults to ".env" in the working directory.
	EnvFile string
	// Environ replaces os.Environ, mostly for tests.
	Environ []string
}

// Load builds the effective configuration and validates it.
func Load(ctx context.Context, opts Options) (*Config, error) {
	home := opts.Home
	if home == "" {
		h, err := HomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine home directory: %w", err)
		}
		home = h
	}
	cfg := Default(home)

	env := environMap(opts.Environ)

	// The install root decides where the default YAML lives, so look for an
	// override before reading the file.
	if root, ok := env[EnvPrefix+"INSTALL_ROOT"]; ok && root != "" {
		cfg.InstallRoot = root
	}

	file := opts.File
	explicit := file != ""
	if !explicit {
		file = filepath.Join(cfg.InstallRoot, ConfigFileName)
	}
	if err := cfg.mergeYAML(file, explicit); err != nil {
		return nil, err
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = EnvFileName
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
	}
	if err := cfg.mergeEnv(dotenv); err != nil {
		return nil, fmt.Errorf("%s: %w", envFile, err)
	}
	if err := cfg.mergeEnv(env); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if err := cfg.Validate(ctx, validator.New()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeYAML(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// mergeEnv applies POMOWISE_* keys from vars.
func (c *Config) mergeEnv(vars map[string]string) error {
	str := map[string]*string{
		"APP":                 &c.App,
		"HELPER":              &c.Helper,
		"HOST":                &c.Host,
		"API_HOST":            &c.APIHost,
		"ORG":                 &c.Org,
		"REPO":                &c.Repo,
		"VERSION":             &c.Version,
		"INSTALL_ROOT":        &c.InstallRoot,
		"SHIM_DIR":            &c.ShimDir,
		"EXTRACTOR":           &c.Extractor,
		"MINISIGN_PUBLIC_KEY": &c.MinisignPublicKey,
		"SOURCE_REPO":         &c.SourceRepo,
		"LOG_LEVEL":           &c.LogLevel,
	}
	for k, dst := range str {
		if v, ok := vars[EnvPrefix+k]; ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MAX_ATTEMPTS":  &c.MaxAttempts,
		"MAX_REDIRECTS": &c.MaxRedirects,
	}
	for k, dst := range ints {
		if v, ok := vars[EnvPrefix+k]; ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s must be an integer", EnvPrefix, k)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"BACKOFF_BASE":    &c.BackoffBase,
		"ATTEMPT_TIMEOUT": &c.AttemptTimeout,
	}
	for k, dst := range durations {
		if v, ok := vars[EnvPrefix+k]; ok && v != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s must be a duration such as 1s or 500ms", EnvPrefix, k)
			}
			*dst = d
		}
	}
	return nil
}

// Validate normalises and checks every field.
func (c *Config) Validate(ctx context.Context, v validator.Validator) error {
	var err error
	if c.App, err = v.ValidateName(ctx, "app", c.App); err != nil {
		return err
	}
	if c.Helper, err = v.ValidateName(ctx, "helper", c.Helper); err != nil {
		return err
	}
	if c.Org, err = v.ValidateName(ctx, "org", c.Org); err != nil {
		return err
	}
	if c.Repo, err = v.ValidateName(ctx, "repo", c.Repo); err != nil {
		return err
	}
	if c.Host, err = v.ValidateURL(ctx, "host", c.Host); err != nil {
		return err
	}
	if c.APIHost, err = v.ValidateURL(ctx, "api_host", c.APIHost); err != nil {
		return err
	}
	if c.Version, err = v.ValidateVersion(ctx, c.Version); err != nil {
		return err
	}
	if c.Extractor, err = v.ValidateExtractor(ctx, c.Extractor); err != nil {
		return err
	}
	if c.LogLevel, err = v.ValidateLoglevel(ctx, c.LogLevel); err != nil {
		return err
	}
	if c.MaxAttempts, err = v.ValidateAttempts(ctx, c.MaxAttempts); err != nil {
		return err
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("max_redirects cannot be negative")
	}
	if err := v.ValidateBackoff(ctx, c.BackoffBase); err != nil {
		return err
	}
	if err := v.ValidateTimeout(ctx, "attempt_timeout", c.AttemptTimeout); err != nil {
		return err
	}
	if strings.TrimSpace(c.InstallRoot) == "" {
		return fmt.Errorf("install_root cannot be empty")
	}
	c.InstallRoot = filepath.Clean(c.InstallRoot)
	return nil
}

// HomeDir correctly determines the user's home directory, even when running
// under `sudo`. It checks for the `SUDO_USER` environment variable and falls back
// to the current user's home directory.
func HomeDir() (string, error) {
	sudoUser := os.Getenv("SUDO_USER")
	if sudoUser != "" {
		u, err := user.Lookup(sudoUser)
		if err != nil {
			return "", fmt.Errorf("failed to lookup sudo user %s: %w", sudoUser, err)
		}
		return u.HomeDir, nil
	}
	return os.UserHomeDir()
}

func environMap(environ []string) map[string]string {
	if environ == nil {
		environ = os.Environ()
	}
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			out[k] = v
		}
	}
	return out
}
