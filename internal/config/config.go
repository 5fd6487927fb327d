// Package config loads dpsecret settings from the environment.
//
// An optional .env file in the working directory is read first; variables
// already set in the process environment take precedence over it. Every
// variable carries the DPSECRET_ prefix, e.g. DPSECRET_SCOPE=LocalMachine.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/illarion/dpsecret/internal/protection"
)

const (
	EnvPrefix  = "DPSECRET_"
	DotEnvFile = ".env"
)

// Config holds the settings shared by all commands
type Config struct {
	Scope           protection.Scope `env:"SCOPE" envDefault:"CurrentUser" validate:"scope"`
	Provider        string           `env:"PROVIDER" envDefault:"auto" validate:"oneof=auto dpapi local"`
	UserKeyBackend  string           `env:"USER_KEY_BACKEND" envDefault:"keyring" validate:"oneof=keyring file"`
	UserKeyStore    string           `env:"USER_KEY_STORE"`
	MachineKeyStore string           `env:"MACHINE_KEY_STORE"`
	Timeout         time.Duration    `env:"TIMEOUT" envDefault:"30s" validate:"gt=0"`
	LogLevel        string           `env:"LOG_LEVEL" envDefault:"warn" validate:"oneof=debug info warn error"`
	LogFormat       string           `env:"LOG_FORMAT" envDefault:"text" validate:"oneof=text json"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for an empty tag or nil func
	_ = v.RegisterValidation("scope", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.Uint8 {
			return false
		}
		return protection.Scope(fl.Field().Uint()).Valid()
	})
	return v
}

// Load reads .env (if present) and the DPSECRET_* variables
func Load() (*Config, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", DotEnvFile, err)
	}
	return Parse()
}

// Parse reads the DPSECRET_* variables from the process environment only
func Parse() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.Provider = strings.ToLower(cfg.Provider)
	cfg.UserKeyBackend = strings.ToLower(cfg.UserKeyBackend)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field values
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid configuration: %s%s: %q fails %q", EnvPrefix, envName(fe.StructField()), fmt.Sprint(fe.Value()), fe.Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ProtectionOptions returns the settings that select and configure the protection service
func (c *Config) ProtectionOptions(log *slog.Logger) protection.Options {
	return protection.Options{
		Provider:        c.Provider,
		UserKeyBackend:  c.UserKeyBackend,
		UserKeyStore:    c.UserKeyStore,
		MachineKeyStore: c.MachineKeyStore,
		Logger:          log,
	}
}

func envName(field string) string {
	f, ok := reflect.TypeOf(Config{}).FieldByName(field)
	if !ok {
		return strings.ToUpper(field)
	}
	name, _, _ := strings.Cut(f.Tag.Get("env"), ",")
	return name
}
