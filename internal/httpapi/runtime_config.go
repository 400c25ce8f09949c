package httpapi

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joeshaw/envdecode"
)

const (
	envDevMode            = "DEV_MODE"
	envProductionMode     = "PRODUCTION_MODE"
	envCORSAllowedOrigins = "BIZZY_CORS_ALLOWED_ORIGINS"
)

const (
	StoreFile     = "file"
	StorePostgres = "postgres"

	AuthModeDev = "dev"
	AuthModeJWT = "jwt"
)

type RuntimeMode string

const (
	RuntimeModeDevelopment RuntimeMode = "development"
	RuntimeModeProduction  RuntimeMode = "production"
)

type RuntimeConfig struct {
	Mode               RuntimeMode
	CORSAllowedOrigins []string
	AllowAnyCORSOrigin bool
	Settings
}

// Settings are the BIZZY_* variables decoded by envdecode.
type Settings struct {
	Addr              string  `env:"BIZZY_ADDR"`
	Store             string  `env:"BIZZY_STORE,default=file"`
	DataFile          string  `env:"BIZZY_DATA_FILE,default=./bizzytrack_data.json"`
	DatabaseURL       string  `env:"BIZZY_DATABASE_URL"`
	AuthMode          string  `env:"BIZZY_AUTH_MODE"`
	JWTSecret         string  `env:"BIZZY_JWT_SECRET"`
	RateLimitRPS      float64 `env:"BIZZY_RATE_LIMIT_RPS,default=20"`
	RateLimitBurst    int     `env:"BIZZY_RATE_LIMIT_BURST,default=40"`
	ReconcileSchedule string  `env:"BIZZY_RECONCILE_SCHEDULE"`
	LogLevel          string  `env:"BIZZY_LOG_LEVEL,default=info"`
	CORSOrigins       string  `env:"BIZZY_CORS_ALLOWED_ORIGINS"`
}

func (m RuntimeMode) IsDevelopment() bool {
	return m == RuntimeModeDevelopment
}

func (m RuntimeMode) IsProduction() bool {
	return m == RuntimeModeProduction
}

func DefaultListenAddr(mode RuntimeMode) string {
	if mode.IsDevelopment() {
		return "127.0.0.1:8070"
	}
	return ":8070"
}

// ListenAddr is BIZZY_ADDR, or the mode default when it is unset.
func (c RuntimeConfig) ListenAddr() string {
	if addr := strings.TrimSpace(c.Addr); addr != "" {
		return addr
	}
	return DefaultListenAddr(c.Mode)
}

func LoadRuntimeConfigFromEnv() (RuntimeConfig, error) {
	mode, err := runtimeModeFromEnv()
	if err != nil {
		return RuntimeConfig{}, err
	}

	settings, err := loadSettings(mode)
	if err != nil {
		return RuntimeConfig{}, err
	}

	allowedOrigins := parseCSV(settings.CORSOrigins)
	if mode.IsProduction() {
		for _, origin := range allowedOrigins {
			if origin == "*" {
				return RuntimeConfig{}, fmt.Errorf("%s cannot include wildcard origin in production mode", envCORSAllowedOrigins)
			}
		}
		return RuntimeConfig{
			Mode:               mode,
			CORSAllowedOrigins: allowedOrigins,
			Settings:           settings,
		}, nil
	}

	if len(allowedOrigins) == 0 {
		return RuntimeConfig{
			Mode:               mode,
			CORSAllowedOrigins: []string{"*"},
			AllowAnyCORSOrigin: true,
			Settings:           settings,
		}, nil
	}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			return RuntimeConfig{
				Mode:               mode,
				CORSAllowedOrigins: []string{"*"},
				AllowAnyCORSOrigin: true,
				Settings:           settings,
			}, nil
		}
	}

	return RuntimeConfig{
		Mode:               mode,
		CORSAllowedOrigins: allowedOrigins,
		Settings:           settings,
	}, nil
}

func loadSettings(mode RuntimeMode) (Settings, error) {
	var settings Settings
	if err := envdecode.Decode(&settings); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Settings{}, fmt.Errorf("decode environment: %w", err)
	}

	settings.Store = strings.ToLower(strings.TrimSpace(settings.Store))
	if settings.Store == "" {
		settings.Store = StoreFile
	}
	settings.AuthMode = strings.ToLower(strings.TrimSpace(settings.AuthMode))
	if settings.AuthMode == "" {
		settings.AuthMode = AuthModeJWT
		if mode.IsDevelopment() {
			settings.AuthMode = AuthModeDev
		}
	}

	switch settings.Store {
	case StoreFile:
	case StorePostgres:
		if strings.TrimSpace(settings.DatabaseURL) == "" {
			return Settings{}, errors.New("BIZZY_DATABASE_URL is required when BIZZY_STORE is postgres")
		}
	default:
		return Settings{}, fmt.Errorf("BIZZY_STORE must be %q or %q, got %q", StoreFile, StorePostgres, settings.Store)
	}

	switch settings.AuthMode {
	case AuthModeJWT:
	case AuthModeDev:
		if mode.IsProduction() {
			return Settings{}, errors.New("BIZZY_AUTH_MODE=dev is not allowed in production mode")
		}
	default:
		return Settings{}, fmt.Errorf("BIZZY_AUTH_MODE must be %q or %q, got %q", AuthModeDev, AuthModeJWT, settings.AuthMode)
	}

	if settings.RateLimitRPS < 0 {
		return Settings{}, errors.New("BIZZY_RATE_LIMIT_RPS cannot be negative")
	}
	if settings.RateLimitRPS > 0 && settings.RateLimitBurst < 1 {
		return Settings{}, errors.New("BIZZY_RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled")
	}

	return settings, nil
}

func runtimeModeFromEnv() (RuntimeMode, error) {
	devMode, _, err := parseOptionalBoolEnv(envDevMode)
	if err != nil {
		return "", err
	}
	productionMode, _, err := parseOptionalBoolEnv(envProductionMode)
	if err != nil {
		return "", err
	}
	if devMode && productionMode {
		return "", fmt.Errorf("%s and %s cannot both be true", envDevMode, envProductionMode)
	}
	if devMode {
		return RuntimeModeDevelopment, nil
	}

	return RuntimeModeProduction, nil
}

func parseOptionalBoolEnv(key string) (value bool, set bool, err error) {
	rawValue, exists := os.LookupEnv(key)
	if !exists {
		return false, false, nil
	}
	trimmedValue := strings.TrimSpace(rawValue)
	if trimmedValue == "" {
		return false, false, nil
	}
	parsedValue, parseErr := strconv.ParseBool(trimmedValue)
	if parseErr != nil {
		return false, true, fmt.Errorf("%s must be a boolean value: %w", key, parseErr)
	}
	return parsedValue, true, nil
}

func parseCSV(rawValue string) []string {
	parts := strings.Split(rawValue, ",")
	values := make([]string, 0, len(parts))
	seen := map[string]struct{}{}
	for _, part := range parts {
		trimmedPart := strings.TrimSpace(part)
		if trimmedPart == "" {
			continue
		}
		if _, exists := seen[trimmedPart]; exists {
			continue
		}
		seen[trimmedPart] = struct{}{}
		values = append(values, trimmedPart)
	}
	return values
}
