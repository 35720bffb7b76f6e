package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
)

const (
	configFileEnvVar  = "PORTAL_CONFIG"
	defaultConfigFile = "portal.toml"
	defaultEnvFile    = ".env"
)

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	StorageConfig
	APIConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
	GetLanguage() language.Tag
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	Storage
	API
}

// New reads .env into the environment, then layers the TOML file named by
// PORTAL_CONFIG (default ./portal.toml) under it. Missing files are skipped.
func New() (Config, error) {
	return Load(defaultEnvFile, GetEnv(configFileEnvVar, defaultConfigFile))
}

// Load is New with explicit file locations. Values resolve from the
// environment first, then the TOML file, then built-in defaults.
func Load(envFile, tomlFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	src := &source{file: map[string]string{}}
	if tomlFile != "" {
		var settings fileSettings
		if _, err := toml.DecodeFile(tomlFile, &settings); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		} else {
			src.file = settings.flatten()
			log.Debug().Str("file", tomlFile).Msg("Loaded config file")
		}
	}

	return mainConfig{
		EnvVars: EnvVars{src},
		Cors:    Cors{src},
		Session: Session{src},
		Storage: Storage{src},
		API:     API{src},
	}, nil
}

// source resolves a setting by its environment variable name.
type source struct {
	file map[string]string
}

func (s *source) get(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	if s != nil {
		if value := s.file[envVar]; value != "" {
			return value
		}
	}
	return defaultValue
}

func (s *source) getInt(envVar string, defaultValue int) int {
	raw := s.get(envVar, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("var", envVar).Str("value", raw).Msg("Invalid integer setting, using default")
		return defaultValue
	}
	return v
}

func (s *source) getBool(envVar string, defaultValue bool) bool {
	raw := s.get(envVar, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warn().Str("var", envVar).Str("value", raw).Msg("Invalid boolean setting, using default")
		return defaultValue
	}
	return v
}

func (s *source) getDuration(envVar string, defaultValue time.Duration) time.Duration {
	raw := s.get(envVar, "")
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Warn().Str("var", envVar).Str("value", raw).Msg("Invalid duration setting, using default")
		return defaultValue
	}
	return v
}

func (s *source) getList(envVar string, defaultValue []string) []string {
	raw := s.get(envVar, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// GetEnv returns the environment variable or defaultValue when it is unset.
func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
