package config

import (
	"strings"

	"golang.org/x/text/language"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	folderEnvVar   = "FOLDER"
	envEnvVar      = "ENV"
	localeEnvVar   = "LOCALE"
	logLevelEnvVar = "LOG_LEVEL"
)

type EnvVars struct {
	src *source
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.src.get(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.src.get(appNameVar, "Campus Portal")
}

func (e EnvVars) GetDataFolder() string {
	return e.src.get(folderEnvVar, "./data")
}

func (e EnvVars) GetEnv() string {
	return e.src.get(envEnvVar, "DEV")
}

// GetLanguage returns the locale used for notices and remaining-time text.
// Unknown locales fall back to English.
func (e EnvVars) GetLanguage() language.Tag {
	tag, err := language.Parse(e.src.get(localeEnvVar, "en"))
	if err != nil {
		return language.English
	}
	return tag
}

func (e EnvVars) GetLogLevel() string {
	return e.src.get(logLevelEnvVar, "info")
}
