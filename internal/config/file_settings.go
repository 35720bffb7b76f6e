package config

import (
	"strconv"
	"strings"
)

// fileSettings is the layout of portal.toml. Every field maps onto the
// environment variable that overrides it.
type fileSettings struct {
	Port       string `toml:"port"`
	AppName    string `toml:"app_name"`
	DataFolder string `toml:"data_folder"`
	Env        string `toml:"env"`
	Locale     string `toml:"locale"`
	LogLevel   string `toml:"log_level"`

	API struct {
		BaseURL string `toml:"base_url"`
		Timeout string `toml:"timeout"`
	} `toml:"api"`

	Cors struct {
		AllowedOrigins []string `toml:"allowed_origins"`
	} `toml:"cors"`

	Session struct {
		WarningMinutes  *int   `toml:"warning_minutes"`
		CheckInterval   string `toml:"check_interval"`
		AutoLogout      *bool  `toml:"auto_logout"`
		RetryAttempts   *int   `toml:"retry_attempts"`
		RetryBackoff    string `toml:"retry_backoff"`
		MaxStaleness    string `toml:"max_staleness"`
		RecheckInterval string `toml:"recheck_interval"`
	} `toml:"session"`

	Storage struct {
		Backend    string `toml:"backend"`
		File       string `toml:"file"`
		Passphrase string `toml:"passphrase"`
		RedisAddr  string `toml:"redis_addr"`
		RedisKey   string `toml:"redis_key"`
		SQLitePath string `toml:"sqlite_path"`
	} `toml:"storage"`
}

func (f fileSettings) flatten() map[string]string {
	m := map[string]string{
		portEnvVar:            f.Port,
		appNameVar:            f.AppName,
		folderEnvVar:          f.DataFolder,
		envEnvVar:             f.Env,
		localeEnvVar:          f.Locale,
		logLevelEnvVar:        f.LogLevel,
		apiBaseURLEnvVar:      f.API.BaseURL,
		apiTimeoutEnvVar:      f.API.Timeout,
		checkIntervalEnvVar:   f.Session.CheckInterval,
		retryBackoffEnvVar:    f.Session.RetryBackoff,
		maxStalenessEnvVar:    f.Session.MaxStaleness,
		recheckIntervalEnvVar: f.Session.RecheckInterval,
		storageBackendEnvVar:  f.Storage.Backend,
		credentialsFileEnvVar: f.Storage.File,
		passphraseEnvVar:      f.Storage.Passphrase,
		redisAddrEnvVar:       f.Storage.RedisAddr,
		redisKeyEnvVar:        f.Storage.RedisKey,
		sqlitePathEnvVar:      f.Storage.SQLitePath,
	}
	if len(f.Cors.AllowedOrigins) > 0 {
		m[allowedOriginsEnvVar] = strings.Join(f.Cors.AllowedOrigins, ",")
	}
	if f.Session.WarningMinutes != nil {
		m[warningMinutesEnvVar] = strconv.Itoa(*f.Session.WarningMinutes)
	}
	if f.Session.AutoLogout != nil {
		m[autoLogoutEnvVar] = strconv.FormatBool(*f.Session.AutoLogout)
	}
	if f.Session.RetryAttempts != nil {
		m[retryAttemptsEnvVar] = strconv.Itoa(*f.Session.RetryAttempts)
	}
	return m
}
