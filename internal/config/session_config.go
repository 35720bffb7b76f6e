package config

import "time"

const (
	warningMinutesEnvVar  = "SESSION_WARNING_MINUTES"
	checkIntervalEnvVar   = "SESSION_CHECK_INTERVAL"
	autoLogoutEnvVar      = "SESSION_AUTO_LOGOUT"
	retryAttemptsEnvVar   = "SESSION_RETRY_ATTEMPTS"
	retryBackoffEnvVar    = "SESSION_RETRY_BACKOFF"
	maxStalenessEnvVar    = "SESSION_MAX_STALENESS"
	recheckIntervalEnvVar = "SESSION_RECHECK_INTERVAL"
)

type SessionConfig interface {
	GetWarningMinutes() int
	GetCheckInterval() time.Duration
	GetAutoLogout() bool
	GetRetryAttempts() int
	GetRetryBackoff() time.Duration
	GetMaxStaleness() time.Duration
	GetRecheckInterval() time.Duration
}

type Session struct {
	src *source
}

var _ SessionConfig = Session{}

func (s Session) GetWarningMinutes() int {
	return s.src.getInt(warningMinutesEnvVar, 5)
}

func (s Session) GetCheckInterval() time.Duration {
	return s.src.getDuration(checkIntervalEnvVar, 30*time.Second)
}

func (s Session) GetAutoLogout() bool {
	return s.src.getBool(autoLogoutEnvVar, true)
}

// GetRetryAttempts is the number of retries after a transient profile failure.
func (s Session) GetRetryAttempts() int {
	return s.src.getInt(retryAttemptsEnvVar, 2)
}

func (s Session) GetRetryBackoff() time.Duration {
	return s.src.getDuration(retryBackoffEnvVar, 500*time.Millisecond)
}

func (s Session) GetMaxStaleness() time.Duration {
	return s.src.getDuration(maxStalenessEnvVar, 30*time.Minute)
}

// GetRecheckInterval is the minimum gap between focus-triggered re-checks.
func (s Session) GetRecheckInterval() time.Duration {
	return s.src.getDuration(recheckIntervalEnvVar, 5*time.Second)
}
