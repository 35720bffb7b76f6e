package config

import "time"

const (
	apiBaseURLEnvVar = "API_BASE_URL"
	apiTimeoutEnvVar = "API_TIMEOUT"
)

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
}

type API struct {
	src *source
}

var _ APIConfig = API{}

// GetAPIBaseURL is the root of the campus REST API, e.g. "http://localhost:8000".
func (a API) GetAPIBaseURL() string {
	return a.src.get(apiBaseURLEnvVar, "http://localhost:8000")
}

func (a API) GetAPITimeout() time.Duration {
	return a.src.getDuration(apiTimeoutEnvVar, 10*time.Second)
}
