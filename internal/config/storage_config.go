package config

import "path/filepath"

const (
	storageBackendEnvVar  = "STORAGE_BACKEND"
	credentialsFileEnvVar = "CREDENTIALS_FILE"
	passphraseEnvVar      = "CREDENTIALS_PASSPHRASE"
	redisAddrEnvVar       = "REDIS_ADDR"
	redisKeyEnvVar        = "REDIS_KEY"
	sqlitePathEnvVar      = "SQLITE_PATH"
)

const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

type StorageConfig interface {
	GetStorageBackend() string
	GetCredentialsFile() string
	GetCredentialsPassphrase() string
	GetRedisAddr() string
	GetRedisKey() string
	GetSQLitePath() string
}

type Storage struct {
	src *source
}

var _ StorageConfig = Storage{}

// GetStorageBackend returns one of BackendFile, BackendRedis or BackendSQLite.
func (s Storage) GetStorageBackend() string {
	return s.src.get(storageBackendEnvVar, BackendFile)
}

func (s Storage) GetCredentialsFile() string {
	return s.src.get(credentialsFileEnvVar, filepath.Join(s.dataFolder(), "credentials.json"))
}

// GetCredentialsPassphrase enables at-rest encryption of the credentials file when set.
func (s Storage) GetCredentialsPassphrase() string {
	return s.src.get(passphraseEnvVar, "")
}

func (s Storage) GetRedisAddr() string {
	return s.src.get(redisAddrEnvVar, "localhost:6379")
}

func (s Storage) GetRedisKey() string {
	return s.src.get(redisKeyEnvVar, "campus-portal:credentials")
}

func (s Storage) GetSQLitePath() string {
	return s.src.get(sqlitePathEnvVar, filepath.Join(s.dataFolder(), "portal.db"))
}

func (s Storage) dataFolder() string {
	return EnvVars{s.src}.GetDataFolder()
}
