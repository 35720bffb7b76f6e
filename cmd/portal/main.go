package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/campus-portal/auth"
	"github.com/jrsteele09/campus-portal/credentials"
	"github.com/jrsteele09/campus-portal/internal/config"
	"github.com/jrsteele09/campus-portal/monitor"
	"github.com/jrsteele09/campus-portal/notice"
	"github.com/jrsteele09/campus-portal/profile"
	"github.com/jrsteele09/campus-portal/server"
	"github.com/jrsteele09/campus-portal/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running portal")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Portal stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return fmt.Errorf("config.New: %w", err)
	}
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	creds, closeCreds, err := openCredentials(ctx, c)
	if err != nil {
		return err
	}
	defer closeCreds()

	client, err := profile.NewClient(c.GetAPIBaseURL(), profile.WithHTTPClient(&http.Client{Timeout: c.GetAPITimeout()}))
	if err != nil {
		return fmt.Errorf("profile.NewClient: %w", err)
	}

	notices := notice.NewQueue(notice.DefaultQueueSize)
	notifier := notice.Multi(notices, notice.NewLogNotifier())
	store := session.NewStore(creds)

	bootstrapper := auth.NewBootstrapper(auth.Deps{
		Credentials: creds,
		Users:       client,
		Store:       store,
		Notifier:    notifier,
	},
		auth.WithAuthenticator(client),
		auth.WithRetry(c.GetRetryAttempts(), c.GetRetryBackoff()),
		auth.WithMaxStaleness(c.GetMaxStaleness()),
		auth.WithRecheckLimit(c.GetRecheckInterval(), 1),
	)

	mon := monitor.New(monitor.Config{
		WarningMinutes: c.GetWarningMinutes(),
		CheckInterval:  c.GetCheckInterval(),
		AutoLogout:     c.GetAutoLogout(),
	}, monitor.Deps{
		Credentials: creds,
		Store:       store,
		Notifier:    notifier,
		OnExpired: func() {
			log.Info().Str("redirect", server.RouteLanding).Msg("Session expired, protected pages now redirect")
		},
	})

	portal, err := server.New(c, server.Deps{
		Credentials:  creds,
		Store:        store,
		Bootstrapper: bootstrapper,
		Monitor:      mon,
		Notices:      notices,
	}, server.WithAPITransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: c.GetAPITimeout(),
		IdleConnTimeout:       90 * time.Second,
	}))
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: portal}
	go listenAndServe(httpServer)

	portal.Start(ctx)
	watchCredentials(ctx, c, mon)
	watchResume(ctx, mon, bootstrapper)

	waitForStopSignal()
	cancel()
	mon.Stop()
	returnError = shutdown(httpServer)
	return returnError
}

// openCredentials selects the credential backend named in the config.
func openCredentials(ctx context.Context, c config.Config) (credentials.Repo, func(), error) {
	switch c.GetStorageBackend() {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", c.GetRedisAddr(), err)
		}
		log.Info().Str("addr", c.GetRedisAddr()).Msg("Using redis credential store")
		return credentials.NewRedisRepo(client, c.GetRedisKey()), func() { _ = client.Close() }, nil
	case config.BackendSQLite:
		repo, err := credentials.OpenSQLiteRepo(ctx, c.GetSQLitePath())
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", c.GetSQLitePath(), err)
		}
		log.Info().Str("path", c.GetSQLitePath()).Msg("Using sqlite credential store")
		return repo, func() { _ = repo.Close() }, nil
	case config.BackendFile:
		var options []credentials.FileRepoOption
		if passphrase := c.GetCredentialsPassphrase(); passphrase != "" {
			options = append(options, credentials.WithPassphrase(passphrase))
		}
		log.Info().Str("path", c.GetCredentialsFile()).Msg("Using file credential store")
		return credentials.NewFileRepo(c.GetCredentialsFile(), options...), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", c.GetStorageBackend())
	}
}

// watchCredentials re-arms the monitor when another process rewrites the
// credentials file. Only the file backend has a file to watch.
func watchCredentials(ctx context.Context, c config.Config, mon *monitor.Monitor) {
	if c.GetStorageBackend() != config.BackendFile {
		return
	}
	err := credentials.Watch(ctx, c.GetCredentialsFile(), func() {
		if err := mon.Sync(ctx); err != nil {
			log.Err(err).Msg("Unable to sync expiration monitor after credentials change")
		}
	})
	if err != nil {
		log.Err(err).Msg("Credentials watcher not started")
	}
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("Portal listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
