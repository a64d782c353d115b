package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/MKhiriev/cloudsync/internal/codec"
	"github.com/MKhiriev/cloudsync/internal/config"
	"github.com/MKhiriev/cloudsync/internal/engine"
	"github.com/MKhiriev/cloudsync/internal/logger"
	"github.com/MKhiriev/cloudsync/internal/remote"
	"github.com/MKhiriev/cloudsync/internal/statestore"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	cfg, err := config.GetConfig()
	if err != nil {
		logger.NewLogger("syncd").Fatal().Err(err).Msg("error getting configs")
	}

	log := logger.NewLogger("syncd")
	if cfg.Logging.File != "" {
		log = logger.NewFileLogger("syncd", cfg.Logging.File)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state, err := statestore.NewSQLite(ctx, cfg.Storage.DSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create state store")
	}
	defer func() {
		if closer, ok := state.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				log.Err(err).Msg("close state store")
			}
		}
	}()

	executor, provisioner := remote.NewHTTPExecutor(remote.HTTPClientConfig{
		BaseURL: cfg.Remote.BaseURL,
		Zone:    cfg.Engine.Zone,
		Timeout: cfg.Remote.RequestTimeout,
	})

	typ := codec.DocumentType()
	if cfg.Engine.RecordType != "" {
		typ.Name = cfg.Engine.RecordType
	}

	keys := config.NewKeys(cfg.Engine.Zone)
	eng, err := engine.New(ctx, engine.Config{
		UploadBufferKey:     keys.UploadBuffer,
		DeleteBufferKey:     keys.DeleteBuffer,
		ChangeTokenKey:      keys.ChangeToken,
		ZoneFlagKey:         keys.ZoneFlag,
		SubscriptionFlagKey: keys.SubscriptionFlag,
		MaxPushRetries:      cfg.Engine.MaxPushRetries,
		MaxPullRestarts:     cfg.Engine.MaxPullRestarts,
	}, engine.Dependencies{
		Executor:    executor,
		Provisioner: provisioner,
		Codec:       codec.NewJSON(typ),
		State:       state,
		Logger:      log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("create sync engine")
	}
	defer eng.Close()

	if err = eng.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start sync engine")
	}

	// Remote reports are applied by their consumer before the cursor is
	// committed; commit order is what makes a crash re-deliver instead
	// of lose.
	go func() {
		for changes := range eng.Changes() {
			log.Info().
				Int("pulled_updates", len(changes.PulledUpdates)).
				Int("pulled_deletes", len(changes.PulledDeletes)).
				Msg("remote changes received")
			if err := eng.CommitCursor(ctx, changes.Token); err != nil {
				log.Err(err).Msg("commit cursor")
			}
		}
	}()

	job := engine.NewSyncJob(eng)
	job.Start(ctx, cfg.Workers.SyncInterval)
	defer job.Stop()

	log.Info().Str("zone", cfg.Engine.Zone).Msg("syncd running")
	<-ctx.Done()
	log.Info().Msg("shutting down")
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
