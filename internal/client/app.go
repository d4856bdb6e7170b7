// SPDX-License-Identifier: Apache-2.0

// Package client wires the sync core together into a runnable application:
// configuration, logging, local persistence, the server transport, and the
// digest-driven stores of the personal collection.
package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/MKhiriev/kegsync/internal/config"
	"github.com/MKhiriev/kegsync/internal/crypto"
	"github.com/MKhiriev/kegsync/internal/digest"
	"github.com/MKhiriev/kegsync/internal/filestore"
	"github.com/MKhiriev/kegsync/internal/keg"
	"github.com/MKhiriev/kegsync/internal/kv"
	"github.com/MKhiriev/kegsync/internal/logger"
	"github.com/MKhiriev/kegsync/internal/retry"
	"github.com/MKhiriev/kegsync/internal/transport"
	"github.com/MKhiriev/kegsync/models"
)

// collectionKeyEnv holds the base64 collection key. Key exchange is outside
// the sync core; the app expects the key to be provisioned.
const collectionKeyEnv = "KEGSYNC_COLLECTION_KEY"

// App owns every long-lived component of the client and their shutdown
// order.
type App struct {
	cfg      *config.StructuredConfig
	logger   *logger.Logger
	adapter  transport.Transport
	cipher   crypto.Cipher
	tracker  *digest.Tracker
	runner   *retry.Runner
	kvs      *kv.Store
	registry *filestore.Registry

	personal *keg.KegDb
	boot     *keg.BootKeg
	files    *filestore.Store
}

// NewApp builds the full component graph from cfg. Nothing talks to the
// server yet; Run does.
func NewApp(ctx context.Context, cfg *config.StructuredConfig, log *logger.Logger) (*App, error) {
	kvs, err := kv.Open(ctx, cfg.Storage.KVPath, log)
	if err != nil {
		return nil, fmt.Errorf("open local kv store: %w", err)
	}

	adapter, err := transport.NewHTTPTransport(transport.HTTPConfig{
		Address:        cfg.Transport.Address,
		RequestTimeout: cfg.Transport.RequestTimeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}

	cipher := crypto.NewCipher()
	tracker := digest.NewTracker(log)
	runner := retry.NewRunner(log)

	key, err := collectionKey(cipher, log)
	if err != nil {
		return nil, err
	}

	collectionID := "personal:" + cfg.App.Identity
	personal := keg.NewKegDb(collectionID, keg.KindPersonal, key, adapter, cipher, log)
	boot := keg.NewBootKeg(personal, runner, tracker)
	personal.Boot = boot

	files := filestore.NewStore(personal, adapter, cipher, tracker, runner, kvs, filestore.Options{
		PageSize:         cfg.Sync.PageSize,
		UpdateDebounce:   cfg.Sync.UpdateDebounce,
		SettleTimeout:    cfg.Sync.SettleTimeout,
		MigrationRetries: uint64(cfg.Sync.MigrationRetries),
		Identity:         cfg.App.Identity,
	}, log)

	registry := filestore.NewRegistry()
	registry.Add(files)

	tracker.RegisterCollection(collectionID,
		models.KegTypeFile, models.KegTypeFolders, models.KegTypeBoot)

	return &App{
		cfg:      cfg,
		logger:   log,
		adapter:  adapter,
		cipher:   cipher,
		tracker:  tracker,
		runner:   runner,
		kvs:      kvs,
		registry: registry,
		personal: personal,
		boot:     boot,
		files:    files,
	}, nil
}

// collectionKey reads the provisioned collection key. Without one the
// client runs with a fresh throwaway key: useful against empty test
// collections, useless against existing encrypted data.
func collectionKey(cipher crypto.Cipher, log *logger.Logger) ([]byte, error) {
	if encoded := os.Getenv(collectionKeyEnv); encoded != "" {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", collectionKeyEnv, err)
		}
		return key, nil
	}

	log.Warn().Msg("no collection key provisioned, generating a throwaway key")
	return cipher.GenerateKey()
}

// Run connects the event stream to the stores, performs the initial load,
// resumes interrupted transfers, and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.pumpEvents()

	if err := a.boot.Init(ctx); err != nil {
		return fmt.Errorf("init boot keg: %w", err)
	}
	if err := a.files.Load(ctx); err != nil {
		return fmt.Errorf("load file store: %w", err)
	}
	if err := a.files.ResumeInterrupted(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("resuming interrupted transfers failed")
	}

	a.logger.Info().
		Str("collection", a.personal.ID).
		Int("files", len(a.files.Files())).
		Msg("client ready")

	<-ctx.Done()
	return a.Close()
}

// pumpEvents translates transport signals into tracker updates and store
// pause/resume. It exits when the transport closes its stream.
func (a *App) pumpEvents() {
	for ev := range a.adapter.Events() {
		switch ev.Kind {
		case transport.EventDigestUpdate:
			a.tracker.ProcessDigestEvent(ev.Digest)
		case transport.EventDisconnected:
			for _, s := range a.registry.Stores() {
				s.Pause()
			}
		case transport.EventAuthenticated:
			for _, s := range a.registry.Stores() {
				s.Resume()
			}
		case transport.EventConnected:
			// wait for EventAuthenticated before resuming work
		}
	}
}

// Close tears the app down: stores first so nothing reacts to a closing
// transport, then the transport, then local persistence.
func (a *App) Close() error {
	for _, s := range a.registry.Stores() {
		s.Dispose()
	}
	a.boot.Dispose()

	if err := a.adapter.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("transport close failed")
	}
	return a.kvs.Close()
}

// Files exposes the personal collection's file store.
func (a *App) Files() *filestore.Store {
	return a.files
}

// Registry exposes the cross-store lookup registry.
func (a *App) Registry() *filestore.Registry {
	return a.registry
}
