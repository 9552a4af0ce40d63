// Package server wires the five core components plus the Federation Query
// Surface into one running process, mirroring hermes's internal/server
// Server struct: a plain struct of constructor-injected dependencies, with
// no business logic of its own.
package server

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/vincitamore/vitrum/internal/config"
	"github.com/vincitamore/vitrum/pkg/bus"
	"github.com/vincitamore/vitrum/pkg/docindex"
	"github.com/vincitamore/vitrum/pkg/federation"
	"github.com/vincitamore/vitrum/pkg/peers"
	"github.com/vincitamore/vitrum/pkg/syncsvc"
	"github.com/vincitamore/vitrum/pkg/watcher"
)

// Server bundles every core component for one workspace root.
type Server struct {
	Config *config.Config
	Logger hclog.Logger

	Index      *docindex.Index
	Watcher    *watcher.Watcher
	Bus        *bus.Bus
	Peers      *peers.Registry
	Sync       *syncsvc.Service
	Client     *federation.Client
	Federation *federation.Surface

	fs afero.Fs
}

// New builds and wires every component but does not start any background
// loops; call Start to do that.
func New(cfg *config.Config, logger hclog.Logger) (*Server, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	fs := afero.NewOsFs()
	index := docindex.New(fs, cfg.OrgRoot, logger)
	if err := index.Build(); err != nil {
		return nil, fmt.Errorf("initial index build: %w", err)
	}

	eventBus := bus.New(256)

	peerRegistry, err := peers.New(cfg.OrgRoot, logger)
	if err != nil {
		return nil, fmt.Errorf("init peer registry: %w", err)
	}
	peerRegistry.AddSink(eventBus)

	client := federation.NewClient(peerRegistry)

	syncService := syncsvc.New(fs, cfg.OrgRoot, index, peerRegistry, client, eventBus, logger)

	fedSurface := federation.New(index, peerRegistry, syncService)

	fsWatcher, err := watcher.New(cfg.OrgRoot, index, logger)
	if err != nil {
		return nil, fmt.Errorf("init watcher: %w", err)
	}
	fsWatcher.AddSink(&busEventSink{bus: eventBus})
	fsWatcher.AddSink(syncService)

	return &Server{
		Config:     cfg,
		Logger:     logger,
		Index:      index,
		Watcher:    fsWatcher,
		Bus:        eventBus,
		Peers:      peerRegistry,
		Sync:       syncService,
		Client:     client,
		Federation: fedSurface,
		fs:         fs,
	}, nil
}

// Start launches the Watcher, Peer Registry, and Sync Service loops.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	s.Peers.Start(ctx)
	s.Sync.Start(ctx)
	return nil
}

// Stop tears down every background loop.
func (s *Server) Stop() {
	_ = s.Watcher.Stop()
	s.Peers.Stop()
	s.Sync.Stop()
}

// busEventSink adapts pkg/bus.Bus to pkg/watcher.Sink, translating a
// debounced filesystem event into the matching Bus emission (spec §4.D:
// the Bus broadcasts "update"/"remove" for local filesystem changes).
type busEventSink struct {
	bus *bus.Bus
}

func (b *busEventSink) OnEvent(ev watcher.Event) {
	switch ev.Kind {
	case watcher.KindRemove:
		b.bus.Remove(ev.Path)
	default:
		b.bus.Update(ev.Path)
	}
}
