package syncsvc

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/vincitamore/vitrum/pkg/docindex"
	"github.com/vincitamore/vitrum/pkg/peers"
)

const (
	adoptionBudget = 10 * time.Second
	pollBudget     = 5 * time.Second
	pollInterval   = 60 * time.Second
)

// IndexReader is the subset of pkg/docindex.Index the Sync Service needs
// to read. Mutation always happens indirectly: the Sync Service writes
// files via the field-level updaters and the Watcher/Index absorb the
// resulting filesystem event (spec §4.F).
type IndexReader interface {
	Get(path string) (*docindex.Document, bool)
	All() []*docindex.Document
}

// PeerLookup is the subset of pkg/peers.Registry the Sync Service needs.
type PeerLookup interface {
	Get(name string) (peers.ConfiguredPeer, peers.LiveStatus, bool)
}

// BusSink is the subset of pkg/bus.Bus the Sync Service emits on.
type BusSink interface {
	SyncStatusChanged(path, oldStatus, newStatus, peer string)
	PeerDocumentReceived(path string)
}

// Service implements adoption, incoming delivery, local-edit
// classification, origin polling, conflict diff, and resolution.
type Service struct {
	fs       afero.Fs
	root     string
	index    IndexReader
	registry PeerLookup
	fetcher  PeerFetcher
	bus      BusSink
	logger   hclog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc

	auditMu sync.Mutex
	audit   []AuditEntry
}

// New builds a Sync Service rooted at root, operating over fs.
func New(fs afero.Fs, root string, index IndexReader, registry PeerLookup, fetcher PeerFetcher, bus BusSink, logger hclog.Logger) *Service {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Service{
		fs:       fs,
		root:     root,
		index:    index,
		registry: registry,
		fetcher:  fetcher,
		bus:      bus,
		logger:   logger.Named("syncsvc"),
	}
}

// Start launches the 60s origin-polling loop.
func (s *Service) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	go s.pollLoop(ctx)
}

// Stop halts the origin-polling loop.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}
