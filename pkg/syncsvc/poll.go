package syncsvc

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/vincitamore/vitrum/pkg/docindex"
)

// pollLoop ticks every 60s and polls every adopted, non-rejected
// document's origin for checksum drift (spec §4.F "Origin polling").
func (s *Service) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollAll(ctx)
		}
	}
}

func (s *Service) pollAll(ctx context.Context) {
	for _, doc := range s.index.All() {
		if doc.Federation == nil || doc.Federation.SyncStatus == docindex.SyncRejected {
			continue
		}
		s.pollOne(ctx, doc)
	}
}

func (s *Service) pollOne(ctx context.Context, doc *docindex.Document) {
	peer, live, ok := s.registry.Get(doc.Federation.OriginPeer)
	if !ok || live.Status != "online" {
		return
	}

	pollCtx, cancel := context.WithTimeout(ctx, pollBudget)
	defer cancel()

	remote, err := s.fetcher.FetchChecksum(pollCtx, fmt.Sprintf("%s:%d", peer.Host, peer.Port), string(peer.Protocol), doc.Federation.OriginPath)
	if err != nil {
		s.logger.Warn("origin checksum poll failed", "path", doc.Path, "peer", peer.Name, "error", err)
		return
	}

	meta := *doc.Federation
	now := time.Now().UTC().Format(time.RFC3339)

	if remote.Checksum == doc.Federation.OriginChecksum {
		meta.LastSyncCheck = now
		s.persist(doc.Path, &meta, doc.Federation.SyncStatus, doc.Federation.SyncStatus)
		return
	}

	oldStatus := doc.Federation.SyncStatus
	var newStatus docindex.SyncStatus
	switch oldStatus {
	case docindex.SyncLocalModified:
		newStatus = docindex.SyncConflict
	default:
		newStatus = docindex.SyncOriginModified
	}

	meta.OriginChecksum = remote.Checksum
	meta.SyncStatus = newStatus
	meta.LastSyncCheck = now
	s.persist(doc.Path, &meta, oldStatus, newStatus)
}

func (s *Service) persist(relPath string, meta *docindex.FederationMeta, oldStatus, newStatus docindex.SyncStatus) {
	absPath := path.Join(s.root, relPath)
	if err := docindex.SetFederationField(s.fs, absPath, meta); err != nil {
		s.logger.Warn("failed to persist origin-poll federation update", "path", relPath, "error", err)
		return
	}
	if newStatus != oldStatus {
		s.bus.SyncStatusChanged(relPath, string(oldStatus), string(newStatus), meta.OriginPeer)
	}
}
