package syncsvc

import (
	"path"
	"time"

	"github.com/vincitamore/vitrum/pkg/docindex"
	"github.com/vincitamore/vitrum/pkg/watcher"
)

// OnEvent implements watcher.Sink: the Watcher calls this after mutating
// the Index, letting the Sync Service classify local edits (spec §4.F
// "Local edit classification").
func (s *Service) OnEvent(ev watcher.Event) {
	if ev.Kind == watcher.KindRemove {
		return
	}
	s.handleLocalChange(ev.Path)
}

// handleLocalChange implements spec §4.F verbatim: documents with a
// federation block and a non-rejected status have their local checksum
// re-derived and, on divergence, transition status.
func (s *Service) handleLocalChange(relPath string) {
	doc, ok := s.index.Get(relPath)
	if !ok || doc.Federation == nil {
		return
	}
	if doc.Federation.SyncStatus == docindex.SyncRejected {
		return
	}

	currentChecksum := docindex.Checksum(doc.Content)
	if currentChecksum == doc.Federation.LocalChecksum {
		return
	}

	oldStatus := doc.Federation.SyncStatus
	var newStatus docindex.SyncStatus
	switch oldStatus {
	case docindex.SyncOriginModified:
		newStatus = docindex.SyncConflict
	default:
		newStatus = docindex.SyncLocalModified
	}

	meta := *doc.Federation
	meta.LocalChecksum = currentChecksum
	meta.SyncStatus = newStatus
	meta.LastSyncCheck = time.Now().UTC().Format(time.RFC3339)

	absPath := path.Join(s.root, relPath)
	if err := docindex.SetFederationField(s.fs, absPath, &meta); err != nil {
		s.logger.Warn("failed to persist local-change federation update", "path", relPath, "error", err)
		return
	}

	if newStatus != oldStatus {
		s.bus.SyncStatusChanged(relPath, string(oldStatus), string(newStatus), doc.Federation.OriginPeer)
	}
}
