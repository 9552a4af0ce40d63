package syncsvc

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/vincitamore/vitrum/internal/apierr"
	"github.com/vincitamore/vitrum/pkg/docindex"
)

// ConflictDiff implements getConflictDiff (spec §4.F). Fetching origin
// content uses the same 10s budget as adoption.
func (s *Service) ConflictDiff(ctx context.Context, relPath string) (*ConflictDiff, error) {
	doc, ok := s.index.Get(relPath)
	if !ok || doc.Federation == nil {
		return nil, apierr.New(apierr.NotFound, "no such federated document")
	}

	peer, _, ok := s.registry.Get(doc.Federation.OriginPeer)
	if !ok {
		return nil, apierr.New(apierr.PeerOffline, "origin peer not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, adoptionBudget)
	defer cancel()

	remote, err := s.fetcher.FetchDocument(ctx, fmt.Sprintf("%s:%d", peer.Host, peer.Port), string(peer.Protocol), doc.Federation.OriginPath)
	if err != nil {
		return nil, apierr.Wrap(apierr.PeerTimeout, "failed to fetch origin content for diff", err)
	}

	return &ConflictDiff{
		LocalContent:   doc.Content,
		OriginContent:  remote.Content,
		BaseContent:    "",
		LocalChecksum:  doc.Federation.LocalChecksum,
		OriginChecksum: remote.Checksum,
	}, nil
}

// Resolve applies one of the four conflict-resolution actions (spec
// §4.F's state machine table).
func (s *Service) Resolve(ctx context.Context, req ResolveRequest) error {
	doc, ok := s.index.Get(req.Path)
	if !ok || doc.Federation == nil {
		return apierr.New(apierr.NotFound, "no such federated document")
	}

	peer := doc.Federation.OriginPeer

	// The state machine (spec §4.F) admits accept-origin/keep-local/merge
	// only from conflict; reject is valid from any non-rejected state.
	switch req.Action {
	case ResolveAcceptOrigin, ResolveKeepLocal, ResolveMerge:
		if doc.Federation.SyncStatus != docindex.SyncConflict {
			return apierr.New(apierr.BadRequest, "document is not in conflict")
		}
	case ResolveReject:
		if doc.Federation.SyncStatus == docindex.SyncRejected {
			return apierr.New(apierr.BadRequest, "document is already rejected")
		}
	default:
		return apierr.New(apierr.BadRequest, "unknown resolution action")
	}

	var err error
	switch req.Action {
	case ResolveAcceptOrigin:
		err = s.resolveAcceptOrigin(ctx, doc)
	case ResolveKeepLocal:
		err = s.resolveKeepLocal(doc)
	case ResolveMerge:
		err = s.resolveMerge(doc, req.MergedContent)
	case ResolveReject:
		err = s.resolveReject(ctx, doc, req.Comment)
	}
	if err != nil {
		return err
	}

	s.recordAudit(doc.Path, req.Action, peer)
	return nil
}

func (s *Service) resolveAcceptOrigin(ctx context.Context, doc *docindex.Document) error {
	peer, _, ok := s.registry.Get(doc.Federation.OriginPeer)
	if !ok {
		return apierr.New(apierr.PeerOffline, "origin peer not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, adoptionBudget)
	defer cancel()

	remote, err := s.fetcher.FetchDocument(ctx, fmt.Sprintf("%s:%d", peer.Host, peer.Port), string(peer.Protocol), doc.Federation.OriginPath)
	if err != nil {
		return apierr.Wrap(apierr.PeerTimeout, "failed to refetch origin for accept-origin", err)
	}

	if err := docindex.SetBody(s.fs, path.Join(s.root, doc.Path), remote.Content); err != nil {
		return apierr.Wrap(apierr.Internal, "failed to overwrite body", err)
	}

	meta := *doc.Federation
	meta.LocalChecksum = remote.Checksum
	meta.OriginChecksum = remote.Checksum
	meta.SyncStatus = docindex.SyncSynced
	meta.LastSyncCheck = time.Now().UTC().Format(time.RFC3339)
	return s.writeResolution(doc, &meta)
}

func (s *Service) resolveKeepLocal(doc *docindex.Document) error {
	meta := *doc.Federation
	meta.SyncStatus = docindex.SyncSynced
	meta.LastSyncCheck = time.Now().UTC().Format(time.RFC3339)
	return s.writeResolution(doc, &meta)
}

func (s *Service) resolveMerge(doc *docindex.Document, mergedContent string) error {
	if err := docindex.SetBody(s.fs, path.Join(s.root, doc.Path), mergedContent); err != nil {
		return apierr.Wrap(apierr.Internal, "failed to write merged content", err)
	}

	meta := *doc.Federation
	meta.LocalChecksum = docindex.Checksum(mergedContent)
	meta.SyncStatus = docindex.SyncSynced
	meta.LastSyncCheck = time.Now().UTC().Format(time.RFC3339)
	return s.writeResolution(doc, &meta)
}

func (s *Service) resolveReject(ctx context.Context, doc *docindex.Document, comment string) error {
	meta := *doc.Federation
	meta.SyncStatus = docindex.SyncRejected
	meta.LastSyncCheck = time.Now().UTC().Format(time.RFC3339)

	if err := s.writeResolution(doc, &meta); err != nil {
		return err
	}

	if comment != "" {
		if peer, _, ok := s.registry.Get(doc.Federation.OriginPeer); ok {
			respondCtx, cancel := context.WithTimeout(ctx, pollBudget)
			defer cancel()
			if err := s.fetcher.NotifyRespond(respondCtx, fmt.Sprintf("%s:%d", peer.Host, peer.Port), string(peer.Protocol), doc.Federation.OriginPath, comment); err != nil {
				s.logger.Debug("best-effort reject notification failed", "path", doc.Path, "error", err)
			}
		}
	}
	return nil
}

func (s *Service) writeResolution(doc *docindex.Document, meta *docindex.FederationMeta) error {
	oldStatus := doc.Federation.SyncStatus
	absPath := path.Join(s.root, doc.Path)
	if err := docindex.SetFederationField(s.fs, absPath, meta); err != nil {
		return apierr.Wrap(apierr.Internal, "failed to persist resolution", err)
	}
	if meta.SyncStatus != oldStatus {
		s.bus.SyncStatusChanged(doc.Path, string(oldStatus), string(meta.SyncStatus), meta.OriginPeer)
	}
	return nil
}
