package syncsvc

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/vincitamore/vitrum/internal/apierr"
	"github.com/vincitamore/vitrum/pkg/docindex"
)

// Adopt fetches a document from a peer and writes it locally with a fresh
// federation block (spec §4.F "Adoption").
func (s *Service) Adopt(ctx context.Context, req AdoptRequest) (*AdoptResult, error) {
	ctx, cancel := context.WithTimeout(ctx, adoptionBudget)
	defer cancel()

	remote, err := s.fetcher.FetchDocument(ctx, fmt.Sprintf("%s:%d", req.PeerHost, req.PeerPort), req.PeerProtocol, req.SourcePath)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "adoption-failed", err)
	}

	localPath := req.TargetPath
	if localPath == "" {
		localPath = req.SourcePath
	}
	absPath := path.Join(s.root, localPath)

	now := time.Now().UTC().Format(time.RFC3339)
	fm := cloneFrontMatter(remote.FrontMatter)
	fm["federation"] = map[string]any{
		"origin-peer":     req.PeerID,
		"origin-name":     req.PeerName,
		"origin-host":     fmt.Sprintf("%s:%d", req.PeerHost, req.PeerPort),
		"origin-path":     req.SourcePath,
		"adopted-at":      now,
		"origin-checksum": remote.Checksum,
		"local-checksum":  remote.Checksum,
		"sync-status":     string(docindex.SyncSynced),
		"last-sync-check": now,
	}

	if err := docindex.WriteRawFile(s.fs, absPath, fm, remote.Content); err != nil {
		return nil, apierr.Wrap(apierr.Internal, "failed to write adopted document", err)
	}

	return &AdoptResult{LocalPath: localPath, Checksum: remote.Checksum}, nil
}

func cloneFrontMatter(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+1)
	for k, v := range in {
		if k == "federation" {
			continue
		}
		out[k] = v
	}
	return out
}
