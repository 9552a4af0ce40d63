// Package syncsvc implements the Sync Service: adoption, origin checksum
// polling, sync-state transitions, conflict diff, conflict resolution,
// and incoming-document delivery (spec §4.F).
package syncsvc

import "context"

// AdoptRequest mirrors spec §4.F's adoption parameters.
type AdoptRequest struct {
	PeerID       string
	PeerHost     string
	PeerPort     int
	PeerProtocol string
	PeerName     string
	SourcePath   string
	TargetPath   string // optional; defaults to SourcePath
}

// AdoptResult is returned from a successful adoption.
type AdoptResult struct {
	LocalPath string `json:"localPath"`
	Checksum  string `json:"checksum"`
}

// IncomingPush mirrors spec §4.F's "Incoming (push)" parameters.
type IncomingPush struct {
	From       string
	Title      string
	Content    string
	Tags       []string
	SourcePath string
	Message    string
}

// ConflictDiff is the response shape of getConflictDiff (spec §4.F). The
// engine never retains the adoption-time base, so BaseContent is empty
// when unavailable and merge UIs operate two-way with metadata hints.
type ConflictDiff struct {
	LocalContent   string `json:"localContent"`
	OriginContent  string `json:"originContent"`
	BaseContent    string `json:"baseContent"`
	LocalChecksum  string `json:"localChecksum"`
	OriginChecksum string `json:"originChecksum"`
}

// ResolveAction is one of the four resolution actions in spec §4.F's
// state machine table.
type ResolveAction string

const (
	ResolveAcceptOrigin ResolveAction = "accept-origin"
	ResolveKeepLocal    ResolveAction = "keep-local"
	ResolveMerge        ResolveAction = "merge"
	ResolveReject       ResolveAction = "reject"
)

// ResolveRequest mirrors spec §4.F's resolution parameters.
type ResolveRequest struct {
	Path          string
	Action        ResolveAction
	MergedContent string
	Comment       string
}

// PeerFetcher is the subset of peer-facing HTTP calls the Sync Service
// needs from a remote instance; implemented by pkg/federation's Client
// so this package stays free of transport wiring.
type PeerFetcher interface {
	// FetchDocument retrieves full document bytes plus checksum for
	// sourcePath from the given peer, honoring ctx's deadline.
	FetchDocument(ctx context.Context, peerHost, peerProtocol, sourcePath string) (*RemoteDocument, error)
	// FetchChecksum retrieves only the checksum and updated time for
	// sourcePath from the given peer (the "checksumOnly" fetch).
	FetchChecksum(ctx context.Context, peerHost, peerProtocol, sourcePath string) (*RemoteChecksum, error)
	// NotifyRespond fires a best-effort advisory note to the peer's
	// /shared/respond endpoint; failures are swallowed by the caller.
	NotifyRespond(ctx context.Context, peerHost, peerProtocol, path, comment string) error
}

// RemoteDocument is what a peer's files/<path> endpoint returns in
// full-fetch mode.
type RemoteDocument struct {
	FrontMatter map[string]any
	Content     string
	Checksum    string
}

// RemoteChecksum is what a peer's files/<path>?checksumOnly=true endpoint
// returns.
type RemoteChecksum struct {
	Checksum string
	Updated  string
}
