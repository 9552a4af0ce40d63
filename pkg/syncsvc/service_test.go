package syncsvc

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/vincitamore/vitrum/pkg/docindex"
	"github.com/vincitamore/vitrum/pkg/peers"
)

type fakeIndex struct {
	docs map[string]*docindex.Document
}

func (f *fakeIndex) Get(p string) (*docindex.Document, bool) {
	d, ok := f.docs[p]
	return d, ok
}

func (f *fakeIndex) All() []*docindex.Document {
	out := make([]*docindex.Document, 0, len(f.docs))
	for _, d := range f.docs {
		out = append(out, d)
	}
	return out
}

type fakeRegistry struct {
	peer peers.ConfiguredPeer
	live peers.LiveStatus
	ok   bool
}

func (f *fakeRegistry) Get(name string) (peers.ConfiguredPeer, peers.LiveStatus, bool) {
	return f.peer, f.live, f.ok
}

type fakeFetcher struct {
	doc      *RemoteDocument
	checksum *RemoteChecksum
	err      error
}

func (f *fakeFetcher) FetchDocument(ctx context.Context, host, proto, srcPath string) (*RemoteDocument, error) {
	return f.doc, f.err
}
func (f *fakeFetcher) FetchChecksum(ctx context.Context, host, proto, srcPath string) (*RemoteChecksum, error) {
	return f.checksum, f.err
}
func (f *fakeFetcher) NotifyRespond(ctx context.Context, host, proto, p, comment string) error {
	return f.err
}

type fakeBus struct {
	statusChanges []string
	receivedPaths []string
}

func (f *fakeBus) SyncStatusChanged(path, oldStatus, newStatus, peer string) {
	f.statusChanges = append(f.statusChanges, path+":"+oldStatus+"->"+newStatus)
}
func (f *fakeBus) PeerDocumentReceived(path string) { f.receivedPaths = append(f.receivedPaths, path) }

func TestAdopt_WritesFederationBlock(t *testing.T) {
	fs := afero.NewMemMapFs()
	bus := &fakeBus{}
	fetcher := &fakeFetcher{doc: &RemoteDocument{
		FrontMatter: map[string]any{"title": "Remote Doc"},
		Content:     "remote body",
		Checksum:    "sha256:abc",
	}}
	svc := New(fs, "/ws", &fakeIndex{}, &fakeRegistry{}, fetcher, bus, nil)

	result, err := svc.Adopt(context.Background(), AdoptRequest{
		PeerID: "peer-1", PeerHost: "host", PeerPort: 1234, PeerProtocol: "http",
		PeerName: "Peer One", SourcePath: "knowledge/x.md",
	})
	require.NoError(t, err)
	require.Equal(t, "knowledge/x.md", result.LocalPath)
	require.Equal(t, "sha256:abc", result.Checksum)

	rf, err := docindex.ReadRawFile(fs, "/ws/knowledge/x.md")
	require.NoError(t, err)
	require.Equal(t, "Remote Doc", rf.FrontMatter["title"])
	fed := rf.FrontMatter["federation"].(map[string]any)
	require.Equal(t, "peer-1", fed["origin-peer"])
	require.Equal(t, "synced", fed["sync-status"])
}

func TestIncoming_WritesInboxFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	bus := &fakeBus{}
	svc := New(fs, "/ws", &fakeIndex{}, &fakeRegistry{}, &fakeFetcher{}, bus, nil)

	relPath, err := svc.Incoming(IncomingPush{
		From: "Peer Two", Title: "Hello There", Content: "body text",
		Tags: []string{"a"}, SourcePath: "knowledge/y.md", Message: "fyi",
	})
	require.NoError(t, err)
	require.Contains(t, relPath, "inbox/")
	require.Contains(t, relPath, "from-peer-two-hello-there.md")

	rf, err := docindex.ReadRawFile(fs, "/ws/"+relPath)
	require.NoError(t, err)
	require.Equal(t, "inbox", rf.FrontMatter["type"])
	require.Contains(t, rf.Body, "> fyi")
	require.Contains(t, rf.Body, "body text")
	require.Len(t, bus.receivedPaths, 1)
}

func TestHandleLocalChange_SyncedToLocalModified(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "---\nfederation:\n  origin-peer: p1\n  sync-status: synced\n  local-checksum: sha256:old\n  origin-checksum: sha256:old\n---\nnew content"
	require.NoError(t, afero.WriteFile(fs, "/ws/a.md", []byte(content), 0o644))

	doc := &docindex.Document{
		Path:    "a.md",
		Content: "new content",
		Federation: &docindex.FederationMeta{
			OriginPeer:     "p1",
			SyncStatus:     docindex.SyncSynced,
			LocalChecksum:  "sha256:old",
			OriginChecksum: "sha256:old",
		},
	}
	idx := &fakeIndex{docs: map[string]*docindex.Document{"a.md": doc}}
	bus := &fakeBus{}
	svc := New(fs, "/ws", idx, &fakeRegistry{}, &fakeFetcher{}, bus, nil)

	svc.handleLocalChange("a.md")

	require.Len(t, bus.statusChanges, 1)
	require.Equal(t, "a.md:synced->local-modified", bus.statusChanges[0])

	rf, err := docindex.ReadRawFile(fs, "/ws/a.md")
	require.NoError(t, err)
	fed := rf.FrontMatter["federation"].(map[string]any)
	require.Equal(t, "local-modified", fed["sync-status"])
}

func TestHandleLocalChange_RejectedIsTerminal(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc := &docindex.Document{
		Path:    "a.md",
		Content: "new content",
		Federation: &docindex.FederationMeta{
			OriginPeer: "p1",
			SyncStatus: docindex.SyncRejected,
		},
	}
	idx := &fakeIndex{docs: map[string]*docindex.Document{"a.md": doc}}
	bus := &fakeBus{}
	svc := New(fs, "/ws", idx, &fakeRegistry{}, &fakeFetcher{}, bus, nil)

	svc.handleLocalChange("a.md")
	require.Empty(t, bus.statusChanges)
}

func TestResolve_KeepLocal(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "---\nfederation:\n  sync-status: conflict\n---\nlocal body"
	require.NoError(t, afero.WriteFile(fs, "/ws/a.md", []byte(content), 0o644))

	doc := &docindex.Document{
		Path:    "a.md",
		Content: "local body",
		Federation: &docindex.FederationMeta{
			SyncStatus: docindex.SyncConflict,
		},
	}
	idx := &fakeIndex{docs: map[string]*docindex.Document{"a.md": doc}}
	bus := &fakeBus{}
	svc := New(fs, "/ws", idx, &fakeRegistry{}, &fakeFetcher{}, bus, nil)

	err := svc.Resolve(context.Background(), ResolveRequest{Path: "a.md", Action: ResolveKeepLocal})
	require.NoError(t, err)
	require.Len(t, bus.statusChanges, 1)
	require.Equal(t, "a.md:conflict->synced", bus.statusChanges[0])

	log := svc.AuditLog()
	require.Len(t, log, 1)
	require.Equal(t, "a.md", log[0].Path)
	require.Equal(t, ResolveKeepLocal, log[0].Action)
}

func TestAuditLog_Bounded(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "---\nfederation:\n  sync-status: conflict\n---\nlocal body"
	require.NoError(t, afero.WriteFile(fs, "/ws/a.md", []byte(content), 0o644))

	doc := &docindex.Document{
		Path:    "a.md",
		Content: "local body",
		Federation: &docindex.FederationMeta{
			SyncStatus: docindex.SyncConflict,
		},
	}
	idx := &fakeIndex{docs: map[string]*docindex.Document{"a.md": doc}}
	svc := New(fs, "/ws", idx, &fakeRegistry{}, &fakeFetcher{}, &fakeBus{}, nil)

	for i := 0; i < maxAuditEntries+5; i++ {
		require.NoError(t, svc.Resolve(context.Background(), ResolveRequest{Path: "a.md", Action: ResolveKeepLocal}))
	}

	log := svc.AuditLog()
	require.Len(t, log, maxAuditEntries)
}

func TestResolve_Reject(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "---\nfederation:\n  sync-status: conflict\n---\nlocal body"
	require.NoError(t, afero.WriteFile(fs, "/ws/a.md", []byte(content), 0o644))

	doc := &docindex.Document{
		Path:    "a.md",
		Content: "local body",
		Federation: &docindex.FederationMeta{
			OriginPeer: "p1",
			SyncStatus: docindex.SyncConflict,
		},
	}
	idx := &fakeIndex{docs: map[string]*docindex.Document{"a.md": doc}}
	bus := &fakeBus{}
	svc := New(fs, "/ws", idx, &fakeRegistry{ok: true}, &fakeFetcher{}, bus, nil)

	err := svc.Resolve(context.Background(), ResolveRequest{Path: "a.md", Action: ResolveReject, Comment: "not relevant"})
	require.NoError(t, err)
	require.Equal(t, "a.md:conflict->rejected", bus.statusChanges[0])
}
