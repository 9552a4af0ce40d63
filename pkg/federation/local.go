package federation

import (
	"strings"
	"time"

	"github.com/vincitamore/vitrum/internal/apierr"
	"github.com/vincitamore/vitrum/pkg/docindex"
	"github.com/vincitamore/vitrum/pkg/peers"
	"github.com/vincitamore/vitrum/pkg/syncsvc"
)

// IndexReader is the subset of pkg/docindex.Index the peer-facing surface
// reads from; it never mutates the Index.
type IndexReader interface {
	Get(path string) (*docindex.Document, bool)
	All() []*docindex.Document
	Search(query string, typeFilter docindex.DocType, tagFilter string, limit int) ([]docindex.SearchResult, error)
}

// Identity is the subset of pkg/peers.Registry the Surface needs for
// answering hello/search with this instance's own identity.
type Identity interface {
	Self() peers.Self
	Uptime() time.Duration
}

// IncomingReceiver is the subset of pkg/syncsvc.Service the Surface
// delegates "receive" pushes to.
type IncomingReceiver interface {
	Incoming(push syncsvc.IncomingPush) (string, error)
}

// Surface answers peer-facing requests, restricted to this instance's
// shared subtrees (spec §4.G).
type Surface struct {
	index    IndexReader
	identity Identity
	incoming IncomingReceiver
	started  time.Time
}

// New builds a peer-facing Surface.
func New(index IndexReader, identity Identity, incoming IncomingReceiver) *Surface {
	return &Surface{index: index, identity: identity, incoming: incoming, started: time.Now()}
}

// Hello answers the peer-facing "hello" probe.
func (s *Surface) Hello() HelloPayload {
	self := s.identity.Self()
	return HelloPayload{
		InstanceID:    self.InstanceID,
		DisplayName:   self.DisplayName,
		SharedFolders: self.SharedFolders,
		SharedTags:    self.SharedTags,
		DocumentCount: len(s.index.All()),
		Online:        true,
		UptimeSeconds: int64(s.identity.Uptime().Seconds()),
		APIVersion:    "1",
	}
}

// HelloPayload is the peer-facing hello response (spec §4.G).
type HelloPayload struct {
	InstanceID    string   `json:"instanceId"`
	DisplayName   string   `json:"displayName"`
	SharedFolders []string `json:"sharedFolders"`
	SharedTags    []string `json:"sharedTags"`
	DocumentCount int      `json:"documentCount"`
	Online        bool     `json:"online"`
	UptimeSeconds int64    `json:"uptime"`
	APIVersion    string   `json:"apiVersion"`
}

// isShared reports whether relPath lies under one of this instance's
// shared folder prefixes.
func (s *Surface) isShared(relPath string) bool {
	for _, prefix := range s.identity.Self().SharedFolders {
		if strings.HasPrefix(relPath, prefix) {
			return true
		}
	}
	return false
}

// Search answers the peer-facing "search" contract, restricted to
// documents under a shared folder prefix.
func (s *Surface) Search(query string, typeFilter docindex.DocType, tagFilter string, limit int) (*SearchResponse, error) {
	results, err := s.index.Search(query, typeFilter, tagFilter, limit*4)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "search failed", err)
	}

	self := s.identity.Self()
	items := make([]SearchHit, 0, limit)
	for _, r := range results {
		if !s.isShared(r.Document.Path) {
			continue
		}
		items = append(items, SearchHit{
			Path:    r.Document.Path,
			Title:   r.Document.Title,
			Type:    string(r.Document.Type),
			Tags:    r.Document.Tags,
			Score:   r.Score,
			Snippet: r.Document.Excerpt,
		})
		if len(items) >= limit {
			break
		}
	}

	return &SearchResponse{
		InstanceID:  self.InstanceID,
		DisplayName: self.DisplayName,
		Count:       len(items),
		Items:       items,
	}, nil
}

// Files answers the peer-facing "files" listing, scoped to shared
// subtrees and optionally filtered by folder/tag.
func (s *Surface) Files(folder, tag string) []FileMeta {
	var out []FileMeta
	for _, d := range s.index.All() {
		if !s.isShared(d.Path) {
			continue
		}
		if folder != "" && !strings.HasPrefix(d.Path, folder) {
			continue
		}
		if tag != "" && !containsFold(d.Tags, tag) {
			continue
		}
		out = append(out, FileMeta{
			Path:    d.Path,
			Title:   d.Title,
			Type:    string(d.Type),
			Tags:    d.Tags,
			Updated: d.Updated.Format(time.RFC3339),
		})
	}
	return out
}

// FileChecksum answers "files/<path>?checksumOnly=true"; 403 if path
// isn't under a shared prefix.
func (s *Surface) FileChecksum(relPath string) (*FileChecksumResponse, error) {
	d, err := s.sharedDoc(relPath)
	if err != nil {
		return nil, err
	}
	return &FileChecksumResponse{
		Checksum: docindex.Checksum(d.Content),
		Updated:  d.Updated.Format(time.RFC3339),
	}, nil
}

// FileFull answers "files/<path>?checksumOnly=false"; 403 if path isn't
// under a shared prefix.
func (s *Surface) FileFull(relPath string) (*FileFullResponse, error) {
	d, err := s.sharedDoc(relPath)
	if err != nil {
		return nil, err
	}
	return &FileFullResponse{
		Path:        d.Path,
		Title:       d.Title,
		Type:        string(d.Type),
		Tags:        d.Tags,
		FrontMatter: d.FrontMatter,
		Content:     d.Content,
		Checksum:    docindex.Checksum(d.Content),
	}, nil
}

func (s *Surface) sharedDoc(relPath string) (*docindex.Document, error) {
	d, ok := s.index.Get(relPath)
	if !ok {
		return nil, apierr.New(apierr.NotFound, "no such document")
	}
	if !s.isShared(relPath) {
		return nil, apierr.New(apierr.Forbidden, "path is outside a shared subtree")
	}
	return d, nil
}

// Receive accepts a pushed document and hands it to the Sync Service's
// inbox delivery (spec §4.F "Incoming (push)").
func (s *Surface) Receive(req ReceiveRequest) (string, error) {
	relPath, err := s.incoming.Incoming(syncsvc.IncomingPush{
		From:       req.From,
		Title:      req.Title,
		Content:    req.Content,
		Tags:       req.Tags,
		SourcePath: req.SourcePath,
		Message:    req.Message,
	})
	if err != nil {
		return "", err
	}
	return relPath, nil
}

// RespondShared accepts a peer's advisory note about a shared document and
// delivers it into the inbox, same as a push but without document content
// (spec §4.G "shared/respond").
func (s *Surface) RespondShared(req SharedRespondRequest) (string, error) {
	return s.incoming.Incoming(syncsvc.IncomingPush{
		Title:      "Feedback on " + req.Path,
		SourcePath: req.Path,
		Message:    req.Comment,
	})
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}
