package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/vincitamore/vitrum/internal/apierr"
	"github.com/vincitamore/vitrum/pkg/peers"
	"github.com/vincitamore/vitrum/pkg/syncsvc"
)

// handleFederation dispatches the local client surface's /federation
// family (spec §6), everything this instance's own UI calls on itself.
func (a *API) handleFederation(w http.ResponseWriter, r *http.Request, sub string) {
	switch {
	case sub == "peers" && r.Method == http.MethodGet:
		a.federationPeers(w)
	case strings.HasPrefix(sub, "peers/") && strings.HasSuffix(sub, "/history") && r.Method == http.MethodGet:
		a.peerHistory(w, strings.TrimSuffix(strings.TrimPrefix(sub, "peers/"), "/history"))
	case sub == "hello" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, a.srv.Federation.Hello())
	case sub == "cross-search" && r.Method == http.MethodGet:
		a.crossSearch(w, r)
	case sub == "cross-files" && r.Method == http.MethodGet:
		a.crossFiles(w, r)
	case strings.HasPrefix(sub, "cross-file/") && r.Method == http.MethodGet:
		a.crossFile(w, r, strings.TrimPrefix(sub, "cross-file/"))
	case sub == "adopt" && r.Method == http.MethodPost:
		a.adopt(w, r)
	case sub == "send" && r.Method == http.MethodPost:
		a.send(w, r)
	case sub == "shared" && r.Method == http.MethodPost:
		a.shared(w, r)
	case sub == "shared/diff" && r.Method == http.MethodGet:
		a.sharedDiff(w, r)
	case sub == "shared/resolve" && r.Method == http.MethodPost:
		a.sharedResolve(w, r)
	case sub == "shared/respond" && r.Method == http.MethodPost:
		a.sharedRespond(w, r)
	case sub == "shared/log" && r.Method == http.MethodGet:
		a.sharedLog(w, r)
	default:
		writeError(w, apierr.New(apierr.NotFound, "unknown federation route"))
	}
}

func (a *API) federationPeers(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, a.srv.Peers.Statuses())
}

// peerHistory returns the last N probe outcomes for a configured peer
// (SPEC_FULL.md's "peer probe history" supplemental feature).
func (a *API) peerHistory(w http.ResponseWriter, name string) {
	if _, _, ok := a.srv.Peers.Get(name); !ok {
		writeError(w, apierr.New(apierr.NotFound, "no such peer"))
		return
	}
	writeJSON(w, http.StatusOK, a.srv.Peers.History(name))
}

func (a *API) crossSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 20
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = n
	}
	resp, err := a.srv.Client.CrossSearch(r.Context(), q.Get("q"), q.Get("type"), q.Get("tag"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) crossFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	peer := q.Get("peer")
	if peer == "" {
		writeError(w, apierr.New(apierr.BadRequest, "peer is required"))
		return
	}
	files, err := a.srv.Client.CrossFiles(r.Context(), peer, q.Get("folder"), q.Get("tag"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (a *API) crossFile(w http.ResponseWriter, r *http.Request, relPath string) {
	peer := r.URL.Query().Get("peer")
	if peer == "" {
		writeError(w, apierr.New(apierr.BadRequest, "peer is required"))
		return
	}
	full, err := a.srv.Client.CrossFile(r.Context(), peer, relPath)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, full)
}

type adoptRequestBody struct {
	PeerID       string         `json:"peerId"`
	PeerHost     string         `json:"peerHost"`
	PeerPort     int            `json:"peerPort"`
	PeerProtocol peers.Protocol `json:"peerProtocol"`
	PeerName     string         `json:"peerName"`
	SourcePath   string         `json:"sourcePath"`
	TargetPath   string         `json:"targetPath"`
}

func (a *API) adopt(w http.ResponseWriter, r *http.Request) {
	var req adoptRequestBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := a.srv.Sync.Adopt(r.Context(), syncsvc.AdoptRequest{
		PeerID: req.PeerID, PeerHost: req.PeerHost, PeerPort: req.PeerPort,
		PeerProtocol: string(req.PeerProtocol), PeerName: req.PeerName,
		SourcePath: req.SourcePath, TargetPath: req.TargetPath,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type sendRequestBody struct {
	Peer       string   `json:"peer"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags"`
	SourcePath string   `json:"sourcePath"`
	Message    string   `json:"message"`
}

// send pushes a local document to a peer's "receive" endpoint.
func (a *API) send(w http.ResponseWriter, r *http.Request) {
	var req sendRequestBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, live, ok := a.srv.Peers.Get(req.Peer)
	if !ok || live.Status != peers.StatusOnline {
		writeError(w, apierr.New(apierr.PeerOffline, "peer is not online"))
		return
	}

	self := a.srv.Peers.Self()
	if err := a.srv.Client.Send(r.Context(), p, syncsvc.IncomingPush{
		From: self.DisplayName, Title: req.Title, Content: req.Content,
		Tags: req.Tags, SourcePath: req.SourcePath, Message: req.Message,
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

type sharedRequestBody struct {
	Path string `json:"path"`
}

// shared marks a local document as shared — a no-op beyond confirming the
// path exists, since sharing is governed by PeerConfig.Self.SharedFolders
// (spec §3/§4.E), not a per-document flag.
func (a *API) shared(w http.ResponseWriter, r *http.Request) {
	var req sharedRequestBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if _, ok := a.srv.Index.Get(req.Path); !ok {
		writeError(w, apierr.New(apierr.NotFound, "no such document"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) sharedDiff(w http.ResponseWriter, r *http.Request) {
	relPath := r.URL.Query().Get("path")
	if relPath == "" {
		writeError(w, apierr.New(apierr.BadRequest, "path is required"))
		return
	}
	diff, err := a.srv.Sync.ConflictDiff(r.Context(), relPath)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

type sharedResolveRequestBody struct {
	Path          string                `json:"path"`
	Action        syncsvc.ResolveAction `json:"action"`
	MergedContent string                `json:"mergedContent"`
	Comment       string                `json:"comment"`
}

func (a *API) sharedResolve(w http.ResponseWriter, r *http.Request) {
	var req sharedResolveRequestBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := a.srv.Sync.Resolve(r.Context(), syncsvc.ResolveRequest{
		Path: req.Path, Action: req.Action, MergedContent: req.MergedContent, Comment: req.Comment,
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sharedRespondRequestBody struct {
	Peer    string `json:"peer"`
	Path    string `json:"path"`
	Comment string `json:"comment"`
}

// sharedRespond issues the outbound advisory note to the peer that
// originated the shared document.
func (a *API) sharedRespond(w http.ResponseWriter, r *http.Request) {
	var req sharedRespondRequestBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, live, ok := a.srv.Peers.Get(req.Peer)
	if !ok || live.Status != peers.StatusOnline {
		writeError(w, apierr.New(apierr.PeerOffline, "peer is not online"))
		return
	}
	hostPort := p.Host + ":" + strconv.Itoa(p.Port)
	if err := a.srv.Client.NotifyRespond(r.Context(), hostPort, string(p.Protocol), req.Path, req.Comment); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sharedLog returns the conflict-resolution audit trail (SPEC_FULL.md's
// supplemental "Conflict resolution audit" feature).
func (a *API) sharedLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.srv.Sync.AuditLog())
}
