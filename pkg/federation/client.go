package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/vincitamore/vitrum/internal/apierr"
	"github.com/vincitamore/vitrum/pkg/peers"
	"github.com/vincitamore/vitrum/pkg/syncsvc"
)

const crossPeerBudget = 5 * time.Second

// PeerSource resolves a peer by name to its dial target and current
// liveness, used by the cross-peer proxy endpoints.
type PeerSource interface {
	Get(name string) (peers.ConfiguredPeer, peers.LiveStatus, bool)
	Online() []peers.ConfiguredPeer
}

// Client issues outbound calls to other instances' peer-facing endpoints.
// It implements pkg/syncsvc.PeerFetcher so the Sync Service can reuse the
// same HTTP plumbing for adoption and origin polling.
type Client struct {
	http     *http.Client
	registry PeerSource
}

// NewClient builds a federation Client backed by registry for peer lookup.
func NewClient(registry PeerSource) *Client {
	return &Client{http: &http.Client{}, registry: registry}
}

func baseURL(hostPort, protocol string) string {
	if protocol == "" {
		protocol = "http"
	}
	return fmt.Sprintf("%s://%s", protocol, hostPort)
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return apierr.Upstream(resp.StatusCode, "peer returned non-2xx", fmt.Errorf("status %d", resp.StatusCode))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(ctx context.Context, rawURL string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return apierr.Upstream(resp.StatusCode, "peer returned non-2xx", fmt.Errorf("status %d", resp.StatusCode))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// --- pkg/syncsvc.PeerFetcher implementation ---

// FetchDocument implements syncsvc.PeerFetcher's full-content fetch.
func (c *Client) FetchDocument(ctx context.Context, hostPort, protocol, sourcePath string) (*syncsvc.RemoteDocument, error) {
	u := fmt.Sprintf("%s/api/federation/peer/files/%s?checksumOnly=false", baseURL(hostPort, protocol), url.PathEscape(sourcePath))
	var full FileFullResponse
	if err := c.getJSON(ctx, u, &full); err != nil {
		return nil, err
	}
	return &syncsvc.RemoteDocument{
		FrontMatter: full.FrontMatter,
		Content:     full.Content,
		Checksum:    full.Checksum,
	}, nil
}

// FetchChecksum implements syncsvc.PeerFetcher's checksumOnly fetch.
func (c *Client) FetchChecksum(ctx context.Context, hostPort, protocol, sourcePath string) (*syncsvc.RemoteChecksum, error) {
	u := fmt.Sprintf("%s/api/federation/peer/files/%s?checksumOnly=true", baseURL(hostPort, protocol), url.PathEscape(sourcePath))
	var resp FileChecksumResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	return &syncsvc.RemoteChecksum{Checksum: resp.Checksum, Updated: resp.Updated}, nil
}

// NotifyRespond implements syncsvc.PeerFetcher's best-effort advisory call.
func (c *Client) NotifyRespond(ctx context.Context, hostPort, protocol, path, comment string) error {
	u := fmt.Sprintf("%s/api/federation/peer/shared/respond", baseURL(hostPort, protocol))
	return c.postJSON(ctx, u, SharedRespondRequest{Path: path, Comment: comment}, nil)
}

// Send pushes a document to p's peer-facing "receive" endpoint, used by
// the local client surface's "send" action (spec §6 POST /federation/send).
func (c *Client) Send(ctx context.Context, p peers.ConfiguredPeer, push syncsvc.IncomingPush) error {
	hostPort := fmt.Sprintf("%s:%d", p.Host, p.Port)
	u := fmt.Sprintf("%s/api/federation/peer/receive", baseURL(hostPort, string(p.Protocol)))
	return c.postJSON(ctx, u, ReceiveRequest{
		From: push.From, Title: push.Title, Content: push.Content,
		Tags: push.Tags, SourcePath: push.SourcePath, Message: push.Message,
	}, nil)
}

// --- client-facing fan-out ---

// CrossSearch issues "search" to every online peer in parallel with a
// per-peer budget, merging and re-sorting results by score descending,
// then truncating to limit (spec §4.G "cross-search").
func (c *Client) CrossSearch(ctx context.Context, query, typeFilter, tagFilter string, limit int) (*CrossSearchResponse, error) {
	targets := c.registry.Online()

	resp := &CrossSearchResponse{
		Query:       query,
		PeerResults: make(map[string]PeerSearchResult, len(targets)),
	}
	resp.TotalPeersQueried = len(targets)

	var mu sync.Mutex
	var errs *multierror.Error
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range targets {
		p := p
		g.Go(func() error {
			started := time.Now()
			peerCtx, cancel := context.WithTimeout(gctx, crossPeerBudget)
			defer cancel()

			u := fmt.Sprintf("%s/api/federation/peer/search?q=%s&type=%s&tag=%s&limit=%d",
				baseURL(fmt.Sprintf("%s:%d", p.Host, p.Port), string(p.Protocol)),
				url.QueryEscape(query), url.QueryEscape(typeFilter), url.QueryEscape(tagFilter), limit)

			var sr SearchResponse
			err := c.getJSON(peerCtx, u, &sr)
			took := time.Since(started).Milliseconds()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				resp.PeerResults[p.Name] = PeerSearchResult{Peer: p.Name, Count: 0, TookMs: took, Error: err.Error()}
				errs = multierror.Append(errs, fmt.Errorf("peer %s: %w", p.Name, err))
				return nil // allSettled semantics: a peer failure never fails the whole fan-out
			}
			resp.PeerResults[p.Name] = PeerSearchResult{Peer: p.Name, Count: sr.Count, TookMs: took, Items: sr.Items}
			resp.Results = append(resp.Results, sr.Items...)
			return nil
		})
	}
	_ = g.Wait() // per-peer errors are aggregated above, never propagated individually

	for _, pr := range resp.PeerResults {
		if pr.Error == "" {
			resp.TotalPeersResponded++
		}
	}

	// Every peer that was queried failed: surface the aggregated error
	// instead of an empty result set that looks like a legitimate zero hits.
	if resp.TotalPeersQueried > 0 && resp.TotalPeersResponded == 0 {
		return nil, apierr.Wrap(apierr.PeerTimeout, "cross-search: no peer responded", errs.ErrorOrNil())
	}

	sort.SliceStable(resp.Results, func(i, j int) bool { return resp.Results[i].Score > resp.Results[j].Score })
	if len(resp.Results) > limit {
		resp.Results = resp.Results[:limit]
	}
	return resp, nil
}

// CrossFiles proxies "files" to a specific peer, resolved by name.
func (c *Client) CrossFiles(ctx context.Context, peerName, folder, tag string) ([]FileMeta, error) {
	p, live, ok := c.registry.Get(peerName)
	if !ok || live.Status != peers.StatusOnline {
		return nil, apierr.New(apierr.PeerOffline, "peer is not online")
	}

	peerCtx, cancel := context.WithTimeout(ctx, crossPeerBudget)
	defer cancel()

	u := fmt.Sprintf("%s/api/federation/peer/files?folder=%s&tag=%s",
		baseURL(fmt.Sprintf("%s:%d", p.Host, p.Port), string(p.Protocol)), url.QueryEscape(folder), url.QueryEscape(tag))

	var files []FileMeta
	if err := c.getJSON(peerCtx, u, &files); err != nil {
		if peerCtx.Err() != nil {
			return nil, apierr.Wrap(apierr.PeerTimeout, "cross-files timed out", err)
		}
		return nil, err
	}
	return files, nil
}

// CrossFile proxies "files/<path>" to a specific peer.
func (c *Client) CrossFile(ctx context.Context, peerName, relPath string) (*FileFullResponse, error) {
	p, live, ok := c.registry.Get(peerName)
	if !ok || live.Status != peers.StatusOnline {
		return nil, apierr.New(apierr.PeerOffline, "peer is not online")
	}

	peerCtx, cancel := context.WithTimeout(ctx, crossPeerBudget)
	defer cancel()

	u := fmt.Sprintf("%s/api/federation/peer/files/%s?checksumOnly=false",
		baseURL(fmt.Sprintf("%s:%d", p.Host, p.Port), string(p.Protocol)), url.PathEscape(relPath))

	var full FileFullResponse
	if err := c.getJSON(peerCtx, u, &full); err != nil {
		if peerCtx.Err() != nil {
			return nil, apierr.Wrap(apierr.PeerTimeout, "cross-file timed out", err)
		}
		return nil, err
	}
	return &full, nil
}
