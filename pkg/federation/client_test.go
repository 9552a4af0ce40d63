package federation

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vincitamore/vitrum/pkg/peers"
)

type fakePeerSource struct {
	peers []peers.ConfiguredPeer
	live  map[string]peers.LiveStatus
}

func (f *fakePeerSource) Get(name string) (peers.ConfiguredPeer, peers.LiveStatus, bool) {
	for _, p := range f.peers {
		if p.Name == name {
			return p, f.live[name], true
		}
	}
	return peers.ConfiguredPeer{}, peers.LiveStatus{}, false
}
func (f *fakePeerSource) Online() []peers.ConfiguredPeer { return f.peers }

func peerFromServer(t *testing.T, srv *httptest.Server, name string) peers.ConfiguredPeer {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return peers.ConfiguredPeer{Name: name, Host: host, Port: port, Protocol: peers.ProtocolHTTP}
}

func TestClient_CrossSearch_MergesAndSortsByScore(t *testing.T) {
	srv1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(SearchResponse{
			InstanceID: "p1", Count: 1,
			Items: []SearchHit{{Path: "a.md", Score: 0.5}},
		})
	}))
	defer srv1.Close()
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(SearchResponse{
			InstanceID: "p2", Count: 1,
			Items: []SearchHit{{Path: "b.md", Score: 0.9}},
		})
	}))
	defer srv2.Close()

	p1 := peerFromServer(t, srv1, "peer-1")
	p2 := peerFromServer(t, srv2, "peer-2")
	src := &fakePeerSource{
		peers: []peers.ConfiguredPeer{p1, p2},
		live: map[string]peers.LiveStatus{
			"peer-1": {Status: peers.StatusOnline},
			"peer-2": {Status: peers.StatusOnline},
		},
	}

	c := NewClient(src)
	resp, err := c.CrossSearch(context.Background(), "query", "", "", 10)
	require.NoError(t, err)
	require.Equal(t, 2, resp.TotalPeersQueried)
	require.Equal(t, 2, resp.TotalPeersResponded)
	require.Len(t, resp.Results, 2)
	require.Equal(t, "b.md", resp.Results[0].Path) // higher score first
}

func TestClient_CrossSearch_PeerFailureContributesZero(t *testing.T) {
	deadSrv := peers.ConfiguredPeer{Name: "dead", Host: "127.0.0.1", Port: 1, Protocol: peers.ProtocolHTTP}
	liveSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(SearchResponse{InstanceID: "p2", Count: 1, Items: []SearchHit{{Path: "b.md", Score: 0.9}}})
	}))
	defer liveSrv.Close()
	live := peerFromServer(t, liveSrv, "live")

	src := &fakePeerSource{peers: []peers.ConfiguredPeer{deadSrv, live}}
	c := NewClient(src)
	c.http.Timeout = 200_000_000 // 200ms, avoid long hang on unreachable port

	resp, err := c.CrossSearch(context.Background(), "q", "", "", 10)
	require.NoError(t, err)
	require.Equal(t, 2, resp.TotalPeersQueried)
	require.Equal(t, 1, resp.TotalPeersResponded)
	require.Len(t, resp.Results, 1)
	require.NotEmpty(t, resp.PeerResults["dead"].Error)
}

func TestClient_CrossSearch_AllPeersFail_ReturnsAggregatedError(t *testing.T) {
	src := &fakePeerSource{
		peers: []peers.ConfiguredPeer{{Name: "dead", Host: "127.0.0.1", Port: 1, Protocol: peers.ProtocolHTTP}},
	}
	c := NewClient(src)
	c.http.Timeout = 200_000_000 // 200ms, avoid long hang on unreachable port

	resp, err := c.CrossSearch(context.Background(), "q", "", "", 10)
	require.Error(t, err)
	require.Nil(t, resp)
}

func TestClient_CrossFiles_PeerOffline(t *testing.T) {
	src := &fakePeerSource{
		peers: []peers.ConfiguredPeer{{Name: "p1", Host: "h", Port: 1}},
		live:  map[string]peers.LiveStatus{"p1": {Status: peers.StatusOffline}},
	}
	c := NewClient(src)

	_, err := c.CrossFiles(context.Background(), "p1", "", "")
	require.Error(t, err)
}
