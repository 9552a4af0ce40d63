package peers

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadOrSynthesize_WritesDefaultConfig(t *testing.T) {
	root := t.TempDir()

	reg, err := New(root, nil)
	require.NoError(t, err)
	require.NotEmpty(t, reg.Self().InstanceID)
	require.Equal(t, []string{"knowledge/"}, reg.Self().SharedFolders)

	data, err := os.ReadFile(filepath.Join(root, configFileName))
	require.NoError(t, err)
	var onDisk PeerConfig
	require.NoError(t, json.Unmarshal(data, &onDisk))
	require.Equal(t, reg.Self().InstanceID, onDisk.Self.InstanceID)
}

func TestRegistry_ProbeOnline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(HelloResponse{
			InstanceID:  "peer-1-id",
			DisplayName: "Peer One",
			Online:      true,
			APIVersion:  "1",
		})
	}))
	defer srv.Close()

	host, portStr := splitHostPort(t, srv.URL)

	root := t.TempDir()
	writePeerConfig(t, root, PeerConfig{
		Self:  Self{InstanceID: "self-id", SharedFolders: []string{"knowledge/"}},
		Peers: []ConfiguredPeer{{Name: "peer-1", Host: host, Port: portStr, Protocol: ProtocolHTTP}},
	})

	reg, err := New(root, nil)
	require.NoError(t, err)

	var onlineFired, offlineFired bool
	reg.AddSink(sinkFuncs{
		online:  func(name, h string) { onlineFired = true },
		offline: func(name, h string) { offlineFired = true },
	})

	ctx := context.Background()
	reg.probeAll(ctx)

	statuses := reg.Statuses()
	require.Len(t, statuses, 1)
	require.Equal(t, StatusOnline, statuses[0].Status)
	require.Equal(t, "peer-1-id", statuses[0].InstanceID)
	require.True(t, onlineFired)
	require.False(t, offlineFired)

	history := reg.History("peer-1")
	require.Len(t, history, 1)
	require.True(t, history[0].Online)
}

func TestRegistry_ProbeOffline_IncrementsFailures(t *testing.T) {
	root := t.TempDir()
	writePeerConfig(t, root, PeerConfig{
		Self:  Self{InstanceID: "self-id"},
		Peers: []ConfiguredPeer{{Name: "dead", Host: "127.0.0.1", Port: 1, Protocol: ProtocolHTTP}},
	})

	reg, err := New(root, nil)
	require.NoError(t, err)
	reg.client.Timeout = 200 * time.Millisecond

	reg.probeAll(context.Background())
	statuses := reg.Statuses()
	require.Len(t, statuses, 1)
	require.Equal(t, StatusOffline, statuses[0].Status)
	require.Equal(t, 1, statuses[0].ConsecutiveFailures)
	require.False(t, statuses[0].LastSeen.IsZero(), "a failed probe must still stamp LastSeen so the quiet-pause throttle applies")

	history := reg.History("dead")
	require.Len(t, history, 1)
	require.False(t, history[0].Online)
	require.NotEmpty(t, history[0].Error)
}

func TestRegistry_ShouldSkip_ThrottlesNeverSucceededPeerAfterThreshold(t *testing.T) {
	root := t.TempDir()
	writePeerConfig(t, root, PeerConfig{
		Self:  Self{InstanceID: "self-id"},
		Peers: []ConfiguredPeer{{Name: "dead", Host: "127.0.0.1", Port: 1, Protocol: ProtocolHTTP}},
	})

	reg, err := New(root, nil)
	require.NoError(t, err)
	reg.client.Timeout = 200 * time.Millisecond

	for i := 0; i < failureThreshold; i++ {
		reg.probeAll(context.Background())
	}

	statuses := reg.Statuses()
	require.Equal(t, failureThreshold, statuses[0].ConsecutiveFailures)
	require.True(t, reg.shouldSkip("dead"), "a peer that has never once succeeded must still be throttled after hitting the failure threshold")
}

func TestRegistry_HotReload_AddsAndDropsPeers(t *testing.T) {
	root := t.TempDir()
	writePeerConfig(t, root, PeerConfig{
		Self:  Self{InstanceID: "self-id"},
		Peers: []ConfiguredPeer{{Name: "a", Host: "h", Port: 1, Protocol: ProtocolHTTP}},
	})

	reg, err := New(root, nil)
	require.NoError(t, err)
	require.Len(t, reg.Statuses(), 1)

	time.Sleep(10 * time.Millisecond) // ensure mtime advances
	writePeerConfig(t, root, PeerConfig{
		Self: Self{InstanceID: "self-id"},
		Peers: []ConfiguredPeer{
			{Name: "b", Host: "h2", Port: 2, Protocol: ProtocolHTTP},
		},
	})

	reg.reloadIfChanged()
	statuses := reg.Statuses()
	require.Len(t, statuses, 1)
	require.Equal(t, "b", statuses[0].Name)
}

type sinkFuncs struct {
	online  func(name, host string)
	offline func(name, host string)
}

func (s sinkFuncs) PeerOnline(name, host string)  { s.online(name, host) }
func (s sinkFuncs) PeerOffline(name, host string) { s.offline(name, host) }

func writePeerConfig(t *testing.T, root string, cfg PeerConfig) {
	t.Helper()
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, configFileName), data, 0o644))
}

func splitHostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}
