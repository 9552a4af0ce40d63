package peers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOrSynthesize_RejectsInvalidPeerEntry(t *testing.T) {
	root := t.TempDir()
	writePeerConfig(t, root, PeerConfig{
		Self:  Self{InstanceID: "self-id"},
		Peers: []ConfiguredPeer{{Name: "bad", Host: "", Port: 0, Protocol: ProtocolHTTP}},
	})

	_, err := New(root, nil)
	require.Error(t, err)
	require.ErrorContains(t, err, "bad")
}

func TestLoadOrSynthesize_RejectsUnsupportedProtocol(t *testing.T) {
	root := t.TempDir()
	writePeerConfig(t, root, PeerConfig{
		Self:  Self{InstanceID: "self-id"},
		Peers: []ConfiguredPeer{{Name: "ftp-peer", Host: "h", Port: 21, Protocol: "ftp"}},
	})

	_, err := New(root, nil)
	require.Error(t, err)
}

func TestConfiguredPeer_Validate_AcceptsWellFormedEntry(t *testing.T) {
	p := ConfiguredPeer{Name: "ok", Host: "peer.example.com", Port: 8080, Protocol: ProtocolHTTPS}
	require.NoError(t, p.Validate())
}

func TestLoadOrSynthesize_SynthesizedDefaultHasNoPeersToValidate(t *testing.T) {
	root := t.TempDir()
	_, _, err := loadOrSynthesize(root)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, configFileName))
	require.NoError(t, err)
	var onDisk PeerConfig
	require.NoError(t, json.Unmarshal(data, &onDisk))
	require.Empty(t, onDisk.Peers)
}
