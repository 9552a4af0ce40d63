package peers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const configFileName = ".vitrum-peers.json"

// loadOrSynthesize reads "<root>/.vitrum-peers.json"; if it does not exist
// it synthesizes one with a fresh instance ID, a default shared folder,
// and no peers, then writes it (spec §4.E).
func loadOrSynthesize(root string) (PeerConfig, time.Time, error) {
	path := filepath.Join(root, configFileName)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := PeerConfig{
			Self: Self{
				InstanceID:    uuid.NewString(),
				DisplayName:   filepath.Base(root),
				SharedFolders: []string{"knowledge/"},
				SharedTags:    []string{},
			},
			Peers: []ConfiguredPeer{},
		}
		if err := writeConfig(path, cfg); err != nil {
			return PeerConfig{}, time.Time{}, fmt.Errorf("synthesize peer config: %w", err)
		}
		info, statErr := os.Stat(path)
		var mtime time.Time
		if statErr == nil {
			mtime = info.ModTime()
		}
		return cfg, mtime, nil
	}
	if err != nil {
		return PeerConfig{}, time.Time{}, fmt.Errorf("read peer config: %w", err)
	}

	var cfg PeerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return PeerConfig{}, time.Time{}, fmt.Errorf("parse peer config: %w", err)
	}
	if err := validatePeers(cfg.Peers); err != nil {
		return PeerConfig{}, time.Time{}, fmt.Errorf("invalid peer config: %w", err)
	}

	info, err := os.Stat(path)
	var mtime time.Time
	if err == nil {
		mtime = info.ModTime()
	}
	return cfg, mtime, nil
}

// validatePeers rejects a hand-edited peer config with an unreachable
// entry (missing host, out-of-range port, unsupported protocol) rather
// than letting the probe loop spin on it forever.
func validatePeers(peers []ConfiguredPeer) error {
	for _, p := range peers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("peer %q: %w", p.Name, err)
		}
	}
	return nil
}

func writeConfig(path string, cfg PeerConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// statMtime returns the current mtime of the peer config file, or the
// zero Time if it no longer exists.
func statMtime(root string) time.Time {
	info, err := os.Stat(filepath.Join(root, configFileName))
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
