// Package peers implements the Peer Registry: loading and hot-reloading
// the peer configuration file, probing each peer on a timer, and
// tracking per-peer liveness with exponential backoff (spec §4.E).
package peers

import (
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Protocol is the transport scheme a peer is reachable on.
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
)

// Status is a peer's runtime liveness classification.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusUnknown Status = "unknown"
)

// Self describes this instance's own federation identity, persisted in
// PeerConfig and handed out verbatim in hello responses.
type Self struct {
	InstanceID    string   `json:"instanceId"`
	DisplayName   string   `json:"displayName"`
	SharedFolders []string `json:"sharedFolders"`
	SharedTags    []string `json:"sharedTags"`
}

// ConfiguredPeer is one entry in PeerConfig.peers[].
type ConfiguredPeer struct {
	Name     string   `json:"name"`
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Protocol Protocol `json:"protocol"`
}

// PeerConfig is the process-wide, hot-reloadable federation config at
// "<workspaceRoot>/.vitrum-peers.json" (spec §3).
type PeerConfig struct {
	Self  Self             `json:"self"`
	Peers []ConfiguredPeer `json:"peers"`
}

// LiveStatus is the runtime record the Registry maintains per configured
// peer (spec §3's PeerLiveStatus).
type LiveStatus struct {
	Name          string    `json:"name"`
	Host          string    `json:"host"`
	Port          int       `json:"port"`
	Protocol      Protocol  `json:"protocol"`
	Status        Status    `json:"status"`
	InstanceID    string    `json:"instanceId,omitempty"`
	DisplayName   string    `json:"displayName,omitempty"`
	SharedFolders []string  `json:"sharedFolders,omitempty"`
	SharedTags    []string  `json:"sharedTags,omitempty"`
	DocumentCount int       `json:"documentCount,omitempty"`
	LastSeen      time.Time `json:"lastSeen,omitempty"`
	LatencyMs     int64     `json:"latencyMs,omitempty"`

	ConsecutiveFailures int `json:"consecutiveFailures"`
}

// ProbeOutcome records one probe attempt against a peer, retained in a
// bounded per-peer ring buffer (SPEC_FULL.md's "peer probe history"
// supplemental feature).
type ProbeOutcome struct {
	At        time.Time `json:"at"`
	Online    bool      `json:"online"`
	LatencyMs int64     `json:"latencyMs,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// HelloResponse is what a peer's "hello" endpoint returns about itself
// (spec §4.G).
type HelloResponse struct {
	InstanceID    string   `json:"instanceId"`
	DisplayName   string   `json:"displayName"`
	SharedFolders []string `json:"sharedFolders"`
	SharedTags    []string `json:"sharedTags"`
	DocumentCount int      `json:"documentCount"`
	Online        bool     `json:"online"`
	UptimeSeconds int64    `json:"uptime"`
	APIVersion    string   `json:"apiVersion"`
}

// Validate checks that p's fields are well-formed enough to dial: a name
// and host are required, the port must fall in the dialable range, and
// the protocol must be one supported by BaseURL.
func (p ConfiguredPeer) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.Host, validation.Required),
		validation.Field(&p.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&p.Protocol, validation.Required, validation.In(ProtocolHTTP, ProtocolHTTPS)),
	)
}

// BaseURL returns the peer's addressable origin, e.g. "http://host:1234".
func (p ConfiguredPeer) BaseURL() string {
	proto := string(p.Protocol)
	if proto == "" {
		proto = string(ProtocolHTTP)
	}
	return proto + "://" + p.Host + ":" + strconv.Itoa(p.Port)
}
