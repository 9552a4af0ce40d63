package docindex

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

const frontmatterDelim = "---"

// splitFrontmatter splits raw file bytes into a YAML frontmatter block (if
// present) and the remaining body. Absence of a leading "---" block yields
// an empty map and the full content, per spec §4.A.
func splitFrontmatter(raw []byte) (map[string]any, string, error) {
	text := string(raw)
	// Normalize CRLF so delimiter matching is newline-style agnostic.
	text = strings.ReplaceAll(text, "\r\n", "\n")

	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontmatterDelim {
		return map[string]any{}, text, nil
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontmatterDelim {
			end = i
			break
		}
	}
	if end == -1 {
		// Unterminated block: treat the whole thing as malformed frontmatter.
		return nil, "", fmt.Errorf("malformed-frontmatter: unterminated %q block", frontmatterDelim)
	}

	yamlBlock := strings.Join(lines[1:end], "\n")
	body := strings.Join(lines[end+1:], "\n")
	body = strings.TrimPrefix(body, "\n")

	if strings.TrimSpace(yamlBlock) == "" {
		return map[string]any{}, body, nil
	}

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(yamlBlock), &fm); err != nil {
		return nil, "", fmt.Errorf("malformed-frontmatter: %w", err)
	}
	if fm == nil {
		fm = map[string]any{}
	}
	return normalizeYAMLMap(fm), body, nil
}

// normalizeYAMLMap recursively converts map[interface{}]interface{} nodes
// (which yaml.v3 can still produce for nested maps under some decode paths)
// into map[string]any so downstream JSON encoding and mapstructure decoding
// behave uniformly across the tagged-value tree described in spec §9.
func normalizeYAMLMap(in any) any {
	switch v := in.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = normalizeYAMLMap(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[fmt.Sprintf("%v", k)] = normalizeYAMLMap(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = normalizeYAMLMap(val)
		}
		return out
	default:
		return v
	}
}

// extractFederation pulls the frontmatter.federation sub-block, if present,
// into a strongly-typed FederationMeta (spec §9: "every other key is passed
// through verbatim by the updater" — only this block is typed).
func extractFederation(fm map[string]any) (*FederationMeta, error) {
	raw, ok := fm["federation"]
	if !ok {
		return nil, nil
	}
	raw = normalizeYAMLMap(raw)
	var meta FederationMeta
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &meta,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("federation decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("malformed-frontmatter: federation block: %w", err)
	}
	return &meta, nil
}

// federationToMap serializes a FederationMeta back into the generic map
// shape stored under frontmatter["federation"], used by the field-level
// updater in pkg/syncsvc so that writing federation metadata never
// disturbs sibling keys.
func federationToMap(m *FederationMeta) map[string]any {
	return map[string]any{
		"origin-peer":     m.OriginPeer,
		"origin-name":     m.OriginName,
		"origin-host":     m.OriginHost,
		"origin-path":     m.OriginPath,
		"adopted-at":      m.AdoptedAt,
		"origin-checksum": m.OriginChecksum,
		"local-checksum":  m.LocalChecksum,
		"sync-status":     string(m.SyncStatus),
		"last-sync-check": m.LastSyncCheck,
	}
}

// renderFrontmatter serializes a file's frontmatter map and body back into
// raw bytes ("---\n<yaml>\n---\n<body>"). Key order follows yaml.v3's map
// encoding (alphabetical for map[string]any), which is acceptable: spec's
// parser round-trip law is defined "modulo whitespace in the YAML emitter".
func renderFrontmatter(fm map[string]any, body string) ([]byte, error) {
	var buf bytes.Buffer
	if len(fm) > 0 {
		buf.WriteString(frontmatterDelim + "\n")
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(fm); err != nil {
			return nil, fmt.Errorf("render frontmatter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("render frontmatter: %w", err)
		}
		buf.WriteString(frontmatterDelim + "\n")
	}
	buf.WriteString(body)
	return buf.Bytes(), nil
}
