package syncsvc

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/iancoleman/strcase"

	"github.com/vincitamore/vitrum/internal/apierr"
	"github.com/vincitamore/vitrum/pkg/docindex"
)

// Incoming writes a pushed document under "inbox/" per spec §4.F
// "Incoming (push)" and fires peer-document-received on the Bus.
func (s *Service) Incoming(push IncomingPush) (string, error) {
	now := time.Now().UTC()
	filename := fmt.Sprintf("%s-from-%s-%s.md",
		now.Format("2006-01-02T15-04-05"),
		slugify(push.From),
		slugify(push.Title),
	)
	relPath := path.Join("inbox", filename)
	absPath := path.Join(s.root, relPath)

	fm := map[string]any{
		"title":       push.Title,
		"type":        string(docindex.TypeInbox),
		"source":      "peer",
		"source-peer": push.From,
		"source-path": push.SourcePath,
		"tags":        push.Tags,
	}

	body := push.Content
	if push.Message != "" {
		body = fmt.Sprintf("> %s\n\n%s", push.Message, push.Content)
	}

	if err := docindex.WriteRawFile(s.fs, absPath, fm, body); err != nil {
		return "", apierr.Wrap(apierr.Internal, "failed to write incoming document", err)
	}

	s.bus.PeerDocumentReceived(relPath)
	return relPath, nil
}

// slugify lowercases and hyphenates a display string for inbox filenames.
func slugify(s string) string {
	slug := strcase.ToKebab(s)
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "unnamed"
	}
	return slug
}
