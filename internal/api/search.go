package api

import (
	"net/http"
	"strconv"

	"github.com/vincitamore/vitrum/internal/apierr"
	"github.com/vincitamore/vitrum/pkg/docindex"
)

type searchHit struct {
	Document *docindex.Document `json:"document"`
	Score    float64            `json:"score"`
}

// handleSearch answers GET /search?q=&type=&tag=&limit=.
func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, apierr.New(apierr.BadRequest, "method not allowed"))
		return
	}

	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeError(w, apierr.New(apierr.BadRequest, "q is required"))
		return
	}

	limit := 20
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	results, err := a.srv.Index.Search(query, docindex.DocType(q.Get("type")), q.Get("tag"), limit)
	if err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "search failed", err))
		return
	}

	out := make([]searchHit, 0, len(results))
	for _, res := range results {
		out = append(out, searchHit{Document: res.Document, Score: res.Score})
	}
	writeJSON(w, http.StatusOK, out)
}
