package api

import (
	"encoding/json"
	"net/http"

	"github.com/vincitamore/vitrum/internal/apierr"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps an apierr.Kind to its HTTP status code per spec §7 and
// writes a JSON error body. Errors that aren't an *apierr.Error are
// treated as internal.
func writeError(w http.ResponseWriter, err error) {
	e, ok := apierr.As(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	status := statusFor(e)
	writeJSON(w, status, map[string]string{"error": e.Error(), "kind": string(e.Kind)})
}

func statusFor(e *apierr.Error) int {
	switch e.Kind {
	case apierr.BadRequest:
		return http.StatusBadRequest
	case apierr.NotFound, apierr.PeerOffline:
		return http.StatusNotFound
	case apierr.Forbidden:
		return http.StatusForbidden
	case apierr.PeerTimeout:
		return http.StatusGatewayTimeout
	case apierr.PeerUpstreamErr:
		if e.Status != 0 {
			return e.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return apierr.Wrap(apierr.BadRequest, "invalid JSON body", err)
	}
	return nil
}
