package transport

import (
	"errors"
	"net/http"
	"strconv"

	"pos-ledger/internal/domain"
	"pos-ledger/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// SessionHeader lets an unauthenticated till name its own cart session
const SessionHeader = middleware.SessionIDHeader

// sessionID identifies the cart owner: the authenticated operator, or the
// session header when the API runs without auth
func sessionID(r *http.Request) string {
	if userID, ok := middleware.GetUserID(r.Context()); ok && userID != "" {
		return userID
	}
	if id := r.Header.Get(SessionHeader); id != "" {
		return id
	}
	return "default"
}

// operatorID is the authenticated operator, or empty when the request carries
// no identity
func operatorID(r *http.Request) string {
	userID, _ := middleware.GetUserID(r.Context())
	return userID
}

// uuidParam parses a chi URL parameter as a UUID, writing a 400 on failure
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// kindParam parses the {kind} URL parameter, writing a 400 on failure
func kindParam(w http.ResponseWriter, r *http.Request) (domain.Kind, bool) {
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return kind, true
}

// intQuery reads a non-negative integer query parameter, falling back to def
// when it is absent or malformed
func intQuery(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func limitQuery(r *http.Request) int {
	limit := intQuery(r, "limit", defaultListLimit)
	if limit == 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// CommitResponse is returned by checkout and reconcile. Unresolved lists the
// stock adjustments still missing when the status is 202.
type CommitResponse struct {
	Record     *domain.Record       `json:"record"`
	Unresolved []domain.LineFailure `json:"unresolved,omitempty"`
	Message    string               `json:"message,omitempty"`
}

// respondCommit writes the outcome of an operation that may have persisted a
// record with some stock deltas still pending
func respondCommit(w http.ResponseWriter, record *domain.Record, err error, okStatus int) bool {
	var partial *domain.PartialCommitError
	if errors.As(err, &partial) && record != nil {
		middleware.RespondWithJSON(w, http.StatusAccepted, CommitResponse{
			Record:     record,
			Unresolved: partial.Unresolved,
			Message:    partial.Error(),
		})
		return true
	}
	if err != nil {
		return false
	}
	middleware.RespondWithJSON(w, okStatus, CommitResponse{Record: record})
	return true
}
