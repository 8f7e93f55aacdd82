package api

import (
	"encoding/json"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/yanizio/launchpad/internal/draft"
	"github.com/yanizio/launchpad/internal/draft/store"
	"github.com/yanizio/launchpad/internal/provider"
	"github.com/yanizio/launchpad/internal/provision"
)

type errorBody struct {
	Error  string             `json:"error"`
	Fields []draft.ErrorField `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// conflicts are sentinel errors answered with 409 and fixed text.
var conflicts = []struct {
	err error
	msg string
}{
	{store.ErrDuplicateSubdomain, "subdomain is already taken"},
	{store.ErrStaleWrite, "draft was changed by another request; reload and try again"},
	{draft.ErrInvalidTransition, "draft is not in a state that allows this"},
	{provision.ErrNotFailed, "draft has not failed"},
	{provision.ErrRetriesExhausted, "retry limit reached; contact support"},
	{provision.ErrDesignLocked, "design is locked while it is applied; use design retry"},
	{provision.ErrSiteNotReady, "site is not ready yet"},
}

// fail maps err onto a status code and a body that is safe to show.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *draft.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation failed", Fields: ve.Fields})
		return
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "draft not found"})
		return
	case errors.Is(err, store.ErrAlreadyClaimed), errors.Is(err, provision.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "draft belongs to another account"})
		return
	}
	for _, c := range conflicts {
		if errors.Is(err, c.err) {
			writeJSON(w, http.StatusConflict, errorBody{Error: c.msg})
			return
		}
	}

	fields := []zap.Field{
		zap.String("path", r.URL.Path),
		zap.String("request_id", chimw.GetReqID(r.Context())),
		zap.Error(err),
	}
	if _, ok := provider.KindOf(err); ok {
		h.log.Warn("provider error", fields...)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "the site provider could not complete the request"})
		return
	}
	h.log.Error("request failed", fields...)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
}
