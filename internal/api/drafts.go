package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/launchpad/internal/auth"
	"github.com/yanizio/launchpad/internal/draft"
	"github.com/yanizio/launchpad/internal/provider"
	"github.com/yanizio/launchpad/internal/provision"
	"github.com/yanizio/launchpad/internal/requestinfo"
)

// Service is the orchestrator surface the handlers call.
type Service interface {
	CreateDraft(ctx context.Context, in provision.CreateInput) (*draft.Draft, error)
	Get(ctx context.Context, id string) (*draft.Draft, error)
	Advance(ctx context.Context, id string) (*provision.Result, error)
	Retry(ctx context.Context, id string) (*draft.Draft, error)
	Attach(ctx context.Context, id, userID string) (*draft.Draft, error)
	UpdateDesign(ctx context.Context, id string, d draft.Design) (*draft.Draft, error)
	RetryDesign(ctx context.Context, id string, replace *draft.Design) (*provision.Result, error)
	LoginLink(ctx context.Context, id, userID string) (*provider.LoginToken, error)
}

// Handler holds the draft routes.
type Handler struct {
	svc Service
	log *zap.Logger
}

/*──────────────────────────── payloads ────────────────────────────────────*/

type createRequest struct {
	draft.Brief
	Design draft.Design `json:"design"`
}

type createResponse struct {
	DraftID   string       `json:"draft_id"`
	Subdomain string       `json:"subdomain"`
	Status    draft.Status `json:"status"`
}

type stageResponse struct {
	Status   draft.Status `json:"status"`
	Error    string       `json:"error,omitempty"`
	Conflict bool         `json:"conflict,omitempty"`
	Draft    *draft.Draft `json:"draft"`
}

type loginResponse struct {
	Token    string `json:"token"`
	AdminURL string `json:"admin_url"`
}

/*──────────────────────────── handlers ────────────────────────────────────*/

// CreateDraft handles POST /api/drafts.
func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	info := requestinfo.FromContext(r.Context())
	if info != nil && info.UA.IsBot {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "automated clients are not allowed"})
		return
	}

	var req createRequest
	if !decode(w, r, &req, false) {
		return
	}

	in := provision.CreateInput{
		Brief:          req.Brief,
		Design:         req.Design,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	}
	if info != nil {
		in.Region = info.Region
		in.Country = info.Country
		if info.IP != nil {
			in.ClientIP = info.IP.String()
		}
	}

	d, err := h.svc.CreateDraft(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createResponse{DraftID: d.ID, Subdomain: d.Subdomain, Status: d.Status})
}

// GetDraft handles GET /api/drafts/{id}.
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Advance handles POST /api/drafts/{id}/advance.
func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Advance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stage(res))
}

// Retry handles POST /api/drafts/{id}/retry.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Retry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stageResponse{Status: d.Status, Draft: d})
}

// Attach handles POST /api/drafts/{id}/attach.
func (h *Handler) Attach(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserID(r.Context())
	d, err := h.svc.Attach(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stageResponse{Status: d.Status, Draft: d})
}

// UpdateDesign handles PUT /api/drafts/{id}/design.
func (h *Handler) UpdateDesign(w http.ResponseWriter, r *http.Request) {
	var d draft.Design
	if !decode(w, r, &d, false) {
		return
	}
	out, err := h.svc.UpdateDesign(r.Context(), chi.URLParam(r, "id"), d)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// RetryDesign handles POST /api/drafts/{id}/design/retry.  An empty body
// re-applies the stored design.
func (h *Handler) RetryDesign(w http.ResponseWriter, r *http.Request) {
	var (
		d       draft.Design
		replace *draft.Design
	)
	if !decode(w, r, &d, true) {
		return
	}
	if !d.IsZero() {
		replace = &d
	}
	res, err := h.svc.RetryDesign(r.Context(), chi.URLParam(r, "id"), replace)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stage(res))
}

// LoginLink handles POST /api/drafts/{id}/login.
func (h *Handler) LoginLink(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserID(r.Context())
	tok, err := h.svc.LoginLink(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: tok.Token, AdminURL: tok.AdminURL})
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func stage(res *provision.Result) stageResponse {
	return stageResponse{
		Status:   res.Draft.Status,
		Error:    res.Error,
		Conflict: res.Conflict,
		Draft:    res.Draft,
	}
}

// decode reads a JSON body into v.  With optional set an empty body is
// accepted.  On failure it writes a 400 and returns false.
func decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	switch {
	case err == nil:
		return true
	case optional && errors.Is(err, io.EOF):
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
		return false
	}
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON payload"})
	return false
}
