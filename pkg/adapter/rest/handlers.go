package rest

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/marmos91/dittofiles/pkg/registry"
	"github.com/marmos91/dittofiles/pkg/service"
)

type handlers struct {
	reg     *registry.Registry
	metrics metrics.HTTPMetrics
}

// GET /status
func (h *handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reg.Status().Status(r.Context()))
}

// GET /stats
func (h *handlers) getStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reg.Status().Stats(r.Context()))
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /users
func (h *handlers) postUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.reg.Users().Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userView{ID: user.ID, Email: user.Email})
}

// GET /connect
func (h *handlers) getConnect(w http.ResponseWriter, r *http.Request) {
	creds, err := service.ParseBasicAuth(r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, err := h.reg.Auth().Authenticate(r.Context(), creds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// GET /disconnect
//
// A token that is already gone answers 204 like a live one, so clients can
// retry a logout. Only a missing header is 401.
func (h *handlers) getDisconnect(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(tokenHeader)
	if token == "" {
		writeError(w, r, service.ErrUnauthorized)
		return
	}

	err := h.reg.Auth().Revoke(r.Context(), token)
	if err != nil && !errors.Is(err, service.ErrUnauthorized) {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /users/me
func (h *handlers) getMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.reg.Users().Get(r.Context(), userID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userView{ID: user.ID, Email: user.Email})
}

type createFileRequest struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	ParentID parentID `json:"parentId"`
	IsPublic bool     `json:"isPublic"`
	Data     string   `json:"data"`
}

// POST /files
func (h *handlers) postFile(w http.ResponseWriter, r *http.Request) {
	var req createFileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	node, err := h.reg.Files().Create(r.Context(), service.CreateRequest{
		OwnerID:  userID(r.Context()),
		Name:     req.Name,
		Kind:     req.Type,
		ParentID: string(req.ParentID),
		IsPublic: req.IsPublic,
		Data:     req.Data,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if req.Data != "" {
		h.metrics.RecordBytesTransferred("upload", int64(len(req.Data)))
	}
	writeJSON(w, http.StatusCreated, newFileView(node))
}

// GET /files?parentId=&page=
func (h *handlers) listFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// Unparseable pages fall back to the first page.
	page, err := strconv.Atoi(query.Get("page"))
	if err != nil {
		page = 0
	}

	nodes, err := h.reg.Files().List(r.Context(), userID(r.Context()), query.Get("parentId"), page)
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]fileView, 0, len(nodes))
	for _, n := range nodes {
		views = append(views, newFileView(n))
	}
	writeJSON(w, http.StatusOK, views)
}

// GET /files/{id}
func (h *handlers) getFile(w http.ResponseWriter, r *http.Request) {
	node, err := h.reg.Files().Get(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFileView(node))
}

// PUT /files/{id}/publish
func (h *handlers) publish(w http.ResponseWriter, r *http.Request) {
	h.setPublic(w, r, true)
}

// PUT /files/{id}/unpublish
func (h *handlers) unpublish(w http.ResponseWriter, r *http.Request) {
	h.setPublic(w, r, false)
}

func (h *handlers) setPublic(w http.ResponseWriter, r *http.Request, isPublic bool) {
	node, err := h.reg.Files().SetPublic(r.Context(), userID(r.Context()), chi.URLParam(r, "id"), isPublic)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFileView(node))
}

// GET /files/{id}/data?size=
func (h *handlers) getFileData(w http.ResponseWriter, r *http.Request) {
	width := 0
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, service.ErrInvalidSize)
			return
		}
		width = n
	}

	c, err := h.reg.Files().ReadContent(r.Context(), userID(r.Context()), chi.URLParam(r, "id"), width)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer func() { _ = c.Body.Close() }()

	w.Header().Set("Content-Type", c.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(c.Size, 10))
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, c.Body)
	h.metrics.RecordBytesTransferred("download", n)
	if err != nil && !errors.Is(err, r.Context().Err()) {
		logger.Warn("REST: streaming %s aborted after %d bytes: %v", c.Node.ID, n, err)
	}
}
