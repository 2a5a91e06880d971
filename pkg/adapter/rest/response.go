package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/service"
	"github.com/marmos91/dittofiles/pkg/store/metadata"
)

// errorResponse is the body of every error answer.
type errorResponse struct {
	Error string `json:"error"`
}

// fileView is the wire shape of a file node. LocalPath and the insertion
// sequence stay private.
type fileView struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	IsPublic  bool      `json:"isPublic"`
	ParentID  parentID  `json:"parentId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newFileView(n *metadata.FileNode) fileView {
	return fileView{
		ID:        n.ID,
		UserID:    n.OwnerID,
		Name:      n.Name,
		Type:      string(n.Kind),
		IsPublic:  n.IsPublic,
		ParentID:  parentID(n.ParentID),
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

type userView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// parentID accepts the root as the number 0 or any string, and renders the
// root back as the number 0 so clients see the same value they sent.
type parentID string

func (p *parentID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil && v == 0 {
			s = metadata.RootID
		}
		*p = parentID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("parentId must be a string or a number")
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return errors.New("parentId must be an integer")
	}
	if v == 0 {
		*p = parentID(metadata.RootID)
		return nil
	}
	*p = parentID(strconv.FormatInt(v, 10))
	return nil
}

func (p parentID) MarshalJSON() ([]byte, error) {
	if p == "" || p == metadata.RootID {
		return []byte("0"), nil
	}
	return json.Marshal(string(p))
}

// errInvalidJSON answers bodies that do not decode.
var errInvalidJSON = &service.Error{Kind: service.KindValidation, Message: "Invalid JSON"}

// errBodyTooLarge answers bodies over the configured cap.
var errBodyTooLarge = errors.New("request body too large")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("REST: failed to write response: %v", err)
	}
}

// statusFor maps a service error kind to an HTTP status. Conflicts answer
// 400 to keep the original API's "Already exist" contract.
func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindValidation, service.KindConflict:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers err. Internal failures are logged with their cause and
// reported to the client without it.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Request too large"})
		return
	}

	kind := service.KindOf(err)
	if kind == service.KindInternal {
		logger.Error("REST: %s %s failed: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, statusFor(kind), errorResponse{Error: service.MessageOf(err)})
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched so
// field validation reports what is missing.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errBodyTooLarge
	}
	return errInvalidJSON
}
