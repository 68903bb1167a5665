package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/model"
)

// WindowsHandler manages the set of admin-declared time windows.
type WindowsHandler struct {
	deps Dependencies
}

// NewWindowsHandler creates a new windows handler.
func NewWindowsHandler(deps Dependencies) *WindowsHandler {
	return &WindowsHandler{deps: deps}
}

type windowView struct {
	Name  string `json:"name"`
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

func toWindowView(w model.ActiveWindow) windowView {
	v := windowView{Name: w.Name, Start: w.Start.Format(time.RFC3339)}
	if !w.OpenEnded() {
		v.End = w.End.Format(time.RFC3339)
	}
	return v
}

// HandleWindows serves GET (list) and PUT (upsert) on /windows.
func (h *WindowsHandler) HandleWindows(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPut:
		h.put(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllow, ErrMethodNotAllowed)
	}
}

func (h *WindowsHandler) list(w http.ResponseWriter, r *http.Request) {
	wins := h.deps.Windows(r.Context())
	views := make([]windowView, 0, len(wins))
	for _, win := range wins {
		views = append(views, toWindowView(win))
	}
	writeJSON(w, http.StatusOK, map[string]any{"windows": views})
}

func (h *WindowsHandler) put(w http.ResponseWriter, r *http.Request) {
	var req windowRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	win, err := req.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	if err := h.deps.PutWindow(r.Context(), win); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, toWindowView(win))
}

// HandleDeleteWindow serves DELETE /windows/{name}.
func (h *WindowsHandler) HandleDeleteWindow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllow, ErrMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/windows/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusBadRequest, codeBadRequest, errors.New("missing window name"))
		return
	}

	if err := h.deps.DeleteWindow(r.Context(), name); err != nil {
		if errors.Is(err, repository.ErrWindowNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, codeInternal, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "name": name})
}
