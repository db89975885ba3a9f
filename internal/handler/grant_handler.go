package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-org-access/internal/model"
	"go-org-access/internal/service"
)

type GrantHandler struct {
	service *service.GrantService
}

func NewGrantHandler(service *service.GrantService) *GrantHandler {
	return &GrantHandler{service: service}
}

func (h *GrantHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	grants, err := h.service.List(r.Context(), actor, model.GrantFilter{
		UserID:       strings.TrimSpace(query.Get("user_id")),
		DepartmentID: strings.TrimSpace(query.Get("department_id")),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, grants, &model.Meta{Total: len(grants)})
}

func (h *GrantHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var payload model.CreateGrantRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	grant, err := h.service.Create(r.Context(), actor, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, grant, nil)
}

func (h *GrantHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.Revoke(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
