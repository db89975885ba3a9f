package handler

import (
	"net/http"
	"strings"

	"go-org-access/internal/model"
	"go-org-access/internal/service"
)

type ActivityHandler struct {
	service *service.ActivityService
}

func NewActivityHandler(service *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{service: service}
}

func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := model.ActivityQuery{
		ActorID: strings.TrimSpace(query.Get("actor_id")),
		Action:  strings.TrimSpace(query.Get("action")),
		Limit:   parseIntOrDefault(query.Get("limit"), 50),
	}
	// non-admins default to their own trail
	if filter.ActorID == "" && actor.Role != model.RoleAdmin {
		filter.ActorID = actor.ID
	}

	items, err := h.service.List(r.Context(), actor, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, items, &model.Meta{Total: len(items)})
}
