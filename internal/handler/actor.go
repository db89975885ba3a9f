package handler

import (
	"net/http"

	"go-org-access/internal/middleware"
	"go-org-access/internal/model"
	"go-org-access/pkg/apierror"
)

// actorFromRequest returns the identity RequireAuth attached to the request.
func actorFromRequest(w http.ResponseWriter, r *http.Request) (model.AuthenticatedUser, bool) {
	actor, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return model.AuthenticatedUser{}, false
	}
	return actor, true
}
