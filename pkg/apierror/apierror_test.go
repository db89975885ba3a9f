package apierror

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIErrorFormatting(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "BAD_REQUEST: email is required (email)", BadRequest("email is required", "email").Error())
	assert.Equal(t, "FORBIDDEN: access denied", Forbidden("access denied").Error())

	var nilErr *APIError
	assert.Equal(t, "", nilErr.Error())
}

func TestAPIErrorStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusUnauthorized, Unauthorized("invalid token").HTTPStatus)
	assert.Equal(t, http.StatusForbidden, Forbidden("nope").HTTPStatus)
	assert.Equal(t, http.StatusBadRequest, BadRequest("bad", "").HTTPStatus)
}
