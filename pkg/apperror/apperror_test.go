package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, Validation("bad").HTTPStatus())
	assert.Equal(t, http.StatusNotFound, NotFound("claim", "x").HTTPStatus())
	assert.Equal(t, http.StatusConflict, Conflict("dup", nil).HTTPStatus())
	assert.Equal(t, http.StatusConflict, InvalidTransition("A", "B").HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, Internal("boom", nil).HTTPStatus())
}

func TestClassificationThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("repository: %w", Conflict("duplicate", nil))
	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.Equal(t, CodeConflict, CodeOf(wrapped))

	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestInternalKeepsCause(t *testing.T) {
	cause := Conflict("duplicate", nil)
	err := Internal("allocation failed", cause)

	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "allocation failed")
}

func TestInvalidTransitionDetails(t *testing.T) {
	err := InvalidTransition("PENDING_ACCEPTANCE", "COMPLETED")
	assert.Equal(t, "PENDING_ACCEPTANCE", err.Details["from"])
	assert.Equal(t, "COMPLETED", err.Details["to"])
}
