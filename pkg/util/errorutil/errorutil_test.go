package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	notFound := ToDomainError(fmt.Errorf("load: %w", pgx.ErrNoRows))
	assert.Equal(t, CodeNotFound, notFound.Code)
	assert.Equal(t, http.StatusNotFound, notFound.HTTPStatus)

	internal := ToDomainError(errors.New("boom"))
	assert.Equal(t, CodeInternal, internal.Code)
	assert.EqualError(t, internal, "internal server error: boom")

	wrapped := fmt.Errorf("ticket 1: %w", NewConflict("stale", nil))
	assert.Equal(t, CodeConflict, ToDomainError(wrapped).Code)
}

func TestAuthorizationError(t *testing.T) {
	err := NewAuthorizationError(ReasonFieldNotPermitted, "priority")
	assert.True(t, HasCode(err, CodeForbidden))
	assert.True(t, HasReason(err, ReasonFieldNotPermitted))
	assert.False(t, HasReason(err, ReasonAreaNotGoverned))
	assert.Equal(t, "priority", ToDomainError(err).Details["field"])
	assert.EqualError(t, err, "access denied: field not permitted for role")

	bare := NewAuthorizationError(ReasonRoleNotPermitted, "")
	assert.Empty(t, ToDomainError(bare).Details)
}
