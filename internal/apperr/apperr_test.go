package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	e := New(KindNotFound, "document not found")
	assert.Equal(t, "not_found: document not found", e.Error())

	cause := errors.New("disk error")
	w := Wrap(KindBlobUnavailable, "read object", cause)
	assert.Equal(t, "blob_unavailable: read object: disk error", w.Error())
	assert.ErrorIs(t, w, cause)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("title too long")))
	assert.Equal(t, KindForbidden, KindOf(Forbidden("edit access required")))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestKindOf_WrappedChain(t *testing.T) {
	inner := NotFound("version not found")
	outer := fmt.Errorf("resolve version: %w", inner)
	assert.Equal(t, KindNotFound, KindOf(outer))
	assert.True(t, IsKind(outer, KindNotFound))
	assert.False(t, IsKind(outer, KindForbidden))
}
