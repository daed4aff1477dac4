package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnexpectedErrorMessage(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Unexpected(CodeBatch, cause, "expected %d objects, got %d", 3, 2)

	assert.Equal(t, "unexpected BATCH: expected 3 objects, got 2: disk on fire", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "unexpected ACCESSOR: no getter", Unexpected(CodeAccessor, nil, "no getter").Error())
}

func TestReportableErrorMessage(t *testing.T) {
	err := Reportable(CodeUnsupportedType, "Unsupported domain type %s", "Widget")
	assert.Equal(t, "Unsupported domain type Widget", err.Error())

	wrapped := Wrap(errors.New("name taken"))
	assert.Equal(t, "name taken", wrapped.Error())
	assert.Equal(t, CodeUser, CodeOf(wrapped))
}

func TestWrapPreservesFamilies(t *testing.T) {
	un := Unexpected(CodeInvoke, nil, "boom")
	assert.Same(t, un, Wrap(un))

	rep := DeadEntity()
	assert.Same(t, rep, Wrap(rep))

	assert.NoError(t, Wrap(nil))
}

func TestFamilyChecksThroughWrapping(t *testing.T) {
	dead := fmt.Errorf("resolve argument 0: %w", DeadEntity())

	assert.True(t, IsReportable(dead))
	assert.True(t, IsDeadEntity(dead))
	assert.False(t, IsUnexpected(dead))

	re, ok := AsReportable(dead)
	require.True(t, ok)
	assert.Equal(t, CodeDeadEntity, re.Code)
}

func TestUnexpectedTakesPrecedence(t *testing.T) {
	err := Unexpected(CodeInvoke, DeadEntity(), "invoke failed")

	assert.True(t, IsUnexpected(err))
	assert.False(t, IsReportable(err), "a reportable cause inside a fatal error is not reportable")
	assert.False(t, IsDeadEntity(err))
	assert.Equal(t, CodeInvoke, CodeOf(err))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(nil))
}
