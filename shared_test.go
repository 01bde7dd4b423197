package alligator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharedBuffer_CreateAndAttach(t *testing.T) {
	f := testFabric(t)
	owner, err := f.AllocateShared("", 32)
	require.NoError(t, err)
	assert.EqualValues(t, 1, owner.RefCount())

	attacher, err := f.AttachShared(owner.Name(), 32)
	require.NoError(t, err)
	assert.EqualValues(t, 2, attacher.RefCount())

	span, err := owner.Span(0, 5)
	require.NoError(t, err)
	copy(span.Bytes(), []byte("alpha"))

	otherSpan, err := attacher.Span(0, 5)
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(otherSpan.Bytes()))
}

func TestSharedBuffer_AttachRejectsSizeMismatch(t *testing.T) {
	f := testFabric(t)
	owner, err := f.AllocateShared("", 32)
	require.NoError(t, err)

	_, err = f.AttachShared(owner.Name(), 64)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrKindInvalidState))
}

func TestSharedBuffer_RefCountDropsOnDeallocate(t *testing.T) {
	f := testFabric(t)
	owner, err := f.AllocateShared("", 16)
	require.NoError(t, err)
	attacher, err := f.AttachShared(owner.Name(), 16)
	require.NoError(t, err)
	require.EqualValues(t, 2, owner.RefCount())

	require.NoError(t, attacher.deallocate())
	assert.EqualValues(t, 1, owner.RefCount())
}

func TestSharedBuffer_GeneratedNamesAreUnique(t *testing.T) {
	a := GenerateSegmentName()
	b := GenerateSegmentName()
	assert.NotEqual(t, a, b)
}
