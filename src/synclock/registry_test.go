package synclock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/centavo/backend/src/models"
)

func TestLockAndRelease(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.Locked("rec-1"))
	r.Lock("rec-1")
	assert.True(t, r.Locked("rec-1"))
	assert.False(t, r.Locked("rec-2"))

	_, hadBuffer := r.Release("rec-1")
	assert.False(t, hadBuffer)
	assert.False(t, r.Locked("rec-1"))
}

func TestBufferMergesSuccessivePatches(t *testing.T) {
	r := NewRegistry()
	r.Lock("rec-1")

	r.Buffer("rec-1", models.UpdateStagedRecordInput{
		Description: models.SetField("first"),
		Notes:       models.SetField("note"),
	})
	r.Buffer("rec-1", models.UpdateStagedRecordInput{
		Description: models.ClearField[string](),
	})

	patch, ok := r.Buffered("rec-1")
	require.True(t, ok)
	assert.True(t, patch.Description.IsClear())
	notes, hasNotes := patch.Notes.Value()
	require.True(t, hasNotes)
	assert.Equal(t, "note", notes)
}

func TestReleasePopsBuffer(t *testing.T) {
	r := NewRegistry()
	r.Lock("rec-1")
	r.Buffer("rec-1", models.UpdateStagedRecordInput{Notes: models.SetField("pending edit")})

	patch, ok := r.Release("rec-1")
	require.True(t, ok)
	notes, hasNotes := patch.Notes.Value()
	require.True(t, hasNotes)
	assert.Equal(t, "pending edit", notes)

	_, ok = r.Buffered("rec-1")
	assert.False(t, ok)
	assert.False(t, r.Locked("rec-1"))
}
