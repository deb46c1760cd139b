package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryValidate(t *testing.T) {
	t.Run("valid entry", func(t *testing.T) {
		e := NewEntry("user-1", "likes green tea", CategoryPreference)
		assert.NoError(t, e.Validate())
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, 0.5, e.ImportanceScore)
	})

	t.Run("missing owner", func(t *testing.T) {
		e := NewEntry("", "content", CategoryContext)
		var verr *ValidationError
		require.ErrorAs(t, e.Validate(), &verr)
		assert.Equal(t, "owner_id", verr.Field)
	})

	t.Run("unknown category", func(t *testing.T) {
		e := NewEntry("user-1", "content", Category("mood"))
		var verr *ValidationError
		require.ErrorAs(t, e.Validate(), &verr)
		assert.Equal(t, "category", verr.Field)
	})

	t.Run("importance out of range", func(t *testing.T) {
		e := NewEntry("user-1", "content", CategoryContext)
		e.ImportanceScore = 1.5
		var verr *ValidationError
		require.ErrorAs(t, e.Validate(), &verr)
		assert.Equal(t, "importance_score", verr.Field)
	})

	t.Run("wrong embedding dimension", func(t *testing.T) {
		e := NewEntry("user-1", "content", CategoryContext)
		e.Embedding = make([]float32, 3)
		assert.ErrorIs(t, e.Validate(), ErrDimensionMismatch)
	})

	t.Run("content too long", func(t *testing.T) {
		e := NewEntry("user-1", string(make([]byte, MaxContentLength+1)), CategoryContext)
		var verr *ValidationError
		require.ErrorAs(t, e.Validate(), &verr)
		assert.Equal(t, "content", verr.Field)
	})
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.2))
	assert.Equal(t, 1.0, Clamp01(3.0))
	assert.Equal(t, 0.42, Clamp01(0.42))
}

func TestRelationshipValidate(t *testing.T) {
	rel := &Relationship{
		SourceID:   "a",
		TargetID:   "b",
		Type:       RelationContradicts,
		Strength:   0.8,
		Confidence: 0.9,
	}
	assert.NoError(t, rel.Validate())

	t.Run("self loop rejected", func(t *testing.T) {
		bad := *rel
		bad.TargetID = bad.SourceID
		err := bad.Validate()
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Contains(t, verr.Reason, "self-referencing")
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		bad := *rel
		bad.Type = RelationType("implies")
		assert.Error(t, bad.Validate())
	})
}

func TestEnumValidity(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.Valid(), string(c))
	}
	assert.False(t, Category("").Valid())
	assert.True(t, FactGoal.Valid())
	assert.False(t, FactType("wish").Valid())
	assert.True(t, RelationSupersedes.Valid())
	assert.False(t, RelationType("").Valid())
}

func TestTouch(t *testing.T) {
	e := NewEntry("user-1", "content", CategoryContext)
	now := time.Now()
	e.Touch(now)
	e.Touch(now.Add(time.Minute))
	assert.Equal(t, 2, e.AccessCount)
	assert.Equal(t, now.Add(time.Minute), e.LastAccessedAt)
}
