package relationship

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "github.com/smallnest/memograph/memory"
)

// vecAt returns a unit vector at the given angle from the reference axis,
// so the cosine between vecAt(0) and vecAt(theta) is cos(theta).
func vecAt(theta float64) []float32 {
	v := make([]float32, mem.EmbeddingDim)
	v[0] = float32(math.Cos(theta))
	v[1] = float32(math.Sin(theta))
	return v
}

func entryWith(content string, theta float64, createdAt time.Time) *mem.Entry {
	e := mem.NewEntry("owner-1", content, mem.CategoryPreference)
	e.Embedding = vecAt(theta)
	e.CreatedAt = createdAt
	return e
}

func TestOpposes(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"I love coffee", "I hate coffee", true},
		{"I like jazz", "I dislike jazz", true},
		{"I always run in the morning", "I never run in the morning", true},
		{"I drink coffee", "I don't drink coffee", true},
		{"I drink coffee", "I no longer drink coffee", true},
		{"I love coffee", "I love tea", false},
		{"I don't drink coffee", "I don't drink tea", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Opposes(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestClassifyContradiction(t *testing.T) {
	now := time.Now().UTC()
	a := entryWith("I love coffee", 0, now)
	b := entryWith("I hate coffee", 0.3, now.Add(-time.Hour))

	cls := Classify(a, b, DefaultClassifierConfig())
	require.NotNil(t, cls)
	assert.Equal(t, mem.RelationContradicts, cls.Type)
	assert.Greater(t, cls.Confidence, 0.7)
}

func TestClassifySupersedesOnOldOpposition(t *testing.T) {
	now := time.Now().UTC()
	a := entryWith("I drink coffee every day", 0, now)
	b := entryWith("I no longer drink coffee", 0.2, now.Add(-90*24*time.Hour))

	cls := Classify(a, b, DefaultClassifierConfig())
	require.NotNil(t, cls)
	assert.Equal(t, mem.RelationSupersedes, cls.Type)
}

func TestClassifySupports(t *testing.T) {
	now := time.Now().UTC()
	a := entryWith("I run three times a week", 0, now)
	b := entryWith("I run on weekday mornings", 0.2, now)

	cls := Classify(a, b, DefaultClassifierConfig())
	require.NotNil(t, cls)
	assert.Equal(t, mem.RelationSupports, cls.Type)
}

func TestClassifyElaborates(t *testing.T) {
	now := time.Now().UTC()
	a := entryWith("I prefer morning workouts", 0, now)
	b := entryWith("I prefer morning workouts because the gym is empty and I have more energy before work", 0.1, now)

	cls := Classify(a, b, DefaultClassifierConfig())
	require.NotNil(t, cls)
	assert.Equal(t, mem.RelationElaborates, cls.Type)
}

func TestClassifyRelated(t *testing.T) {
	now := time.Now().UTC()
	a := entryWith("I enjoy hiking on weekends", 0, now)
	b := entryWith("My favorite trail is near the lake", 0.65, now)

	cls := Classify(a, b, DefaultClassifierConfig())
	require.NotNil(t, cls)
	assert.Equal(t, mem.RelationRelated, cls.Type)
}

func TestClassifyUnrelated(t *testing.T) {
	now := time.Now().UTC()
	a := entryWith("I work as a nurse", 0, now)
	b := entryWith("My cat is named Biscuit", 1.4, now)

	assert.Nil(t, Classify(a, b, DefaultClassifierConfig()))
}

func TestClassifySelfIsNil(t *testing.T) {
	a := entryWith("I love coffee", 0, time.Now().UTC())
	assert.Nil(t, Classify(a, a, DefaultClassifierConfig()))
}

func TestClassifyWithoutVectorsUsesOverlap(t *testing.T) {
	now := time.Now().UTC()
	a := mem.NewEntry("owner-1", "I love strong black coffee", mem.CategoryPreference)
	a.CreatedAt = now
	b := mem.NewEntry("owner-1", "I hate strong black coffee", mem.CategoryPreference)
	b.CreatedAt = now

	cls := Classify(a, b, DefaultClassifierConfig())
	require.NotNil(t, cls)
	assert.Equal(t, mem.RelationContradicts, cls.Type)
}
