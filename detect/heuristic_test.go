package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smallnest/memograph/memory"
)

func TestHeuristicCategories(t *testing.T) {
	h := NewHeuristic()

	tests := []struct {
		text     string
		remember bool
		category memory.Category
	}{
		{"I love morning workouts", true, memory.CategoryPreference},
		{"I can't stand loud gyms", true, memory.CategoryPreference},
		{"My name is Jordan", true, memory.CategoryPersonalInfo},
		{"I work as a teacher", true, memory.CategoryPersonalInfo},
		{"Always answer me in short sentences", true, memory.CategoryInstruction},
		{"From now on call me coach", true, memory.CategoryInstruction},
		{"I want to run a marathon next year", true, memory.CategoryContext},
		{"what's the weather like today?", false, memory.CategoryContext},
		{"ok", false, memory.CategoryContext},
		{"that sounds good to me thanks", false, memory.CategoryContext},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			d := h.Analyze(tt.text)
			assert.Equal(t, tt.remember, d.ShouldRemember)
			if tt.remember {
				assert.Equal(t, tt.category, d.Category)
				assert.Greater(t, d.Importance, 0.0)
				assert.NotEmpty(t, d.Keywords)
			}
		})
	}
}

func TestExtractKeywords(t *testing.T) {
	keywords := ExtractKeywords("I really love strong espresso in the morning")
	assert.Contains(t, keywords, "love")
	assert.Contains(t, keywords, "espresso")
	assert.Contains(t, keywords, "morning")
	assert.NotContains(t, keywords, "the")
	assert.NotContains(t, keywords, "really")

	t.Run("deduplicates and caps", func(t *testing.T) {
		keywords := ExtractKeywords("alpha beta gamma delta epsilon zeta eta theta iota kappa alpha")
		assert.Len(t, keywords, maxKeywords)
	})
}
