package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedPoliciesAreValid(t *testing.T) {
	for _, def := range Seed() {
		require.NoError(t, def.Policy.Validate(), def.ID)
		assert.NotEmpty(t, def.Extraction.Defaults, def.ID)
		assert.NotEmpty(t, def.OpeningLine, def.ID)
	}
}

func TestMemoryStoreListKeepsOrder(t *testing.T) {
	store := NewMemoryStore(Seed())
	list := store.List()
	require.Len(t, list, 3)
	assert.Equal(t, Strengths, list[0].ID)
	assert.Equal(t, LifeThemes, list[1].ID)

	_, ok := store.FindByID("missing")
	assert.False(t, ok)
}

func TestApplyProfiles(t *testing.T) {
	store := NewMemoryStore(Seed())
	require.NoError(t, store.ApplyProfiles(map[string]Profile{
		LifeThemes: {MinExchangesForExtraction: 2, MaxExchanges: 4},
	}))

	def, ok := store.FindByID(LifeThemes)
	require.True(t, ok)
	assert.Equal(t, 2, def.Policy.MinExchangesForExtraction)
	assert.Equal(t, 4, def.Policy.MaxExchanges)
}

func TestApplyProfilesRejectsInvalid(t *testing.T) {
	store := NewMemoryStore(Seed())
	err := store.ApplyProfiles(map[string]Profile{LifeThemes: {MinExchangesForExtraction: 9}})
	assert.Error(t, err)

	def, _ := store.FindByID(LifeThemes)
	assert.Equal(t, 3, def.Policy.MinExchangesForExtraction, "failed profiles leave the store untouched")

	assert.Error(t, store.ApplyProfiles(map[string]Profile{"unknown": {MaxExchanges: 2}}))
}

func TestFallbackQuestionClamps(t *testing.T) {
	def := Seed()[1]
	assert.Equal(t, def.FallbackQuestions[0], def.FallbackQuestion(0))
	assert.Equal(t, def.FallbackQuestions[2], def.FallbackQuestion(10))
}

func TestConfirmWaitsForExtraction(t *testing.T) {
	for _, def := range Seed() {
		t.Run(def.ID, func(t *testing.T) {
			_, _, ok := def.Policy.Confirm(def.Policy.ConfirmFrom, false)
			assert.False(t, ok, "confirming before extraction would close the dialogue without findings")

			next, changed, ok := def.Policy.Confirm(def.Policy.ConfirmFrom, true)
			assert.True(t, ok)
			assert.True(t, changed)
			assert.Equal(t, def.Policy.ConfirmTo, next)
		})
	}
}
