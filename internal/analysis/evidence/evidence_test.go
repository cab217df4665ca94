package evidence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJudgeRejectsDeflection(t *testing.T) {
	for _, text := range []string{"idk", "Nothing.", "skip this one", "not sure", "不知道"} {
		assert.False(t, Judge(text).Substantive, text)
		assert.Equal(t, "deflection", Judge(text).Reason, text)
	}
}

func TestJudgeRejectsShortMetaQuestion(t *testing.T) {
	verdict := Judge("How long does this take?")
	assert.False(t, verdict.Substantive)
	assert.Equal(t, "meta question", verdict.Reason)
}

func TestJudgeAcceptsStory(t *testing.T) {
	verdict := Judge("Last year I led a small team to rebuild our onboarding flow because new hires kept getting lost.")
	assert.True(t, verdict.Substantive)

	verdict = Judge("Why did I enjoy it so much when the project was hard?")
	assert.True(t, verdict.Substantive, "questions with story markers count")
}

func TestCountSubstantive(t *testing.T) {
	texts := []string{"idk", "I organised a charity run for my neighbourhood", "skip"}
	assert.Equal(t, 1, CountSubstantive(texts))
}

func TestScanOrdersByScoreAndQuotesUser(t *testing.T) {
	buckets := []Bucket{
		{Name: "Creativity", Keywords: []string{"design", "create"}},
		{Name: "Leadership", Keywords: []string{"led", "team", "organise"}},
		{Name: "Unused", Keywords: []string{"zebra"}},
	}
	texts := []string{
		"I led the team and helped organise the launch",
		"I like to design posters",
	}

	matches := Scan(texts, buckets)
	require.Len(t, matches, 2)
	assert.Equal(t, "Leadership", matches[0].Bucket.Name)
	assert.Equal(t, 9, matches[0].Score)
	assert.Equal(t, []string{"I led the team and helped organise the launch"}, matches[0].Quotes)
	assert.Equal(t, "Creativity", matches[1].Bucket.Name)
}

func TestScanTruncatesLongQuotes(t *testing.T) {
	long := "team " + strings.Repeat("x", 400)
	matches := Scan([]string{long}, []Bucket{{Name: "Teamwork", Keywords: []string{"team"}}})
	require.Len(t, matches, 1)
	assert.True(t, strings.HasSuffix(matches[0].Quotes[0], "…"))
}
