package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeJSON(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"json fence wins over earlier fence", "```text\nnope\n```\n```json\n{\"a\":1}\n```", `{"a":1}`},
		{"untagged fence", "Here:\n```\n{\"a\":2}\n```", `{"a":2}`},
		{"bare object with prose", "Result: {\"a\":{\"b\":3}} hope that helps", `{"a":{"b":3}}`},
		{"bare array", "list: [1, 2, 3].", `[1, 2, 3]`},
		{"object before array", `{"a":[1]}`, `{"a":[1]}`},
		{"plain text", "  no json here  ", "no json here"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeJSON(tc.raw))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, DecodeJSON("```json\n{\"name\":\"Ada\"}\n```", &out))
	assert.Equal(t, "Ada", out.Name)

	assert.ErrorIs(t, DecodeJSON("```json\n{broken\n```", &out), ErrGenerationMalformed)
	assert.ErrorIs(t, DecodeJSON("   ", &out), ErrGenerationMalformed)
}
