package models

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamSpec_UnmarshalRequired(t *testing.T) {
	cases := map[string]bool{
		`{"type":"string","required":true}`:    true,
		`{"type":"string","required":"true"}`:  true,
		`{"type":"string","required":"TRUE"}`:  true,
		`{"type":"string","required":"false"}`: false,
		`{"type":"string","required":false}`:   false,
		`{"type":"string"}`:                    false,
	}
	for in, want := range cases {
		var p ParamSpec
		require.NoError(t, json.Unmarshal([]byte(in), &p), in)
		assert.Equal(t, "string", p.Type)
		assert.Equal(t, want, p.Required, in)
	}
}

func TestActionDict_Raw(t *testing.T) {
	d := ActionDict{
		"motion": {
			"detected": {{Action: "email", Params: map[string]any{"to": "ops@example.com"}}},
			"else":     {},
		},
	}

	raw := d.Raw()
	require.Contains(t, raw, "motion")
	assert.Equal(t, []map[string]any{{"action": "email", "params": map[string]any{"to": "ops@example.com"}}}, raw["motion"]["detected"])
	assert.Empty(t, raw["motion"]["else"])
}
