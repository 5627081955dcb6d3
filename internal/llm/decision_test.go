package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecision_WellFormed(t *testing.T) {
	raw := `{"message":"What's your name?","actions":[{"type":"update_stage","stage":"COLLECTING"}],"reasoning":"primary user identified"}`
	d := ParseDecision(raw)
	assert.False(t, d.Fallback)
	assert.Equal(t, "What's your name?", d.Message)
	require.Len(t, d.Actions, 1)
	assert.Equal(t, "primary user identified", d.Reasoning)
}

func TestParseDecision_MessageOnly(t *testing.T) {
	d := ParseDecision(`{"message":"hi there"}`)
	assert.False(t, d.Fallback)
	assert.Equal(t, "hi there", d.Message)
	assert.Empty(t, d.Actions)
}

func TestParseDecision_ActionsOnly(t *testing.T) {
	d := ParseDecision(`{"actions":[]}`)
	assert.False(t, d.Fallback)
	assert.Empty(t, d.Message)
	assert.NotNil(t, d.Actions)
}

func TestParseDecision_MalformedFallsBack(t *testing.T) {
	raw := "Sure! Let me just ask: what's your name?"
	d := ParseDecision(raw)
	assert.True(t, d.Fallback)
	assert.Equal(t, raw, d.Message)
	assert.Empty(t, d.Actions)
}

func TestParseDecision_EmptyObjectFallsBack(t *testing.T) {
	d := ParseDecision(`{"reasoning":"thinking"}`)
	assert.True(t, d.Fallback)
	assert.Equal(t, `{"reasoning":"thinking"}`, d.Message)
}

func TestParseDecision_CodeFenced(t *testing.T) {
	raw := "```json\n{\"message\":\"hello\",\"actions\":[]}\n```"
	d := ParseDecision(raw)
	assert.False(t, d.Fallback)
	assert.Equal(t, "hello", d.Message)
}

func TestParseDecision_NeverFails(t *testing.T) {
	for _, raw := range []string{"", "   ", "{", "[1,2,3]", "null"} {
		d := ParseDecision(raw)
		assert.Empty(t, d.Actions, "input %q", raw)
		assert.True(t, d.Fallback, "input %q", raw)
	}
}

func TestParseDecision_SalvagesObjectFromProse(t *testing.T) {
	raw := `Sure, here is my response: {"message":"Got it, noted {your} age!","actions":[{"type":"update_profile_field","field":"age","value":25}]} Hope that helps.`
	d := ParseDecision(raw)
	assert.False(t, d.Fallback)
	assert.Equal(t, "Got it, noted {your} age!", d.Message)
	require.Len(t, d.Actions, 1)
}

func TestParseDecision_SalvageRespectsStringBraces(t *testing.T) {
	raw := `note: {"message":"use \"{\" carefully"} trailing`
	d := ParseDecision(raw)
	assert.False(t, d.Fallback)
	assert.Equal(t, `use "{" carefully`, d.Message)
}

func TestParseDecision_UnbalancedObjectFallsBack(t *testing.T) {
	raw := `almost json {"message":"trunc`
	d := ParseDecision(raw)
	assert.True(t, d.Fallback)
	assert.Equal(t, raw, d.Message)
}
