package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Canonical(t *testing.T) {
	for _, s := range All {
		got, err := Parse(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestParse_LegacyAliases(t *testing.T) {
	cases := map[string]Stage{
		"welcome":        Greeting,
		"info_gathering": Collecting,
		"gathering":      Collecting,
		"confirmation":   Confirming,
		"profile_review": Reviewing,
		"complete":       Finalized,
		"matching":       FetchingProfiles,
	}
	for raw, want := range cases {
		got, err := Parse(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestParse_Unknown(t *testing.T) {
	_, err := Parse("LIMBO")
	assert.Error(t, err)
	_, err = Parse("")
	assert.Error(t, err)
}

func TestCanTransition_DocumentedEdgesOnly(t *testing.T) {
	legal := map[[2]Stage]bool{
		{Greeting, Collecting}:        true,
		{Collecting, Collecting}:      true,
		{Collecting, Confirming}:      true,
		{Confirming, Confirming}:      true,
		{Confirming, Reviewing}:       true,
		{Reviewing, Reviewing}:        true,
		{Reviewing, Finalized}:        true,
		{Finalized, FetchingProfiles}: true,
	}
	for _, from := range All {
		for _, to := range All {
			want := legal[[2]Stage{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTransition_FetchingProfilesIsTerminal(t *testing.T) {
	for _, to := range All {
		_, err := Transition(FetchingProfiles, string(to))
		assert.Error(t, err, "FETCHING_PROFILES -> %s must fail", to)
	}
	assert.True(t, Terminal(FetchingProfiles))
	assert.False(t, Terminal(Finalized))
}

func TestTransition_AliasTarget(t *testing.T) {
	got, err := Transition(Collecting, "confirmation")
	require.NoError(t, err)
	assert.Equal(t, Confirming, got)
}

func TestTransition_RejectsUnknownTarget(t *testing.T) {
	_, err := Transition(Collecting, "nope")
	assert.Error(t, err)
}

func TestTransition_NoBackwardEdges(t *testing.T) {
	_, err := Transition(Reviewing, string(Collecting))
	assert.Error(t, err)
	_, err = Transition(Finalized, string(Reviewing))
	assert.Error(t, err)
	_, err = Transition(Confirming, string(Greeting))
	assert.Error(t, err)
}
