// Package stage defines the conversation workflow stages and the legal
// transition graph between them. The stage gates which actions the agent
// may execute; the graph is the single source of truth for transitions.
package stage

import "fmt"

// Stage is a node in the conversation workflow.
type Stage string

const (
	Greeting         Stage = "GREETING"
	Collecting       Stage = "COLLECTING"
	Confirming       Stage = "CONFIRMING"
	Reviewing        Stage = "REVIEWING"
	Finalized        Stage = "FINALIZED"
	FetchingProfiles Stage = "FETCHING_PROFILES"
)

// All lists every canonical stage in workflow order.
var All = []Stage{Greeting, Collecting, Confirming, Reviewing, Finalized, FetchingProfiles}

// legacyAliases maps stage names used by earlier releases onto their
// canonical equivalents. Applied only at the deserialization boundary
// and when parsing update_stage payloads.
var legacyAliases = map[string]Stage{
	"welcome":        Greeting,
	"intro":          Greeting,
	"info_gathering": Collecting,
	"gathering":      Collecting,
	"confirmation":   Confirming,
	"profile_review": Reviewing,
	"complete":       Finalized,
	"done":           Finalized,
	"matching":       FetchingProfiles,
	"daily_drop":     FetchingProfiles,
}

// transitions is the legal stage graph. Self-loops cover in-place edits
// (re-confirm after a field update, re-generate during review).
// FetchingProfiles has no outgoing edges at all: once a session is
// fetching profiles it can never move again.
var transitions = map[Stage][]Stage{
	Greeting:         {Collecting},
	Collecting:       {Collecting, Confirming},
	Confirming:       {Confirming, Reviewing},
	Reviewing:        {Reviewing, Finalized},
	Finalized:        {FetchingProfiles},
	FetchingProfiles: {},
}

// Parse resolves a raw stage name, canonical or legacy, to a canonical
// stage. Unknown names are rejected.
func Parse(raw string) (Stage, error) {
	s := Stage(raw)
	if _, ok := transitions[s]; ok {
		return s, nil
	}
	if canonical, ok := legacyAliases[raw]; ok {
		return canonical, nil
	}
	return "", fmt.Errorf("unknown stage %q", raw)
}

// IsValid reports whether s is a canonical stage.
func IsValid(s Stage) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether moving from -> to is a legal edge.
// Any move out of FetchingProfiles is illegal regardless of target.
func CanTransition(from, to Stage) bool {
	next, ok := transitions[from]
	if !ok || !IsValid(to) {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Transition validates and returns the target stage, leaving the decision
// about actually mutating session state to the caller.
func Transition(from Stage, rawTarget string) (Stage, error) {
	to, err := Parse(rawTarget)
	if err != nil {
		return "", err
	}
	if from == FetchingProfiles {
		return "", fmt.Errorf("stage %s is terminal: no transition out is permitted", FetchingProfiles)
	}
	if !CanTransition(from, to) {
		return "", fmt.Errorf("illegal stage transition %s -> %s", from, to)
	}
	return to, nil
}

// Terminal reports whether s permits no outgoing transitions.
func Terminal(s Stage) bool {
	return len(transitions[s]) == 0
}
