// Package action defines the catalog of actions the LLM collaborator may
// propose, the server-side validator that enforces each action's contract,
// and the executor that applies validated actions to a session. The model
// is an untrusted author of action payloads: the contract is enforced here,
// not in the prompt.
package action

import (
	"github.com/tandemhq/profile-agent/internal/stage"
)

// Type tags an action payload.
type Type string

const (
	TypeSendMessage        Type = "send_message"
	TypeUpdateStage        Type = "update_stage"
	TypeUpdateProfileField Type = "update_profile_field"
	TypeConfirmPrimaryUser Type = "confirm_primary_user"
	TypeGenerateProfile    Type = "generate_profile"
	TypeFinalizeProfile    Type = "finalize_profile"
	TypeRequestMatches     Type = "request_matches"
	TypeChooseMatch        Type = "choose_match"
)

// Kind is the expected JSON primitive for a payload key.
type Kind string

const (
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindAny    Kind = "any"
)

// Key is one payload key constraint.
type Key struct {
	Name     string
	Kind     Kind
	Optional bool
	// Enum restricts the value to a closed set (strings only).
	Enum []string
}

// Spec declares one action type: its JSON-shape contract, a one-line usage
// hint used for prompting, and the stages in which it is semantically valid.
// A nil Stages set means the action is valid in any stage.
type Spec struct {
	Type   Type
	Usage  string
	Keys   []Key
	Stages []stage.Stage
}

// ValidIn reports whether the spec permits execution in s.
func (sp Spec) ValidIn(s stage.Stage) bool {
	if sp.Stages == nil {
		return true
	}
	for _, st := range sp.Stages {
		if st == s {
			return true
		}
	}
	return false
}

// Specs is the ordered action catalog. Order is the order actions are
// described to the model.
var Specs = []Spec{
	{
		Type:  TypeSendMessage,
		Usage: `send_message(target, text, media?) - text a participant ("all" broadcasts); media is an optional URL`,
		Keys: []Key{
			{Name: "target", Kind: KindString},
			{Name: "text", Kind: KindString},
			{Name: "media", Kind: KindString, Optional: true},
		},
	},
	{
		Type:  TypeUpdateStage,
		Usage: "update_stage(stage) - move the conversation to another stage; only legal graph edges are accepted",
		Keys: []Key{
			{Name: "stage", Kind: KindString},
		},
	},
	{
		Type:  TypeUpdateProfileField,
		Usage: "update_profile_field(field, value) - record one answer; the value is normalized and validated server-side",
		Keys: []Key{
			{Name: "field", Kind: KindString},
			{Name: "value", Kind: KindAny},
		},
		Stages: []stage.Stage{stage.Collecting, stage.Confirming, stage.Reviewing},
	},
	{
		Type:  TypeConfirmPrimaryUser,
		Usage: "confirm_primary_user(contact_id, display_name) - record whose profile is being built",
		Keys: []Key{
			{Name: "contact_id", Kind: KindString},
			{Name: "display_name", Kind: KindString},
		},
		Stages: []stage.Stage{stage.Greeting, stage.Collecting},
	},
	{
		Type:   TypeGenerateProfile,
		Usage:  "generate_profile() - render the draft profile once name, age and a photo exist; moves to REVIEWING",
		Stages: []stage.Stage{stage.Confirming, stage.Reviewing},
	},
	{
		Type:   TypeFinalizeProfile,
		Usage:  "finalize_profile() - commit the reviewed profile for good; moves to FINALIZED",
		Stages: []stage.Stage{stage.Reviewing},
	},
	{
		Type:   TypeRequestMatches,
		Usage:  "request_matches() - fetch today's candidate profiles; moves to FETCHING_PROFILES and ends the workflow",
		Stages: []stage.Stage{stage.Finalized},
	},
	{
		Type:  TypeChooseMatch,
		Usage: "choose_match(candidate_id) - record which candidate from the latest drop the user picked",
		Keys: []Key{
			{Name: "candidate_id", Kind: KindString},
		},
		Stages: []stage.Stage{stage.FetchingProfiles},
	},
}

var specIndex = func() map[Type]Spec {
	m := make(map[Type]Spec, len(Specs))
	for _, sp := range Specs {
		m[sp.Type] = sp
	}
	return m
}()

// Lookup returns the spec for an action type.
func Lookup(t Type) (Spec, bool) {
	sp, ok := specIndex[t]
	return sp, ok
}

// Catalog renders the usage hint lines for prompting, filtered to the
// actions valid in the given stage.
func Catalog(s stage.Stage) []string {
	var lines []string
	for _, sp := range Specs {
		if sp.ValidIn(s) {
			lines = append(lines, sp.Usage)
		}
	}
	return lines
}
