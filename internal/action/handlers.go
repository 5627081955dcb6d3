package action

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tandemhq/profile-agent/internal/match"
	"github.com/tandemhq/profile-agent/internal/profile"
	"github.com/tandemhq/profile-agent/internal/session"
	"github.com/tandemhq/profile-agent/internal/stage"
)

func (e *Executor) handleSendMessage(sess *session.Session, env *Envelope) (Result, []Outbound) {
	target := env.str("target")
	text := env.str("text")
	media := env.str("media")

	var out []Outbound
	if target == "all" {
		for _, p := range sess.Participants {
			out = append(out, Outbound{To: p.ContactID, Body: text, MediaURL: media})
		}
	} else {
		if _, ok := sess.Participant(target); !ok {
			return failure("target %q is not a participant of this session", target), nil
		}
		out = append(out, Outbound{To: target, Body: text, MediaURL: media})
	}
	sess.AppendMessage("agent", text, "")
	return success(map[string]any{"recipients": len(out)}), out
}

func (e *Executor) handleUpdateStage(sess *session.Session, env *Envelope) Result {
	// re-validates the transition against the stage graph even though the
	// registry pass already ran: defense in depth against registry drift
	next, err := stage.Transition(sess.Stage, env.str("stage"))
	if err != nil {
		return failure("%v", err)
	}
	prev := sess.Stage
	sess.Stage = next
	return success(map[string]any{"from": string(prev), "to": string(next)})
}

func (e *Executor) handleUpdateProfileField(sess *session.Session, env *Envelope) Result {
	name := env.str("field")
	f, ok := profile.Lookup(name)
	if !ok {
		return failure("unknown profile field %q", name)
	}

	value := profile.Normalize(name, env.Fields["value"])
	if err := f.ValidateValue(value); err != nil {
		return Result{
			Error: fmt.Sprintf("invalid value for %s: %v", f.Label, err),
			Data:  map[string]any{"field": name, "label": f.Label},
		}
	}

	sess.ProfileFields[name] = value
	return success(map[string]any{
		"field":          name,
		"value":          value,
		"missing_fields": profile.Missing(sess.ProfileFields),
	})
}

func (e *Executor) handleConfirmPrimaryUser(sess *session.Session, env *Envelope) Result {
	contactID := env.str("contact_id")
	name := env.str("display_name")

	if pu := sess.PrimaryUser; pu != nil {
		if pu.ContactID == contactID {
			return success(map[string]any{"contact_id": contactID, "already_confirmed": true})
		}
		return failure("primary user already confirmed as %s", pu.DisplayName)
	}
	sess.PrimaryUser = &session.PrimaryUser{
		ContactID:   contactID,
		DisplayName: name,
		ConfirmedAt: time.Now().UTC(),
	}
	return success(map[string]any{"contact_id": contactID})
}

// generationRequired are the fields that must be present and valid before a
// profile can be generated; a photo upload is required alongside them.
var generationRequired = []string{"name", "age"}

func (e *Executor) handleGenerateProfile(ctx context.Context, sess *session.Session) Result {
	var missing []string
	for _, name := range generationRequired {
		f, _ := profile.Lookup(name)
		v, ok := sess.ProfileFields[name]
		if !ok || f.ValidateValue(v) != nil {
			missing = append(missing, name)
		}
	}
	if !sess.HasPhoto() {
		missing = append(missing, "photo")
	}
	if len(missing) > 0 {
		return Result{
			Error: fmt.Sprintf("cannot generate profile, missing: %s", strings.Join(missing, ", ")),
			Data:  map[string]any{"missing_fields": missing},
		}
	}

	snap := &session.Snapshot{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Status:    session.StatusPendingReview,
		Fields:    copyFields(sess.ProfileFields),
		Photos:    append([]string(nil), sess.Aux.Photos...),
	}

	url, err := e.renderer.Render(ctx, snap)
	if err != nil {
		// explicit, named failure; generatedProfile stays untouched
		return failure("profile rendering failed: %v", err)
	}
	snap.ProfileURL = url

	sess.GeneratedProfile = snap
	if stage.CanTransition(sess.Stage, stage.Reviewing) {
		sess.Stage = stage.Reviewing
	}
	return success(map[string]any{"profile_id": snap.ID, "profile_url": url})
}

func (e *Executor) handleFinalizeProfile(ctx context.Context, sess *session.Session) Result {
	if sess.Stage != stage.Reviewing {
		return failure("finalize_profile requires stage %s, session is in %s", stage.Reviewing, sess.Stage)
	}
	if sess.GeneratedProfile == nil {
		return failure("no generated profile to finalize")
	}
	if sess.CommittedProfile != nil {
		return failure("profile already finalized")
	}

	committed := *sess.GeneratedProfile
	committed.Status = session.StatusCommitted
	committed.Fields = copyFields(sess.GeneratedProfile.Fields)
	committed.Photos = append([]string(nil), sess.GeneratedProfile.Photos...)

	if e.profiles != nil {
		if err := e.profiles.SaveProfile(ctx, &committed); err != nil {
			return failure("committing profile failed: %v", err)
		}
	}

	sess.CommittedProfile = &committed
	sess.Stage = stage.Finalized
	return success(map[string]any{"profile_id": committed.ID, "profile_url": committed.ProfileURL})
}

func (e *Executor) handleRequestMatches(ctx context.Context, sess *session.Session) (Result, []Outbound) {
	if sess.Stage != stage.Finalized {
		return failure("request_matches requires stage %s, session is in %s", stage.Finalized, sess.Stage), nil
	}
	if sess.CommittedProfile == nil {
		return failure("no committed profile to match against"), nil
	}

	candidates, err := e.matcher.Find(ctx, sess.CommittedProfile.ID, e.dropSize)
	if err != nil {
		return failure("match lookup failed: %v", err), nil
	}

	sess.DailyDrops = append(sess.DailyDrops, session.DailyDrop{
		Timestamp:  time.Now().UTC(),
		Candidates: candidates,
	})
	sess.Stage = stage.FetchingProfiles

	var out []Outbound
	if to := dropRecipient(sess); to != "" && len(candidates) > 0 {
		out = append(out, Outbound{To: to, Body: match.FormatDrop(candidates)})
	}
	return success(map[string]any{"candidates": len(candidates)}), out
}

func (e *Executor) handleChooseMatch(sess *session.Session, env *Envelope) Result {
	candidateID := env.str("candidate_id")
	if len(sess.DailyDrops) == 0 {
		return failure("no daily drop to choose from")
	}
	drop := &sess.DailyDrops[len(sess.DailyDrops)-1]
	for _, c := range drop.Candidates {
		if c.ProfileID == candidateID {
			drop.UserChoice = candidateID
			return success(map[string]any{"candidate_id": candidateID})
		}
	}
	return failure("candidate %q is not in the latest drop", candidateID)
}

// dropRecipient picks who receives the candidate list: the primary user when
// confirmed, otherwise the session creator.
func dropRecipient(sess *session.Session) string {
	if sess.PrimaryUser != nil {
		if _, ok := sess.Participant(sess.PrimaryUser.ContactID); ok {
			return sess.PrimaryUser.ContactID
		}
	}
	if len(sess.Participants) > 0 {
		return sess.Participants[0].ContactID
	}
	return ""
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
