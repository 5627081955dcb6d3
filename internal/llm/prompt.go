package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tandemhq/profile-agent/internal/action"
	"github.com/tandemhq/profile-agent/internal/persona"
	"github.com/tandemhq/profile-agent/internal/profile"
	"github.com/tandemhq/profile-agent/internal/session"
)

// historyWindow caps how many prior messages are replayed to the model.
const historyWindow = 40

// BuildSystemPrompt assembles the per-turn system prompt: persona, output
// contract, current stage, the actions legal right now, profile progress
// and media inventory. Conversation history is NOT part of the system
// prompt; BuildHistory turns it into chat messages.
func BuildSystemPrompt(p persona.Persona, sess *session.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s.\n", p.Name, p.Tagline)
	fmt.Fprintf(&b, "Tone: %s.\n", p.Tone)

	b.WriteString(`
You respond with ONE JSON object and nothing else:
{"message": "<text to the sender>", "actions": [<action objects>], "reasoning": "<one line, optional>"}
"message" goes to whoever just texted. Use a send_message action to reach anyone else.
Every action is validated server-side; an invalid action is rejected and the rest still run.
Never invent profile facts the participants did not state.
`)

	fmt.Fprintf(&b, "\nConversation stage: %s\n", sess.Stage)
	b.WriteString("\nActions available in this stage:\n")
	for _, line := range action.Catalog(sess.Stage) {
		fmt.Fprintf(&b, "- %s\n", line)
	}

	writeParticipants(&b, sess)
	writeProfileProgress(&b, sess)
	writeMedia(&b, sess)
	return b.String()
}

func writeParticipants(b *strings.Builder, sess *session.Session) {
	b.WriteString("\nParticipants:\n")
	for _, p := range sess.Participants {
		fmt.Fprintf(b, "- %s (%s, %s)\n", p.DisplayName, p.ContactID, p.Role)
	}
	if pu := sess.PrimaryUser; pu != nil {
		fmt.Fprintf(b, "Profile subject: %s (%s)\n", pu.DisplayName, pu.ContactID)
	} else {
		b.WriteString("Profile subject: not confirmed yet. Establish who the profile is for.\n")
	}
	fmt.Fprintf(b, "Session code: %s (a friend can join by texting it)\n", sess.ID)
}

func writeProfileProgress(b *strings.Builder, sess *session.Session) {
	filled := make([]string, 0, len(sess.ProfileFields))
	for name := range sess.ProfileFields {
		filled = append(filled, name)
	}
	sort.Strings(filled)

	b.WriteString("\nProfile so far:\n")
	if len(filled) == 0 {
		b.WriteString("(empty)\n")
	}
	for _, name := range filled {
		v, _ := json.Marshal(sess.ProfileFields[name])
		fmt.Fprintf(b, "- %s: %s\n", name, v)
	}
	if missing := profile.Missing(sess.ProfileFields); len(missing) > 0 {
		fmt.Fprintf(b, "Still required: %s\n", strings.Join(missing, ", "))
	}

	if sess.GeneratedProfile != nil {
		fmt.Fprintf(b, "A draft profile exists at %s awaiting review.\n", sess.GeneratedProfile.ProfileURL)
	}
	if sess.CommittedProfile != nil {
		fmt.Fprintf(b, "The profile is finalized at %s.\n", sess.CommittedProfile.ProfileURL)
	}
}

func writeMedia(b *strings.Builder, sess *session.Session) {
	if len(sess.Aux.Photos) == 0 {
		b.WriteString("\nPhotos received: none. At least one photo is required before the profile can be generated.\n")
		return
	}
	fmt.Fprintf(b, "\nPhotos received: %d\n", len(sess.Aux.Photos))
	for i, url := range sess.Aux.Photos {
		fmt.Fprintf(b, "- photo %d: %s\n", i+1, url)
	}
}

// BuildHistory converts the session's message log into provider chat turns,
// newest historyWindow messages only. Inbound participant messages become
// user turns prefixed with the sender, agent messages become assistant turns.
func BuildHistory(sess *session.Session) []ChatMessage {
	log := sess.MessageLog
	if len(log) > historyWindow {
		log = log[len(log)-historyWindow:]
	}
	msgs := make([]ChatMessage, 0, len(log))
	for _, m := range log {
		if m.Role == "agent" {
			msgs = append(msgs, ChatMessage{Role: "assistant", Content: m.Text})
			continue
		}
		content := m.Text
		if m.SenderContactID != "" {
			content = fmt.Sprintf("[%s] %s", m.SenderContactID, m.Text)
		}
		msgs = append(msgs, ChatMessage{Role: "user", Content: content})
	}
	return msgs
}
