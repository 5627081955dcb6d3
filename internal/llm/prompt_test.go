package llm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandemhq/profile-agent/internal/persona"
	"github.com/tandemhq/profile-agent/internal/session"
	"github.com/tandemhq/profile-agent/internal/stage"
)

func TestBuildSystemPrompt_StageGatesCatalog(t *testing.T) {
	p := persona.Default()
	sess := session.New("+15550001111", "Sam")

	prompt := BuildSystemPrompt(p, sess)
	assert.Contains(t, prompt, "Tandem")
	assert.Contains(t, prompt, string(stage.Greeting))
	assert.Contains(t, prompt, "confirm_primary_user")
	assert.NotContains(t, prompt, "finalize_profile")
	assert.Contains(t, prompt, sess.ID)

	sess.Stage = stage.Reviewing
	prompt = BuildSystemPrompt(p, sess)
	assert.Contains(t, prompt, "finalize_profile")
	assert.NotContains(t, prompt, "request_matches")
}

func TestBuildSystemPrompt_ProgressAndMedia(t *testing.T) {
	sess := session.New("+15550001111", "Sam")
	sess.Stage = stage.Collecting
	sess.ProfileFields["name"] = "Sam"
	sess.ProfileFields["age"] = 25

	prompt := BuildSystemPrompt(persona.Default(), sess)
	assert.Contains(t, prompt, `- name: "Sam"`)
	assert.Contains(t, prompt, "- age: 25")
	assert.Contains(t, prompt, "Still required:")
	assert.Contains(t, prompt, "Photos received: none")

	sess.AddPhoto("https://cdn.example/a.jpg")
	prompt = BuildSystemPrompt(persona.Default(), sess)
	assert.Contains(t, prompt, "Photos received: 1")
	assert.Contains(t, prompt, "https://cdn.example/a.jpg")
}

func TestBuildHistory(t *testing.T) {
	sess := session.New("+15550001111", "Sam")
	sess.AppendMessage("user", "hi", "+15550001111")
	sess.AppendMessage("agent", "hey there", "")

	msgs := BuildHistory(sess)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "[+15550001111] hi", msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "hey there", msgs[1].Content)
}

func TestBuildHistory_Window(t *testing.T) {
	sess := session.New("+15550001111", "Sam")
	for i := 0; i < historyWindow+10; i++ {
		sess.AppendMessage("user", fmt.Sprintf("msg %d", i), "+15550001111")
	}
	msgs := BuildHistory(sess)
	require.Len(t, msgs, historyWindow)
	assert.Contains(t, msgs[0].Content, "msg 10")
}
