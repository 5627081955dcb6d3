// Package persona holds the agent's conversational identity, loaded from an
// optional YAML file and merged over defaults.
package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Persona configures how the agent presents itself.
type Persona struct {
	Name     string `yaml:"name"`
	Tagline  string `yaml:"tagline"`
	Tone     string `yaml:"tone"`
	Greeting string `yaml:"greeting"`
	// FallbackMessage is sent when the LLM collaborator is unreachable.
	FallbackMessage string `yaml:"fallback_message"`
}

// Default returns the built-in persona.
func Default() Persona {
	return Persona{
		Name:    "Tandem",
		Tagline: "the wingman that builds your dating profile over text",
		Tone:    "warm, playful, never pushy; one question at a time",
		Greeting: "Hey! I'm Tandem. I help you and your friends put together " +
			"a dating profile right here over text. Who are we setting up today?",
		FallbackMessage: "Sorry, I lost my train of thought for a second. " +
			"Could you say that again?",
	}
}

// Load reads a persona file and merges it over defaults. An empty path or a
// missing file returns the defaults without error.
func Load(path string) (Persona, error) {
	p := Default()
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, fmt.Errorf("read persona %s: %w", path, err)
	}
	var file Persona
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return p, fmt.Errorf("parse persona %s: %w", path, err)
	}
	merge(&p, file)
	return p, nil
}

func merge(base *Persona, over Persona) {
	if over.Name != "" {
		base.Name = over.Name
	}
	if over.Tagline != "" {
		base.Tagline = over.Tagline
	}
	if over.Tone != "" {
		base.Tone = over.Tone
	}
	if over.Greeting != "" {
		base.Greeting = over.Greeting
	}
	if over.FallbackMessage != "" {
		base.FallbackMessage = over.FallbackMessage
	}
}
