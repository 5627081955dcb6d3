package action

import (
	"encoding/json"
	"fmt"

	"github.com/tandemhq/profile-agent/internal/stage"
)

// Envelope is a decoded action payload: its type tag plus all other keys.
type Envelope struct {
	Type   Type
	Fields map[string]any
	Raw    json.RawMessage
}

// Decode extracts the envelope from a raw action payload.
func Decode(raw json.RawMessage) (*Envelope, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("action is not a JSON object: %w", err)
	}
	t, ok := fields["type"].(string)
	if !ok || t == "" {
		return nil, fmt.Errorf("action has no type")
	}
	delete(fields, "type")
	return &Envelope{Type: Type(t), Fields: fields, Raw: raw}, nil
}

// Validate performs the two pre-dispatch passes: (a) structural - required
// keys present with the right primitive types and enum membership; (b) stage
// - the action's declared valid-stage set contains the current stage.
// Either failure rejects the action before any handler runs.
func Validate(env *Envelope, current stage.Stage) error {
	sp, ok := Lookup(env.Type)
	if !ok {
		return fmt.Errorf("unknown action type %q", env.Type)
	}
	if err := validateShape(sp, env.Fields); err != nil {
		return err
	}
	if !sp.ValidIn(current) {
		return fmt.Errorf("action %s is not valid in stage %s", env.Type, current)
	}
	return nil
}

func validateShape(sp Spec, fields map[string]any) error {
	for _, k := range sp.Keys {
		v, present := fields[k.Name]
		if !present || v == nil {
			if k.Optional {
				continue
			}
			return fmt.Errorf("action %s: missing required key %q", sp.Type, k.Name)
		}
		if err := checkKind(k, v); err != nil {
			return fmt.Errorf("action %s: %w", sp.Type, err)
		}
	}
	return nil
}

func checkKind(k Key, v any) error {
	switch k.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("key %q must be a string", k.Name)
		}
		if s == "" {
			return fmt.Errorf("key %q must not be empty", k.Name)
		}
		if len(k.Enum) > 0 {
			for _, e := range k.Enum {
				if s == e {
					return nil
				}
			}
			return fmt.Errorf("key %q must be one of %v", k.Name, k.Enum)
		}
	case KindNumber:
		if _, ok := v.(float64); !ok {
			return fmt.Errorf("key %q must be a number", k.Name)
		}
	case KindAny:
		// anything but null, which was rejected above
	}
	return nil
}

// str reads a string field that validation already guaranteed.
func (e *Envelope) str(name string) string {
	s, _ := e.Fields[name].(string)
	return s
}
