// Package profile defines the declarative profile field schema and the
// normalization pipeline that turns free-form answers into canonical values.
// Field values stored in a session are ALWAYS the normalized canonical form,
// never raw user text; the validators here are the gate.
package profile

import (
	"fmt"
	"strings"
)

// FieldType is the semantic type of a profile field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeArray  FieldType = "array"
)

// Field is one declarative profile field definition.
type Field struct {
	Name     string
	Label    string
	Type     FieldType
	Required bool
	// Options is the canonical option set for enumerated fields (nil otherwise).
	Options []string
	// Validate checks a normalized value. nil means any normalized value passes.
	Validate func(v any) error
}

// Enumerated reports whether the field has a closed option set.
func (f Field) Enumerated() bool { return len(f.Options) > 0 }

const (
	MinAge = 18
	MaxAge = 100
)

// Fields is the ordered schema definition. Order matters for prompting:
// the agent asks for fields roughly in this order.
var Fields = []Field{
	{Name: "name", Label: "Name", Type: TypeString, Required: true, Validate: nonEmptyMax(100)},
	{Name: "age", Label: "Age", Type: TypeNumber, Required: true, Validate: validateAge},
	{Name: "gender", Label: "Gender", Type: TypeString, Required: true,
		Options: []string{"Man", "Woman", "Non-binary", "Other"}},
	{Name: "interested_in", Label: "Interested In", Type: TypeString, Required: true,
		Options: []string{"Men", "Women", "Everyone"}},
	{Name: "location", Label: "Current City", Type: TypeString, Required: true, Validate: nonEmptyMax(120)},
	{Name: "orientation", Label: "Sexual Orientation", Type: TypeString,
		Options: []string{"Straight", "Gay", "Lesbian", "Bisexual", "Pansexual", "Asexual", "Queer"}},
	{Name: "hometown", Label: "Hometown", Type: TypeString, Validate: nonEmptyMax(120)},
	{Name: "height", Label: "Height", Type: TypeString, Validate: validateHeight},
	{Name: "education", Label: "Education Level", Type: TypeString,
		Options: []string{"High School", "Some College", "Undergraduate Degree", "Graduate Degree", "Trade School"}},
	{Name: "schools", Label: "Schools", Type: TypeArray, Validate: validateStringArray},
	{Name: "occupation", Label: "Occupation", Type: TypeString, Validate: nonEmptyMax(120)},
	{Name: "relationship_intent", Label: "Looking For", Type: TypeString,
		Options: []string{"Long-term relationship", "Short-term relationship", "Friends", "Figuring it out"}},
	{Name: "interests", Label: "Interests", Type: TypeArray, Validate: validateStringArray},
	{Name: "prompts", Label: "Prompt Answers", Type: TypeArray, Validate: validateStringArray},
	{Name: "bio", Label: "Bio", Type: TypeString, Validate: nonEmptyMax(500)},
	{Name: "religion", Label: "Religion", Type: TypeString, Validate: nonEmptyMax(60)},
}

var fieldIndex = func() map[string]Field {
	m := make(map[string]Field, len(Fields))
	for _, f := range Fields {
		m[f.Name] = f
	}
	return m
}()

// Lookup returns the field definition for name.
func Lookup(name string) (Field, bool) {
	f, ok := fieldIndex[name]
	return f, ok
}

// Label returns the human-readable label for a field name, or the name
// itself when unknown.
func Label(name string) string {
	if f, ok := fieldIndex[name]; ok {
		return f.Label
	}
	return name
}

// Validate checks a normalized value against the field's rules.
func (f Field) ValidateValue(v any) error {
	if f.Enumerated() {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%s must be a string", f.Label)
		}
		for _, opt := range f.Options {
			if s == opt {
				return nil
			}
		}
		return fmt.Errorf("%s must be one of: %s", f.Label, strings.Join(f.Options, ", "))
	}
	if f.Validate != nil {
		return f.Validate(v)
	}
	return nil
}

// Missing returns the ordered names of required fields with no value set.
func Missing(values map[string]any) []string {
	var missing []string
	for _, f := range Fields {
		if !f.Required {
			continue
		}
		if v, ok := values[f.Name]; !ok || empty(v) {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// Complete reports whether every required field has a value.
func Complete(values map[string]any) bool {
	return len(Missing(values)) == 0
}

// Completeness returns set-field count over total field count, 0..1.
func Completeness(values map[string]any) float64 {
	set := 0
	for _, f := range Fields {
		if v, ok := values[f.Name]; ok && !empty(v) {
			set++
		}
	}
	return float64(set) / float64(len(Fields))
}

func empty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}

func nonEmptyMax(max int) func(any) error {
	return func(v any) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected text, got %T", v)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return fmt.Errorf("value is empty")
		}
		if len(s) > max {
			return fmt.Errorf("value exceeds %d characters", max)
		}
		return nil
	}
}

func validateAge(v any) error {
	n, ok := asInt(v)
	if !ok {
		return fmt.Errorf("age must be a number")
	}
	if n < MinAge || n > MaxAge {
		return fmt.Errorf("age must be between %d and %d", MinAge, MaxAge)
	}
	return nil
}

// asInt accepts the numeric types a JSON round-trip may produce.
func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t == float64(int(t)) {
			return int(t), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func validateHeight(v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("height must be text")
	}
	if !canonicalHeightRe.MatchString(s) {
		return fmt.Errorf("height must look like 5'10\" or 170cm")
	}
	return nil
}

func validateStringArray(v any) error {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return fmt.Errorf("list is empty")
		}
		for _, s := range t {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("list contains an empty entry")
			}
		}
		return nil
	case []any:
		if len(t) == 0 {
			return fmt.Errorf("list is empty")
		}
		for _, e := range t {
			s, ok := e.(string)
			if !ok || strings.TrimSpace(s) == "" {
				return fmt.Errorf("list entries must be non-empty text")
			}
		}
		return nil
	default:
		return fmt.Errorf("expected a list")
	}
}
