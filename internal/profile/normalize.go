package profile

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Normalize maps loosely-specified input for a field into the canonical value
// its validator expects. It never fails: when no confident transform applies
// the trimmed original passes through unchanged and the validator makes the
// pass/fail call.
func Normalize(fieldName string, value any) any {
	f, ok := Lookup(fieldName)
	if !ok {
		return value
	}
	switch {
	case fieldName == "age":
		return normalizeAge(value)
	case fieldName == "height":
		if s, ok := value.(string); ok {
			return NormalizeHeight(s)
		}
		return value
	case f.Enumerated():
		if s, ok := value.(string); ok {
			return normalizeEnum(s, f.Options, synonyms[fieldName])
		}
		return value
	case f.Type == TypeArray:
		return normalizeArray(fieldName, value)
	case f.Type == TypeString:
		if s, ok := value.(string); ok {
			return strings.TrimSpace(s)
		}
		return value
	default:
		return value
	}
}

// synonyms maps common shorthand per enumerated field onto canonical options.
// Keys are lowercase.
var synonyms = map[string]map[string]string{
	"gender": {
		"m": "Man", "male": "Man", "man": "Man", "guy": "Man", "boy": "Man",
		"f": "Woman", "female": "Woman", "woman": "Woman", "girl": "Woman", "lady": "Woman",
		"nb": "Non-binary", "enby": "Non-binary", "nonbinary": "Non-binary",
		"non binary": "Non-binary", "non-binary": "Non-binary",
	},
	"interested_in": {
		"men": "Men", "man": "Men", "guys": "Men", "males": "Men", "dudes": "Men",
		"women": "Women", "woman": "Women", "girls": "Women", "ladies": "Women", "females": "Women",
		"both": "Everyone", "everyone": "Everyone", "anyone": "Everyone",
		"all": "Everyone", "everybody": "Everyone", "either": "Everyone",
	},
	"orientation": {
		"straight": "Straight", "hetero": "Straight", "heterosexual": "Straight",
		"gay": "Gay", "homosexual": "Gay",
		"lesbian": "Lesbian",
		"bi":      "Bisexual", "bisexual": "Bisexual",
		"pan": "Pansexual", "pansexual": "Pansexual",
		"ace": "Asexual", "asexual": "Asexual",
		"queer": "Queer",
	},
	"education": {
		"hs": "High School", "high school": "High School", "highschool": "High School",
		"ged":          "High School",
		"some college": "Some College", "in college": "Some College",
		"college": "Undergraduate Degree", "university": "Undergraduate Degree",
		"undergrad": "Undergraduate Degree", "bachelors": "Undergraduate Degree",
		"bachelor's": "Undergraduate Degree", "ba": "Undergraduate Degree", "bs": "Undergraduate Degree",
		"masters": "Graduate Degree", "master's": "Graduate Degree", "grad school": "Graduate Degree",
		"phd": "Graduate Degree", "doctorate": "Graduate Degree", "md": "Graduate Degree",
		"jd":    "Graduate Degree",
		"trade": "Trade School", "trade school": "Trade School", "vocational": "Trade School",
	},
	"relationship_intent": {
		"long term": "Long-term relationship", "long-term": "Long-term relationship",
		"ltr": "Long-term relationship", "serious": "Long-term relationship",
		"marriage": "Long-term relationship", "something serious": "Long-term relationship",
		"short term": "Short-term relationship", "short-term": "Short-term relationship",
		"casual": "Short-term relationship", "fling": "Short-term relationship",
		"hookup":  "Short-term relationship",
		"friends": "Friends", "friendship": "Friends",
		"not sure": "Figuring it out", "idk": "Figuring it out",
		"figuring it out": "Figuring it out", "open": "Figuring it out",
	},
}

// normalizeEnum resolves input against canonical options, then the synonym
// table, then substring containment against synonym keys as a last resort.
func normalizeEnum(input string, options []string, syns map[string]string) string {
	trimmed := strings.TrimSpace(input)
	lower := strings.ToLower(trimmed)

	for _, opt := range options {
		if strings.EqualFold(trimmed, opt) {
			return opt
		}
	}
	if canonical, ok := syns[lower]; ok {
		return canonical
	}
	// Longest keys first so "non binary" wins over "man" inside it.
	// Keys shorter than three characters are exact-match only: "m" would
	// otherwise claim nearly any sentence.
	keys := make([]string, 0, len(syns))
	for k := range syns {
		if len(k) >= 3 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if strings.Contains(lower, k) {
			return syns[k]
		}
	}
	return trimmed
}

// numberWords recognizes ones, teens and tens. "hundred" acts as a multiplier.
var numberWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

// ParseNumberWords converts spelled-out numbers like "twenty-five" to an
// integer. Returns false when nothing in the input is recognized.
func ParseNumberWords(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == ','
	})
	total := 0
	recognized := false
	for _, tok := range tokens {
		if tok == "and" {
			continue
		}
		if tok == "hundred" {
			if total == 0 {
				total = 1
			}
			total *= 100
			recognized = true
			continue
		}
		if n, ok := numberWords[tok]; ok {
			total += n
			recognized = true
		}
	}
	if !recognized {
		return 0, false
	}
	return total, true
}

func normalizeAge(value any) any {
	switch t := value.(type) {
	case string:
		if n, ok := ParseNumberWords(t); ok {
			return n
		}
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int(t)) {
			return int(t)
		}
		return t
	default:
		return value
	}
}

var (
	canonicalHeightRe = regexp.MustCompile(`^(?:\d'(?:\d|1[01])"|\d{2,3}cm)$`)
	cmRe              = regexp.MustCompile(`^(\d{2,3})(?:\.\d+)?\s*(?:cm|cms|centimeters?)$`)
	feetInchesRe      = regexp.MustCompile(`^(\d)\s*(?:'|ft\.?|foot|feet)\s*(\d{1,2})?\s*(?:"|''|in\.?|inch|inches)?$`)
	decimalFeetRe     = regexp.MustCompile(`^(\d)\.(\d{1,2})$`)
	bareNumberRe      = regexp.MustCompile(`^\d{1,3}$`)
)

// NormalizeHeight renders any recognized height notation into the canonical
// feet'inches" or Ncm string form. Decimal feet are read as feet+inches when
// the fraction digits form a valid inch count (5.4 means 5'4", not 5.4 feet);
// otherwise the fraction is a proportion of a foot. Bare numbers above 100
// are assumed centimeters.
func NormalizeHeight(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = strings.TrimSuffix(s, ".")

	if m := cmRe.FindStringSubmatch(s); m != nil {
		return m[1] + "cm"
	}
	if m := feetInchesRe.FindStringSubmatch(s); m != nil {
		feet, _ := strconv.Atoi(m[1])
		inches := 0
		if m[2] != "" {
			inches, _ = strconv.Atoi(m[2])
		}
		if inches > 11 {
			return strings.TrimSpace(input)
		}
		return renderFeetInches(feet, inches)
	}
	if m := decimalFeetRe.FindStringSubmatch(s); m != nil {
		feet, _ := strconv.Atoi(m[1])
		frac, _ := strconv.Atoi(m[2])
		if frac <= 11 {
			return renderFeetInches(feet, frac)
		}
		// proportional: .75 of a foot is 9 inches
		f, _ := strconv.ParseFloat("0."+m[2], 64)
		return renderFeetInches(feet, int(f*12+0.5))
	}
	if bareNumberRe.MatchString(s) {
		n, _ := strconv.Atoi(s)
		if n > 100 {
			return strconv.Itoa(n) + "cm"
		}
		return renderFeetInches(n/12, n%12)
	}
	return strings.TrimSpace(input)
}

func renderFeetInches(feet, inches int) string {
	return fmt.Sprintf("%d'%d\"", feet, inches)
}

// normalizeArray accepts a single string or a list and applies per-field
// cleanup. School names are title-cased; interests and prompt answers keep
// their free text with only whitespace trimming.
func normalizeArray(fieldName string, value any) any {
	items := toStringSlice(value)
	if items == nil {
		return value
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if fieldName == "schools" {
			item = titleCase(item)
		}
		out = append(out, item)
	}
	return out
}

func toStringSlice(value any) []string {
	switch t := value.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		// Leave acronyms like UCLA alone.
		if w == strings.ToUpper(w) && len(w) > 1 {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
