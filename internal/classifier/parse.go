package classifier

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/JaimeStill/verdict/pkg/formatting"
)

var (
	detectedKeys   = []string{"detected", "is_detected", "prediction", "result", "answer"}
	labelKeys      = []string{"label", "classification", "category", "class"}
	confidenceKeys = []string{"confidence", "confidence_score", "probability", "score"}
	rationaleKeys  = []string{"rationale", "explanation", "reasoning", "reason"}

	// Unquoted word values such as `"confidence": HIGH,` or
	// `"confidence": zero point eight}`.
	bareValueRegex = regexp.MustCompile(`(:\s*)([A-Za-z][A-Za-z \-]*[A-Za-z])(\s*[,}\]])`)

	confidenceLevels = map[string]float64{
		"very high": 0.95,
		"high":      0.9,
		"medium":    0.6,
		"moderate":  0.6,
		"low":       0.3,
		"very low":  0.1,
	}

	truthy = []string{"true", "yes", "y", "1", "positive", "detected", "present"}
	falsy  = []string{"false", "no", "n", "0", "negative", "not detected", "absent", "none"}
)

// ParseVerdict extracts a Verdict from raw model output. It accepts plain or
// fenced JSON and applies a fixed set of repairs:
//   - trailing commas are removed
//   - bare word values are quoted
//   - confidence may be a number, a percentage ("85%", 85), a level
//     (HIGH, MEDIUM, LOW), or spelled out ("zero point eight five")
//   - booleans may be yes/no or positive/negative
//
// Confidence is clamped to [0, 1]. Output that still cannot be read is a
// permanent error.
func ParseVerdict(raw string) (Verdict, error) {
	fields, err := formatting.Parse[map[string]any](raw)
	if err != nil {
		fields, err = formatting.Parse[map[string]any](quoteBareValues(raw))
	}
	if err != nil {
		return Verdict{}, NewPermanent(err)
	}

	v := Verdict{Raw: raw}

	detected, hasDetected := lookup(fields, detectedKeys)
	label, hasLabel := lookup(fields, labelKeys)

	switch {
	case hasDetected:
		b, ok := parseBool(detected)
		if !ok {
			return Verdict{}, NewPermanent(fmt.Errorf("unreadable detected value %v", detected))
		}
		v.Detected = b
	case hasLabel:
		if b, ok := parseBool(label); ok {
			v.Detected = b
		}
	default:
		return Verdict{}, NewPermanent(fmt.Errorf("no verdict field in %s", formatting.Truncate(raw, 120)))
	}

	if s, ok := label.(string); hasLabel && ok && strings.TrimSpace(s) != "" {
		v.Label = strings.TrimSpace(s)
	} else {
		v.Label = strconv.FormatBool(v.Detected)
	}

	if c, ok := lookup(fields, confidenceKeys); ok && c != nil {
		conf, ok := parseConfidence(c)
		if !ok {
			return Verdict{}, NewPermanent(fmt.Errorf("unreadable confidence %v", c))
		}
		v.Confidence = conf
	}

	if r, ok := lookup(fields, rationaleKeys); ok {
		if s, ok := r.(string); ok {
			v.Rationale = s
		}
	}

	return v, nil
}

func lookup(fields map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			return v, true
		}
	}
	for k, v := range fields {
		for _, want := range keys {
			if strings.EqualFold(k, want) {
				return v, true
			}
		}
	}
	return nil, false
}

func quoteBareValues(s string) string {
	return bareValueRegex.ReplaceAllStringFunc(s, func(m string) string {
		sub := bareValueRegex.FindStringSubmatch(m)
		word := strings.TrimSpace(sub[2])
		switch strings.ToLower(word) {
		case "true", "false", "null":
			return m
		}
		return sub[1] + strconv.Quote(word) + sub[3]
	})
}

func parseBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case float64:
		return x != 0, true
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		for _, t := range truthy {
			if s == t {
				return true, true
			}
		}
		for _, f := range falsy {
			if s == f {
				return false, true
			}
		}
	}
	return false, false
}

func parseConfidence(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return normalizeConfidence(x, false), true
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		if level, ok := confidenceLevels[s]; ok {
			return level, true
		}
		if p, ok := strings.CutSuffix(s, "%"); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return 0, false
			}
			return normalizeConfidence(f, true), true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return normalizeConfidence(f, false), true
		}
		if f, percent, ok := parseSpelledNumber(s); ok {
			return normalizeConfidence(f, percent), true
		}
	}
	return 0, false
}

// normalizeConfidence maps percentages onto [0, 1] and clamps.
func normalizeConfidence(f float64, percent bool) float64 {
	if math.IsNaN(f) {
		return 0
	}
	if percent || (f > 1 && f <= 100) {
		f /= 100
	}
	return math.Max(0, math.Min(1, f))
}

var (
	unitWords = map[string]int{
		"zero": 0, "oh": 0, "one": 1, "two": 2, "three": 3, "four": 4,
		"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	}
	teenWords = map[string]int{
		"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
		"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
	}
	tensWords = map[string]int{
		"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
		"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
	}
)

// parseSpelledNumber reads "zero point eight five", "point nine",
// "eighty-five percent", and "one hundred percent".
func parseSpelledNumber(s string) (float64, bool, bool) {
	words := strings.Fields(strings.ReplaceAll(s, "-", " "))
	if len(words) == 0 {
		return 0, false, false
	}

	percent := false
	if last := words[len(words)-1]; last == "percent" {
		percent = true
		words = words[:len(words)-1]
	} else if len(words) >= 2 && words[len(words)-2] == "per" && last == "cent" {
		percent = true
		words = words[:len(words)-2]
	}

	whole, fraction := words, []string(nil)
	for i, w := range words {
		if w == "point" {
			whole, fraction = words[:i], words[i+1:]
			if len(fraction) == 0 {
				return 0, false, false
			}
			break
		}
	}

	n := 0
	for _, w := range whole {
		switch {
		case w == "and":
		case w == "hundred":
			if n == 0 {
				n = 1
			}
			n *= 100
		case unitWords[w] > 0 || w == "zero" || w == "oh":
			n += unitWords[w]
		case teenWords[w] > 0:
			n += teenWords[w]
		case tensWords[w] > 0:
			n += tensWords[w]
		default:
			return 0, false, false
		}
	}

	var b strings.Builder
	b.WriteString(strconv.Itoa(n))
	if len(fraction) > 0 {
		b.WriteByte('.')
		for _, w := range fraction {
			d, ok := unitWords[w]
			if !ok {
				return 0, false, false
			}
			b.WriteString(strconv.Itoa(d))
		}
	}

	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false, false
	}
	return f, percent, true
}
