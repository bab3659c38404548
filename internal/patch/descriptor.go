// Package patch applies an ordered sequence of textual transformations to a
// single working buffer, enforcing each descriptor's expected occurrence
// count. Descriptors are declarative data; the engine never special-cases any
// of them. Application is strictly sequential because later descriptors may
// match text inserted by earlier ones.
package patch

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind selects how a descriptor locates its occurrences.
type Kind string

const (
	// KindLiteral matches an exact substring, scanning left to right.
	KindLiteral Kind = "literal"
	// KindRegex matches an RE2 pattern with leftmost-first semantics.
	// Replacements may reference capture groups with $1..$n or $name.
	KindRegex Kind = "regex"
	// KindSpan matches a region from a begin marker through an end marker,
	// both inclusive. One complete begin..end region is one occurrence.
	KindSpan Kind = "span"
)

// CountPolicy constrains how many occurrences a descriptor must find.
type CountPolicy string

const (
	// PolicyExact requires the occurrence count to equal Expect.
	PolicyExact CountPolicy = "exact"
	// PolicyAtLeastOne requires one or more occurrences.
	PolicyAtLeastOne CountPolicy = "at-least-one"
	// PolicyUnbounded accepts any count; zero produces a warning because it
	// usually means the upstream document changed shape.
	PolicyUnbounded CountPolicy = "unbounded"
)

// Descriptor is one unit of transformation.
//
// Replace may contain {{name}} tokens which are substituted from the value
// context (seeded via WithValue or captured by earlier regex descriptors)
// before any occurrence is rewritten.
type Descriptor struct {
	Ordinal int    `json:"ordinal"`
	Label   string `json:"label"`
	Kind    Kind   `json:"kind"`
	Match   string `json:"match"`
	// SpanEnd is the end marker for KindSpan descriptors.
	SpanEnd string `json:"spanEnd,omitempty"`
	Replace string `json:"replace"`
	// MaxApplications limits how many occurrences are rewritten.
	// Zero rewrites all of them.
	MaxApplications int         `json:"maxApplications,omitempty"`
	Policy          CountPolicy `json:"policy"`
	// Expect is the required occurrence count for PolicyExact.
	Expect int `json:"expect,omitempty"`
	// Captures names the regex capture groups (group 1 first) whose values
	// from the first match are recorded into the value context for later
	// descriptors' replacement templates.
	Captures []string `json:"captures,omitempty"`
}

var (
	// ErrMalformedDescriptor indicates a descriptor that can never be applied
	// safely (unparsable pattern, zero-width match, missing fields).
	ErrMalformedDescriptor = errors.New("patch: malformed descriptor")
	// ErrCountMismatch indicates a descriptor whose occurrence count violates
	// its policy.
	ErrCountMismatch = errors.New("patch: occurrence count mismatch")
)

var templateToken = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_-]*)\}\}`)

// ValidateSet checks a descriptor set before any patching begins. All
// problems are collected and reported together. Ordinals must form the
// contiguous range 1..N in slice order.
func ValidateSet(set []Descriptor) error {
	var problems []string

	for i := range set {
		d := &set[i]
		prefix := fmt.Sprintf("descriptor %d (%q)", i+1, d.Label)

		if d.Ordinal != i+1 {
			problems = append(problems, fmt.Sprintf("%s: ordinal %d out of sequence, want %d", prefix, d.Ordinal, i+1))
		}
		if strings.TrimSpace(d.Label) == "" {
			problems = append(problems, fmt.Sprintf("descriptor %d: label missing", i+1))
		}
		if d.Match == "" {
			problems = append(problems, prefix+": match missing")
		}

		switch d.Kind {
		case KindLiteral:
			if d.SpanEnd != "" {
				problems = append(problems, prefix+": spanEnd is only valid for span descriptors")
			}
			if len(d.Captures) > 0 {
				problems = append(problems, prefix+": captures are only valid for regex descriptors")
			}
		case KindRegex:
			re, err := regexp.Compile(d.Match)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: pattern does not compile: %v", prefix, err))
				break
			}
			// A pattern that can match the empty string would produce an
			// unbounded occurrence count; reject it up front.
			if re.MatchString("") {
				problems = append(problems, prefix+": pattern can match the empty string")
			}
			if len(d.Captures) > re.NumSubexp() {
				problems = append(problems, fmt.Sprintf("%s: %d capture names but only %d groups", prefix, len(d.Captures), re.NumSubexp()))
			}
			if d.SpanEnd != "" {
				problems = append(problems, prefix+": spanEnd is only valid for span descriptors")
			}
		case KindSpan:
			if d.SpanEnd == "" {
				problems = append(problems, prefix+": span descriptor missing spanEnd")
			}
			if len(d.Captures) > 0 {
				problems = append(problems, prefix+": captures are only valid for regex descriptors")
			}
		default:
			problems = append(problems, fmt.Sprintf("%s: unknown kind %q", prefix, d.Kind))
		}

		switch d.Policy {
		case PolicyExact:
			if d.Expect < 0 {
				problems = append(problems, fmt.Sprintf("%s: expect must be >= 0 (got %d)", prefix, d.Expect))
			}
		case PolicyAtLeastOne, PolicyUnbounded:
			if d.Expect != 0 {
				problems = append(problems, fmt.Sprintf("%s: expect is only valid with the exact policy", prefix))
			}
		default:
			problems = append(problems, fmt.Sprintf("%s: unknown count policy %q", prefix, d.Policy))
		}

		if d.MaxApplications < 0 {
			problems = append(problems, fmt.Sprintf("%s: maxApplications must be >= 0 (got %d)", prefix, d.MaxApplications))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n- %s", ErrMalformedDescriptor, strings.Join(problems, "\n- "))
	}
	return nil
}

// renderReplace substitutes {{name}} tokens from the value context. A token
// with no recorded value is an error: applying a half-rendered replacement
// would silently corrupt the output.
func renderReplace(tpl string, values map[string]string) (string, error) {
	var missing []string
	rendered := templateToken.ReplaceAllStringFunc(tpl, func(tok string) string {
		name := tok[2 : len(tok)-2]
		if v, ok := values[name]; ok {
			return v
		}
		missing = append(missing, name)
		return tok
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unresolved template token(s): %s", strings.Join(missing, ", "))
	}
	return rendered, nil
}
