package patch

import (
	"fmt"
	"regexp"
	"strings"
)

// Result is the outcome of one descriptor's application.
type Result struct {
	Ordinal int    `json:"ordinal"`
	Label   string `json:"label"`
	// Count is the number of occurrences found in the buffer state the
	// descriptor ran against.
	Count int `json:"count"`
	// Applied is the number of occurrences actually rewritten.
	Applied int  `json:"applied"`
	OK      bool `json:"ok"`
	// Warning marks an unbounded descriptor that found zero occurrences.
	Warning bool   `json:"warning,omitempty"`
	Diag    string `json:"diag,omitempty"`
	// Before and After hold the first rewritten occurrence's original and
	// replacement text, for diff previews. Empty when nothing was rewritten.
	Before string `json:"-"`
	After  string `json:"-"`
}

// Report is the ordered list of per-descriptor results.
type Report struct {
	Results []Result `json:"results"`
}

// OK reports whether every descriptor satisfied its count policy.
func (r *Report) OK() bool {
	for i := range r.Results {
		if !r.Results[i].OK {
			return false
		}
	}
	return true
}

// Failed returns the results that violated their policy, in order.
func (r *Report) Failed() []Result {
	var failed []Result
	for i := range r.Results {
		if !r.Results[i].OK {
			failed = append(failed, r.Results[i])
		}
	}
	return failed
}

// Warnings returns the results flagged with a warning, in order.
func (r *Report) Warnings() []Result {
	var warned []Result
	for i := range r.Results {
		if r.Results[i].Warning {
			warned = append(warned, r.Results[i])
		}
	}
	return warned
}

type options struct {
	keepGoing bool
	values    map[string]string
	observer  func(Result, int)
}

// Option configures Apply.
type Option func(*options)

// KeepGoing switches from fail-fast (the default) to collect-all mode: every
// descriptor runs and the aggregate failure surfaces at the end. A failing
// descriptor never modifies the buffer in either mode.
func KeepGoing() Option {
	return func(o *options) { o.keepGoing = true }
}

// WithValue seeds the value context used for {{name}} replacement templates.
func WithValue(name, value string) Option {
	return func(o *options) {
		o.values[name] = value
	}
}

// WithObserver registers a callback invoked with each Result as it is
// produced, along with the total descriptor count. Used for live progress
// reporting; the engine does not depend on it.
func WithObserver(fn func(res Result, total int)) Option {
	return func(o *options) { o.observer = fn }
}

// Apply runs every descriptor in ordinal order against a single working
// buffer and returns the final text plus the ordered report. The returned
// error is non-nil iff any descriptor failed; in fail-fast mode no descriptor
// after the first failure is attempted, and in collect-all mode the error
// wraps the first failure after all descriptors have run.
//
// Each descriptor scans only the buffer state as of when it begins: text it
// inserts is never rescanned in the same pass, so replacements containing
// lookalikes of the descriptor's own matcher cannot loop.
func Apply(source string, set []Descriptor, opts ...Option) (string, *Report, error) {
	cfg := options{values: map[string]string{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	buf := source
	report := &Report{Results: make([]Result, 0, len(set))}
	var firstErr error

	emit := func(res Result) {
		report.Results = append(report.Results, res)
		if cfg.observer != nil {
			cfg.observer(res, len(set))
		}
	}

	for i := range set {
		d := &set[i]
		res := Result{Ordinal: d.Ordinal, Label: d.Label}

		next, err := applyOne(buf, d, cfg.values, &res)
		if err != nil {
			res.OK = false
			if res.Diag == "" {
				res.Diag = err.Error()
			}
			emit(res)
			wrapped := fmt.Errorf("patch %d/%d (%s): %w", d.Ordinal, len(set), d.Label, err)
			if !cfg.keepGoing {
				return buf, report, wrapped
			}
			if firstErr == nil {
				firstErr = wrapped
			}
			continue
		}

		res.OK = true
		buf = next
		emit(res)
	}

	if firstErr != nil {
		return buf, report, firstErr
	}
	return buf, report, nil
}

// applyOne applies a single descriptor to buf and fills res. On a policy
// violation buf is returned unchanged and the error is non-nil.
func applyOne(buf string, d *Descriptor, values map[string]string, res *Result) (string, error) {
	var (
		next string
		err  error
	)
	switch d.Kind {
	case KindLiteral:
		next, err = applyLiteral(buf, d, values, res)
	case KindRegex:
		next, err = applyRegex(buf, d, values, res)
	case KindSpan:
		next, err = applySpan(buf, d, values, res)
	default:
		return buf, fmt.Errorf("%w: unknown kind %q", ErrMalformedDescriptor, d.Kind)
	}
	if err != nil {
		return buf, err
	}
	return next, nil
}

func checkPolicy(d *Descriptor, count int, res *Result) error {
	res.Count = count
	switch d.Policy {
	case PolicyExact:
		if count != d.Expect {
			res.Diag = fmt.Sprintf("expected exactly %d occurrence(s), found %d", d.Expect, count)
			return fmt.Errorf("%w: %s", ErrCountMismatch, res.Diag)
		}
	case PolicyAtLeastOne:
		if count < 1 {
			res.Diag = "expected at least one occurrence, found 0"
			return fmt.Errorf("%w: %s", ErrCountMismatch, res.Diag)
		}
	case PolicyUnbounded:
		if count == 0 {
			res.Warning = true
			res.Diag = "no occurrences; upstream document may have changed shape"
		}
	default:
		return fmt.Errorf("%w: unknown count policy %q", ErrMalformedDescriptor, d.Policy)
	}
	return nil
}

func applyLiteral(buf string, d *Descriptor, values map[string]string, res *Result) (string, error) {
	count := strings.Count(buf, d.Match)
	if err := checkPolicy(d, count, res); err != nil {
		return "", err
	}
	if count == 0 {
		return buf, nil
	}

	rendered, err := renderReplace(d.Replace, values)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedDescriptor, err)
	}

	limit := d.MaxApplications
	if limit == 0 || limit > count {
		limit = count
	}
	// strings.Replace scans the original buffer positionally and continues
	// past each inserted replacement, which is exactly the no-rescan
	// guarantee the engine promises.
	res.Applied = limit
	res.Before = d.Match
	res.After = rendered
	return strings.Replace(buf, d.Match, rendered, limit), nil
}

func applyRegex(buf string, d *Descriptor, values map[string]string, res *Result) (string, error) {
	re, err := regexp.Compile(d.Match)
	if err != nil {
		return "", fmt.Errorf("%w: pattern does not compile: %v", ErrMalformedDescriptor, err)
	}

	matches := re.FindAllStringSubmatchIndex(buf, -1)
	if err := checkPolicy(d, len(matches), res); err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return buf, nil
	}

	// Record named captures from the first match into the value context so
	// later descriptors' templates can reference them. Recording happens
	// before rendering: a descriptor may not reference its own captures.
	first := matches[0]
	for gi, name := range d.Captures {
		lo, hi := first[2*(gi+1)], first[2*(gi+1)+1]
		if lo < 0 {
			continue
		}
		values[name] = buf[lo:hi]
	}

	rendered, err := renderReplace(d.Replace, values)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedDescriptor, err)
	}

	limit := d.MaxApplications
	if limit == 0 || limit > len(matches) {
		limit = len(matches)
	}

	var b strings.Builder
	b.Grow(len(buf))
	last := 0
	for i := 0; i < limit; i++ {
		m := matches[i]
		b.WriteString(buf[last:m[0]])
		expanded := re.ExpandString(nil, rendered, buf, m)
		if i == 0 {
			res.Before = buf[m[0]:m[1]]
			res.After = string(expanded)
		}
		b.Write(expanded)
		last = m[1]
	}
	b.WriteString(buf[last:])
	res.Applied = limit
	return b.String(), nil
}

// spanOccurrences locates non-overlapping begin..end regions, scanning left
// to right. A begin marker without a reachable end marker terminates the scan.
func spanOccurrences(buf string, d *Descriptor) [][2]int {
	var spans [][2]int
	pos := 0
	for {
		i := strings.Index(buf[pos:], d.Match)
		if i < 0 {
			break
		}
		start := pos + i
		j := strings.Index(buf[start+len(d.Match):], d.SpanEnd)
		if j < 0 {
			break
		}
		end := start + len(d.Match) + j + len(d.SpanEnd)
		spans = append(spans, [2]int{start, end})
		pos = end
	}
	return spans
}

func applySpan(buf string, d *Descriptor, values map[string]string, res *Result) (string, error) {
	spans := spanOccurrences(buf, d)
	if err := checkPolicy(d, len(spans), res); err != nil {
		return "", err
	}
	if len(spans) == 0 {
		return buf, nil
	}

	rendered, err := renderReplace(d.Replace, values)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedDescriptor, err)
	}

	limit := d.MaxApplications
	if limit == 0 || limit > len(spans) {
		limit = len(spans)
	}

	var b strings.Builder
	b.Grow(len(buf))
	last := 0
	for i := 0; i < limit; i++ {
		sp := spans[i]
		b.WriteString(buf[last:sp[0]])
		if i == 0 {
			res.Before = buf[sp[0]:sp[1]]
			res.After = rendered
		}
		b.WriteString(rendered)
		last = sp[1]
	}
	b.WriteString(buf[last:])
	res.Applied = limit
	return b.String(), nil
}
