// Package lint detects contradictions and drift in specialist outputs before
// they reach governance. Every check runs unconditionally and the findings
// are unioned; the linter itself never fails — malformed or missing fields
// are treated as absence. Its only state is a bounded ring buffer of
// recently seen clean outputs, used for cross-output conflict checks.
package lint

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"cortex/internal/logging"
	"cortex/internal/types"
)

// RecentMemoryCapacity bounds the linter's recent-output ring buffer.
const RecentMemoryCapacity = 100

// knowledgeConflictMargin is how far a citation's confidence may exceed a
// known artifact's trust before it counts as a knowledge conflict.
const knowledgeConflictMargin = 0.2

// antonymPair is a pair of terms that cannot both be asserted in one result.
type antonymPair struct {
	name string
	a, b *regexp.Regexp
}

var antonymPairs = []antonymPair{
	{"true/false", wordRe("true"), wordRe("false")},
	{"should/should-not", nil, nil}, // handled by negation logic below
	{"must/must-not", nil, nil},     // handled by negation logic below
	{"allowed/forbidden", wordRe("allowed"), wordRe("forbidden")},
	{"valid/invalid", wordRe("valid"), wordRe("invalid")},
}

// negatedPairs need care: "should not" contains "should".
var negatedPairs = []struct {
	name string
	pos  string
	neg  string
}{
	{"should/should-not", "should", "should not"},
	{"must/must-not", "must", "must not"},
}

// polarityPairs are the canonical opposites for cross-output conflicts.
var polarityPairs = [][2]*regexp.Regexp{
	{wordRe("yes"), wordRe("no")},
	{wordRe("true"), wordRe("false")},
	{wordRe("allow"), wordRe("deny")},
	{wordRe("accept"), wordRe("reject")},
}

func wordRe(w string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)
}

// Context carries the optional cross-output state for a lint run.
// Any field may be zero; checks that need missing context simply pass.
type Context struct {
	// CausalChain lists the upstream components this output claims to
	// have consumed.
	CausalChain []string
	// RecentMemory overrides the linter's internal ring buffer for the
	// memory-conflict check (used when the caller tracks its own window).
	RecentMemory []*types.Output
	// KnownTrust maps citation sources to the trust of the stored artifact
	// they refer to, for the knowledge-conflict check.
	KnownTrust map[string]float64
}

// Linter runs the full check battery over one output.
type Linter struct {
	recent     *recentRing
	causalDeps map[string][]string
	now        func() time.Time
}

// New creates a Linter with an empty recent-memory window.
func New() *Linter {
	return &Linter{
		recent:     newRecentRing(RecentMemoryCapacity),
		causalDeps: make(map[string][]string),
		now:        time.Now,
	}
}

// DeclareCausalDeps registers the upstream components an emitting component
// is expected to have consumed. Outputs from that component must list them
// in their causal chain.
func (l *Linter) DeclareCausalDeps(component string, deps ...string) {
	l.causalDeps[component] = deps
}

// RecentCount reports how many clean outputs the internal window holds.
func (l *Linter) RecentCount() int { return l.recent.Len() }

// Lint runs every check against the output and unions the findings.
// ctx may be nil. A clean output is pushed into the recent-memory window.
func (l *Linter) Lint(o *types.Output, ctx *Context) *types.LintReport {
	if ctx == nil {
		ctx = &Context{}
	}
	now := l.now()

	var violations []types.Violation
	violations = append(violations, l.checkDirectConflict(o)...)
	violations = append(violations, l.checkPolicyDrift(o)...)
	violations = append(violations, l.checkCausalMismatch(o, ctx)...)
	violations = append(violations, l.checkTemporal(o, now)...)
	violations = append(violations, l.checkMemoryConflict(o, ctx)...)
	violations = append(violations, l.checkKnowledgeConflict(o, ctx)...)
	violations = append(violations, l.checkConstitutionalAlignment(o)...)

	report := &types.LintReport{
		Violations: violations,
		Severity:   types.SeverityInfo,
		Passed:     len(violations) == 0,
	}
	for _, v := range violations {
		report.Severity = types.MaxSeverity(report.Severity, v.Severity)
		report.Fixes = append(report.Fixes, patchFor(v))
	}

	report.AutoRemediable = true
	for _, f := range report.Fixes {
		if !f.SafeToAutoApply {
			report.AutoRemediable = false
			break
		}
	}

	if report.Passed {
		report.Summary = fmt.Sprintf("clean: %s/%s", o.Component, o.Type)
		l.recent.Push(o)
	} else {
		report.Summary = fmt.Sprintf("%d violation(s), max severity %s",
			len(violations), report.Severity)
	}

	logging.Lint("lint %s/%s: passed=%v severity=%s violations=%d",
		o.Component, o.Type, report.Passed, report.Severity, len(violations))
	return report
}

// checkDirectConflict flags result text asserting both halves of an antonym
// pair. One violation per conflicting pair.
func (l *Linter) checkDirectConflict(o *types.Output) []types.Violation {
	text := strings.ToLower(o.Result)
	var out []types.Violation
	for _, p := range antonymPairs {
		if p.a == nil {
			continue
		}
		if p.a.MatchString(text) && p.b.MatchString(text) {
			out = append(out, types.Violation{
				Check:    types.CheckDirectConflict,
				Severity: types.SeverityError,
				Message:  fmt.Sprintf("result asserts both halves of %s", p.name),
				Subject:  p.name,
			})
		}
	}
	for _, p := range negatedPairs {
		hasNeg := strings.Contains(text, p.neg)
		// Strip the negated form before looking for the bare positive.
		stripped := strings.ReplaceAll(text, p.neg, "")
		hasPos := wordRe(p.pos).MatchString(stripped)
		if hasNeg && hasPos {
			out = append(out, types.Violation{
				Check:    types.CheckDirectConflict,
				Severity: types.SeverityError,
				Message:  fmt.Sprintf("result asserts both halves of %s", p.name),
				Subject:  p.name,
			})
		}
	}
	return out
}

func (l *Linter) checkPolicyDrift(o *types.Output) []types.Violation {
	var out []types.Violation
	for _, tag := range o.PolicyTags {
		if tag.Status == types.TagViolation {
			out = append(out, types.Violation{
				Check:    types.CheckPolicyDrift,
				Severity: types.SeverityError,
				Message:  fmt.Sprintf("policy tag %q carries a violation", tag.Name),
				Subject:  tag.Name,
			})
		}
	}
	if o.RequiresApproval && !o.ConstitutionalCompliance {
		out = append(out, types.Violation{
			Check:    types.CheckPolicyDrift,
			Severity: types.SeverityWarning,
			Message:  "output requires approval but does not claim constitutional compliance",
		})
	}
	return out
}

func (l *Linter) checkCausalMismatch(o *types.Output, ctx *Context) []types.Violation {
	deps := l.causalDeps[o.Component]
	if len(deps) == 0 {
		return nil
	}
	present := make(map[string]bool, len(ctx.CausalChain))
	for _, c := range ctx.CausalChain {
		present[c] = true
	}
	var out []types.Violation
	for _, dep := range deps {
		if !present[dep] {
			out = append(out, types.Violation{
				Check:    types.CheckCausalMismatch,
				Severity: types.SeverityWarning,
				Message:  fmt.Sprintf("causal chain omits declared dependency %q", dep),
				Subject:  dep,
			})
		}
	}
	return out
}

func (l *Linter) checkTemporal(o *types.Output, now time.Time) []types.Violation {
	var out []types.Violation
	for _, c := range o.Citations {
		if c.Timestamp != nil && c.Timestamp.After(now) {
			out = append(out, types.Violation{
				Check:    types.CheckTemporalInconsistency,
				Severity: types.SeverityWarning,
				Message:  fmt.Sprintf("citation %q is timestamped in the future", c.Source),
				Subject:  c.Source,
			})
		}
	}
	if o.Expired(now) {
		out = append(out, types.Violation{
			Check:    types.CheckTemporalInconsistency,
			Severity: types.SeverityInfo,
			Message:  "output has already expired",
		})
	}
	return out
}

// checkMemoryConflict compares the output's polarity against prior outputs
// of the same component, from the caller-supplied window or the internal one.
func (l *Linter) checkMemoryConflict(o *types.Output, ctx *Context) []types.Violation {
	window := ctx.RecentMemory
	if window == nil {
		window = l.recent.Snapshot()
	}
	cur := strings.ToLower(o.Result)
	var out []types.Violation
	for _, prior := range window {
		if prior == nil || prior.Component != o.Component {
			continue
		}
		prev := strings.ToLower(prior.Result)
		for _, pair := range polarityPairs {
			curA, curB := pair[0].MatchString(cur), pair[1].MatchString(cur)
			prevA, prevB := pair[0].MatchString(prev), pair[1].MatchString(prev)
			// Only a clean single-sided signal on each end counts.
			if (curA != curB) && (prevA != prevB) && curA != prevA {
				out = append(out, types.Violation{
					Check:    types.CheckMemoryConflict,
					Severity: types.SeverityWarning,
					Message: fmt.Sprintf("contradicts prior output of %q (loop %s)",
						prior.Component, prior.LoopID),
					Subject: prior.LoopID,
				})
				break
			}
		}
	}
	return out
}

func (l *Linter) checkKnowledgeConflict(o *types.Output, ctx *Context) []types.Violation {
	if len(ctx.KnownTrust) == 0 {
		return nil
	}
	var out []types.Violation
	for _, c := range o.Citations {
		trust, ok := ctx.KnownTrust[c.Source]
		if !ok {
			continue
		}
		if c.Confidence > trust+knowledgeConflictMargin {
			out = append(out, types.Violation{
				Check:    types.CheckKnowledgeConflict,
				Severity: types.SeverityWarning,
				Message: fmt.Sprintf("citation %q claims confidence %.2f against stored trust %.2f",
					c.Source, c.Confidence, trust),
				Subject: c.Source,
			})
		}
	}
	return out
}

func (l *Linter) checkConstitutionalAlignment(o *types.Output) []types.Violation {
	var out []types.Violation
	if o.RequiresApproval && !o.ConstitutionalCompliance {
		out = append(out, types.Violation{
			Check:    types.CheckConstitutionalAlignment,
			Severity: types.SeverityCritical,
			Message:  "approval-gated output lacks constitutional compliance",
		})
	}
	if o.HasErrors() && len(o.Diagnostics) == 0 {
		out = append(out, types.Violation{
			Check:    types.CheckConstitutionalAlignment,
			Severity: types.SeverityWarning,
			Message:  "errors reported without any diagnostics",
		})
	}
	return out
}

// patchFor generates the remediation suggestion for one violation.
// Temporal fixes are the only auto-appliable class; memory conflicts go back
// to the emitting specialist; CRITICAL findings go to governance review.
func patchFor(v types.Violation) types.Patch {
	switch {
	case v.Severity == types.SeverityCritical:
		return types.Patch{
			Check:       v.Check,
			Description: "escalate to human/governance review",
			Confidence:  0.5,
			EscalateTo:  "governance",
		}
	case v.Check == types.CheckTemporalInconsistency:
		return types.Patch{
			Check:           v.Check,
			Description:     "replace offending timestamp with current time",
			SafeToAutoApply: true,
			Confidence:      0.9,
		}
	case v.Check == types.CheckMemoryConflict:
		return types.Patch{
			Check:       v.Check,
			Description: "return to specialist to reconcile with prior output",
			Confidence:  0.6,
			EscalateTo:  "specialist",
		}
	case v.Check == types.CheckDirectConflict:
		return types.Patch{
			Check:       v.Check,
			Description: "remove one half of the contradictory assertion",
			Confidence:  0.4,
		}
	default:
		return types.Patch{
			Check:       v.Check,
			Description: "review finding: " + v.Message,
			Confidence:  0.5,
		}
	}
}
