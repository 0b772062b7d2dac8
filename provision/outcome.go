/*
Package provision converges RouterOS devices on a declared IPv6 tunnel
configuration.

Reconciliation is query-then-apply: each desired fact (an address on an
interface, a route to a prefix) is checked against the live device state
first, and a configuration command is only issued when the fact is absent.
Command replies are plain text and occasionally ambiguous, so every reply
is classified into a definite outcome before it influences control flow.
Failures are data, not exceptions: the batch layer folds per-item outcomes
into success and failure counts and always processes every declared item.
*/
package provision

import "strings"

// Outcome is the terminal state of one reconciliation step.
type Outcome int

const (
	// OutcomeApplied means a command was issued and not rejected.
	OutcomeApplied Outcome = iota
	// OutcomeSkipped means the desired fact already held, either found by
	// the pre-query or reported by the device's conflict reply.
	OutcomeSkipped
	// OutcomeFailed means the device rejected the command.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Succeeded reports whether the step converged; skipped counts as success.
func (o Outcome) Succeeded() bool { return o != OutcomeFailed }

type replyClass int

const (
	// replyApplied: the reply carried no rejection marker.
	replyApplied replyClass = iota
	// replyAlreadySatisfied: the device reported the fact already holds.
	replyAlreadySatisfied
	// replyRejected: a syntax error or failure not explained by an
	// idempotent conflict.
	replyRejected
	// replyIndeterminate: empty reply.  RouterOS prints nothing for most
	// successful configuration commands, so this is treated as applied
	// pending best-effort verification.
	replyIndeterminate
)

// Idempotent-conflict markers: substrings the device emits when the
// requested fact already exists.  These turn a textual failure into a
// success.
const (
	addressConflictMarker = "already have such address"
	routeConflictMarker   = "already have such route"
)

// classifyReply reduces a raw command reply to a definite class.  The
// reason is the trimmed reply text when the command was rejected.
func classifyReply(reply, conflictMarker string) (replyClass, string) {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" {
		return replyIndeterminate, ""
	}
	lower := strings.ToLower(trimmed)
	if conflictMarker != "" && strings.Contains(lower, conflictMarker) {
		return replyAlreadySatisfied, ""
	}
	if strings.Contains(lower, "syntax error") || strings.Contains(lower, "failure") {
		return replyRejected, trimmed
	}
	return replyApplied, ""
}
