package cachemodel

import "time"

// ExplicitFeedback is the user's direct verdict on a result, if given.
type ExplicitFeedback string

const (
	Accepted ExplicitFeedback = "accepted"
	Rejected ExplicitFeedback = "rejected"
	NoVerdict ExplicitFeedback = ""
)

// Action is one of the three decision outcomes (hit/diff/new), reused here
// so feedback can optionally carry the action the host actually took
// (spec §9 open question: the source doesn't persist this, but a host
// that can provide it should).
type Action string

const (
	ActionHit  Action = "hit"
	ActionDiff Action = "diff"
	ActionNew  Action = "new"
)

// ImplicitFeedback captures signals inferred from user behavior rather
// than stated directly.
type ImplicitFeedback struct {
	RegenerationCount int
	EditCount         int
	DwellTimeMS       int64
	ClickedVariants   int
}

// FeedbackRecord is one observation tying a prompt/result pair to explicit
// and/or implicit signal (§3). Action, when non-empty, is the decision the
// host actually made for this result; when empty the threshold adapter
// falls back to inferring it from ImplicitFeedback.RegenerationCount.
type FeedbackRecord struct {
	PromptID  string
	ResultID  string
	Explicit  ExplicitFeedback
	Implicit  ImplicitFeedback
	Timestamp time.Time
	UserID    string
	Action    Action
}

// InferredAction derives the decision action from regeneration_count when
// Action is not set directly: 0 -> hit, 1 -> diff, >=2 -> new (§4.5).
func (f FeedbackRecord) InferredAction() Action {
	if f.Action != "" {
		return f.Action
	}
	switch {
	case f.Implicit.RegenerationCount == 0:
		return ActionHit
	case f.Implicit.RegenerationCount == 1:
		return ActionDiff
	default:
		return ActionNew
	}
}
