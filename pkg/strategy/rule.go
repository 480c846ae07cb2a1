package strategy

import (
	"fmt"
	"time"
)

// RuleType names the kind of condition a rule carries.
type RuleType string

// Rule types.
const (
	RuleTime    RuleType = "time"
	RuleSize    RuleType = "size"
	RulePattern RuleType = "pattern"
	RuleManual  RuleType = "manual"
)

// Action is what a rule does to the entries it selects.
type Action string

// Rule actions.
const (
	// ActionEvict removes the selected entries.
	ActionEvict Action = "evict"
	// ActionRefresh flags the selected entries as stale for the refresh handler.
	ActionRefresh Action = "refresh"
	// ActionCompress recompresses the selected entries.
	ActionCompress Action = "compress"
)

func (a Action) valid() bool {
	switch a {
	case ActionEvict, ActionRefresh, ActionCompress:
		return true
	default:
		return false
	}
}

// Condition is one of TimeCondition, SizeCondition, PatternCondition or
// ManualCondition. The set is closed; the rule engine switches on the
// concrete type.
type Condition interface {
	Type() RuleType
	String() string
	isCondition()
}

// TimeCondition selects entries older than After.
type TimeCondition struct {
	After time.Duration
}

// SizeCondition triggers when the store holds more than Bytes.
type SizeCondition struct {
	Bytes int64
}

// PatternCondition selects entries whose key matches Pattern.
type PatternCondition struct {
	Pattern Pattern
}

// ManualCondition never fires on its own. Manager.Signal applies it when
// its Signal name is raised, e.g. "logout".
type ManualCondition struct {
	Signal string
}

func (TimeCondition) Type() RuleType    { return RuleTime }
func (SizeCondition) Type() RuleType    { return RuleSize }
func (PatternCondition) Type() RuleType { return RulePattern }
func (ManualCondition) Type() RuleType  { return RuleManual }

func (TimeCondition) isCondition()    {}
func (SizeCondition) isCondition()    {}
func (PatternCondition) isCondition() {}
func (ManualCondition) isCondition()  {}

func (c TimeCondition) String() string { return "older than " + c.After.String() }
func (c SizeCondition) String() string { return fmt.Sprintf("larger than %d bytes", c.Bytes) }
func (c PatternCondition) String() string {
	if !validPattern(c.Pattern) {
		return "matching <nil>"
	}
	return "matching " + c.Pattern.String()
}
func (c ManualCondition) String() string { return "on signal " + c.Signal }

// Rule pairs a condition with an action.
type Rule struct {
	Condition Condition
	Action    Action
}

// Type returns the rule's condition type.
func (r Rule) Type() RuleType {
	if r.Condition == nil {
		return ""
	}
	return r.Condition.Type()
}

func (r Rule) String() string {
	return fmt.Sprintf("%s %s (%s)", r.Action, r.Condition, r.Type())
}

// EvictAfter returns a time rule that evicts entries older than d.
func EvictAfter(d time.Duration) Rule {
	return Rule{Condition: TimeCondition{After: d}, Action: ActionEvict}
}

// RefreshAfter returns a time rule that marks entries older than d stale.
func RefreshAfter(d time.Duration) Rule {
	return Rule{Condition: TimeCondition{After: d}, Action: ActionRefresh}
}

// EvictAbove returns a size rule that evicts oldest entries while the
// store holds more than n bytes.
func EvictAbove(n int64) Rule {
	return Rule{Condition: SizeCondition{Bytes: n}, Action: ActionEvict}
}

// EvictMatching returns a pattern rule that evicts matching keys.
func EvictMatching(p Pattern) Rule {
	return Rule{Condition: PatternCondition{Pattern: p}, Action: ActionEvict}
}

// OnSignal returns a manual rule applying action when signal is raised.
func OnSignal(signal string, action Action) Rule {
	return Rule{Condition: ManualCondition{Signal: signal}, Action: action}
}

// Validate checks the condition payload and the action.
func (r Rule) Validate() error {
	if !r.Action.valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidRule, r.Action)
	}

	switch c := r.Condition.(type) {
	case TimeCondition:
		if c.After <= 0 {
			return fmt.Errorf("%w: time rule needs a positive duration", ErrInvalidRule)
		}
	case SizeCondition:
		if c.Bytes <= 0 {
			return fmt.Errorf("%w: size rule needs a positive byte threshold", ErrInvalidRule)
		}
		if r.Action == ActionRefresh {
			return fmt.Errorf("%w: size rules support evict and compress only", ErrInvalidRule)
		}
	case PatternCondition:
		if !validPattern(c.Pattern) {
			return fmt.Errorf("%w: pattern rule needs a pattern", ErrInvalidRule)
		}
	case ManualCondition:
		if c.Signal == "" {
			return fmt.Errorf("%w: manual rule needs a signal name", ErrInvalidRule)
		}
	default:
		return fmt.Errorf("%w: missing condition", ErrInvalidRule)
	}
	return nil
}
