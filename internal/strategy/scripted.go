package strategy

import (
	"context"
)

// ScriptedStrategy replays fixed decisions by bar index.
// Bars without an entry hold. Errors[i] is returned instead of a decision at bar i.
type ScriptedStrategy struct {
	Decisions map[int]Decision
	Errors    map[int]error
}

// NewScriptedStrategy creates a ScriptedStrategy from index -> decision.
func NewScriptedStrategy(decisions map[int]Decision) *ScriptedStrategy {
	return &ScriptedStrategy{Decisions: decisions}
}

// ID returns "SCRIPTED".
func (s *ScriptedStrategy) ID() string {
	return "SCRIPTED"
}

// Decide implements Strategy.
func (s *ScriptedStrategy) Decide(_ context.Context, in *Input) (Decision, error) {
	if err, ok := s.Errors[in.Index]; ok {
		return Decision{}, err
	}
	if d, ok := s.Decisions[in.Index]; ok {
		return d, nil
	}
	return Hold(), nil
}

var _ Strategy = (*ScriptedStrategy)(nil)
