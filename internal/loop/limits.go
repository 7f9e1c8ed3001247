package loop

import "time"

// Decision is the limit evaluator's verdict.
type Decision struct {
	Stop   bool
	Reason StopReason
}

// Evaluate decides whether the session must stop before another iteration.
// It has no side effects. Caps are checked in a fixed order (runs, cost,
// duration, completion) and the first one reached is reported.
func Evaluate(s Session, now time.Time) Decision {
	l := s.Limits
	switch {
	case l.MaxRuns > 0 && s.Succeeded >= l.MaxRuns:
		return Decision{Stop: true, Reason: StopMaxRuns}
	case l.MaxCost > 0 && s.TotalCost >= l.MaxCost:
		return Decision{Stop: true, Reason: StopCostCap}
	case l.MaxDuration > 0 && s.Elapsed(now) >= l.MaxDuration:
		return Decision{Stop: true, Reason: StopDurationCap}
	case l.CompletionThreshold > 0 && s.CompletionStreak >= l.CompletionThreshold:
		return Decision{Stop: true, Reason: StopCompletion}
	}
	return Decision{}
}
