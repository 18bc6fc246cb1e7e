package learning

// Outcome is the immediate result of an executed action.
type Outcome int

const (
	OutcomeNeutral Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

// Reward shapes the scalar signal from an action's outcome plus the state
// transition it caused.
func Reward(action Action, outcome Outcome, prev, next State) float64 {
	r := 0.0
	switch outcome {
	case OutcomeSuccess:
		r += 1.0
	case OutcomeFailure:
		r -= 1.0
	}

	// Errors removed pay out, errors introduced cost the same.
	r += 5.0 * float64(prev.ErrorCount-next.ErrorCount)

	if !prev.BuildSuccess && next.BuildSuccess {
		r += 10.0
	} else if prev.BuildSuccess && !next.BuildSuccess {
		r -= 10.0
	}

	if delta := next.TestCoverage - prev.TestCoverage; delta > 0 {
		r += 0.5 * delta
	}

	switch action.Kind {
	case ActRunTests, ActRunBuild, ActAnalyzeCode:
		r += 0.5
	case ActExecuteCommand:
		r -= 0.1
	case ActNoOp:
		r -= 0.5
	}
	return r
}
