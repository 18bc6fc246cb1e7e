package learning

import "fmt"

// State is the observable project condition before simplification.
type State struct {
	FileCount    int
	ErrorCount   int
	WarningCount int
	TestCoverage float64 // percent
	BuildSuccess bool
}

// Signature is the reduced five-tuple used as the Q-table key. Coverage is
// floored to an integer to keep the state space tractable.
type Signature struct {
	FileCount    int
	ErrorCount   int
	WarningCount int
	Coverage     int
	BuildSuccess bool
}

// Simplify reduces the state to its signature.
func (s State) Simplify() Signature {
	return Signature{
		FileCount:    s.FileCount,
		ErrorCount:   s.ErrorCount,
		WarningCount: s.WarningCount,
		Coverage:     int(s.TestCoverage),
		BuildSuccess: s.BuildSuccess,
	}
}

func (sig Signature) String() string {
	return fmt.Sprintf("f%d_e%d_w%d_c%d_b%t",
		sig.FileCount, sig.ErrorCount, sig.WarningCount, sig.Coverage, sig.BuildSuccess)
}
