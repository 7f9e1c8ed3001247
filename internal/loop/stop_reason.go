package loop

import (
	"encoding/json"
	"fmt"
)

// StopReason indicates why the loop terminated.
type StopReason int

const (
	StopNone                StopReason = iota // Still running.
	StopMaxRuns                               // Hit the successful-iteration cap.
	StopCostCap                               // Cumulative spend reached the cap.
	StopDurationCap                           // Wall-clock cap elapsed.
	StopCompletion                            // Completion phrase seen threshold times in a row.
	StopConsecutiveFailures                   // Too many iterations failed back to back.
	StopContextCancelled                      // Context cancelled (e.g. SIGINT).
)

var stopReasonNames = map[StopReason]string{
	StopNone:                "none",
	StopMaxRuns:             "max-runs-reached",
	StopCostCap:             "cost-cap-reached",
	StopDurationCap:         "duration-cap-reached",
	StopCompletion:          "completion-confirmed",
	StopConsecutiveFailures: "consecutive-failures",
	StopContextCancelled:    "context-cancelled",
}

// String returns the stable label for the stop reason.
func (r StopReason) String() string {
	if s, ok := stopReasonNames[r]; ok {
		return s
	}
	return "unknown"
}

// ExitCode maps the stop reason to a process exit code. Reaching a cap is a
// normal exit.
func (r StopReason) ExitCode() int {
	switch r {
	case StopNone, StopMaxRuns, StopCostCap, StopDurationCap, StopCompletion:
		return 0
	case StopContextCancelled:
		return 130
	default:
		return 1
	}
}

// MarshalJSON implements json.Marshaler.
func (r StopReason) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *StopReason) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for reason, name := range stopReasonNames {
		if name == s {
			*r = reason
			return nil
		}
	}
	return fmt.Errorf("unknown StopReason: %s", s)
}
