package classifier

import "time"

// IsComplete reports whether every record in the set has finished and
// cleared the completion grace window, per spec.md §4.3's completeness
// rule — the grace window covers test jobs triggered slightly after the
// build job finishes.
func IsComplete(records []BuildRecord, completionThreshold time.Duration, now time.Time) bool {
	if len(records) == 0 {
		return false
	}
	for _, r := range records {
		if !r.HasFinished {
			return false
		}
		if now.Sub(r.FinishTime) <= completionThreshold {
			return false
		}
	}
	return true
}

// TimedOut reports whether a revision first seen at firstSeen has exceeded
// timeout, forcing TIMED_OUT regardless of completeness.
func TimedOut(firstSeen time.Time, timeout time.Duration, now time.Time) bool {
	return now.Sub(firstSeen) > timeout
}
