package classifier

import (
	"fmt"
	"strings"
)

// GenerateReportMessage composes the summary comment posted on terminal
// classification, mirroring GenerateResultReportMessage's breakdown-plus-
// link-template shape.
func GenerateReportMessage(revision, branch string, outcome Outcome, rc ResultCounts) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Push to %s for %s is complete: %s\n", branch, revision, outcome)
	fmt.Fprintf(&b, "Detailed breakdown of the results available here:\n\thttps://treeherder.mozilla.org/#/jobs?repo=%s&revision=%s\n", branch, revision)
	fmt.Fprintf(&b, "Results (out of %d total builds):\n", rc.Total)

	for _, row := range []struct {
		name  string
		count int
	}{
		{"success", rc.Success},
		{"warnings", rc.Warnings},
		{"failure", rc.Failure},
		{"skipped", rc.Skipped},
		{"exception", rc.Exception},
		{"other", rc.Other},
	} {
		if row.count > 0 {
			fmt.Fprintf(&b, "    %s: %d\n", row.name, row.count)
		}
	}

	if outcome == OutcomeTimedOut {
		b.WriteString("Timed out without completing.\n")
	}

	return b.String()
}
