package classifier

import (
	"regexp"
	"strconv"
	"strings"
)

// PushType discriminates the three outcomes ProcessPushType can report,
// mirroring schedulerDBpoller.py's ProcessPushType return value.
type PushType string

const (
	PushTry   PushType = "TRY"
	PushRetry PushType = "RETRY"
	PushNone  PushType = ""
)

var bugNumberRe = regexp.MustCompile(`(?i)\bbug\s+(\d+)\b`)

// ProcessPushType scans every record's comments for a "try: " line and
// reports the push type and, for a RETRY push, the max-orange override
// carried in "--retry-oranges N". flagCheck mirrors the --flag-check CLI
// option: when true, TRY detection additionally requires
// "--post-to-bugzilla" to be present.
func ProcessPushType(records []BuildRecord, flagCheck bool, defaultMaxOrange int) (PushType, int) {
	pushType := PushNone
	maxOrange := defaultMaxOrange

	for _, r := range records {
		for _, comment := range r.Comments {
			if !strings.Contains(comment, "try: ") {
				continue
			}
			if flagCheck {
				if strings.Contains(comment, "--post-to-bugzilla") {
					pushType = PushTry
				}
			} else {
				pushType = PushTry
			}
			if strings.Contains(comment, "--retry-oranges") {
				pushType = PushRetry
				maxOrange = parseMaxOrange(comment, defaultMaxOrange)
			}
		}
	}
	return pushType, maxOrange
}

func parseMaxOrange(comment string, defaultMaxOrange int) int {
	idx := strings.Index(comment, "--retry-oranges")
	if idx < 0 {
		return defaultMaxOrange
	}
	rest := strings.TrimSpace(comment[idx+len("--retry-oranges"):])
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return defaultMaxOrange
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return defaultMaxOrange
	}
	return n
}

// ExtractBugIDs pulls every "bug NNNN" reference out of the portion of
// each comment following "try: ", deduplicated and in first-seen order.
func ExtractBugIDs(records []BuildRecord) []int {
	seen := make(map[int]bool)
	var out []int
	for _, r := range records {
		for _, comment := range r.Comments {
			idx := strings.Index(comment, "try: ")
			if idx < 0 {
				continue
			}
			tail := comment[idx+len("try: "):]
			for _, m := range bugNumberRe.FindAllStringSubmatch(tail, -1) {
				n, err := strconv.Atoi(m[1])
				if err != nil || seen[n] {
					continue
				}
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}
