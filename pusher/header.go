package pusher

import (
	"regexp"
	"strings"
)

// userHeaderRe matches Mercurial's "# User Name <email@host>" patch header
// line, per spec.md §4.2's header check.
var userHeaderRe = regexp.MustCompile(`(?m)^# User (.+?)\s*<([^>]+)>\s*$`)

// PatchHeader is the parsed identity and commit message of a patch file.
type PatchHeader struct {
	UserName string
	Email    string
	Message  string
}

// ParsePatchHeader extracts the user header and first commit-message line
// from a raw patch body. ok is false when either the user header or a
// non-blank message line is missing.
func ParsePatchHeader(body []byte) (hdr PatchHeader, ok bool) {
	lines := strings.Split(string(body), "\n")

	for _, l := range lines {
		if m := userHeaderRe.FindStringSubmatch(l); m != nil {
			hdr.UserName = strings.TrimSpace(m[1])
			hdr.Email = m[2]
			break
		}
	}

	inMetaBlock := true
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if inMetaBlock {
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				continue
			}
			inMetaBlock = false
		}
		if trimmed != "" {
			hdr.Message = trimmed
			break
		}
	}

	return hdr, hdr.Email != "" && hdr.Message != ""
}
