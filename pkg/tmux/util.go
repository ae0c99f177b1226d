package tmux

import "strings"

// SanitizeSessionName turns an arbitrary string into a valid tmux session
// name: lowercase, hyphen-separated, bounded length.
func SanitizeSessionName(title string) string {
	var b strings.Builder
	last := byte(0)
	for _, r := range strings.ToLower(title) {
		c := byte('-')
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			c = byte(r)
		}
		// Runs of separators collapse to a single hyphen.
		if c == '-' && last == '-' {
			continue
		}
		b.WriteByte(c)
		last = c
	}

	name := strings.Trim(b.String(), "-")
	if name == "" {
		return "session"
	}
	// tmux targets get unwieldy past this and some status lines truncate.
	if len(name) > 50 {
		name = name[:50]
	}
	return name
}
