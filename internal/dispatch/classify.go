package dispatch

import "strings"

// LineClass is the verdict of the output classifier for a single line of
// child-process output.
type LineClass int

const (
	LineNormal LineClass = iota
	LineQuota
	LineFatal
)

// Substrings the wrapped CLI emits when the upstream quota is exhausted.
// Detecting these early lets us kill the child instead of sitting through
// its own retry/backoff loop.
var defaultQuotaPatterns = []string{
	"RESOURCE_EXHAUSTED",
	"Quota exceeded",
	"rateLimitExceeded",
	"429 Too Many Requests",
	"status 429",
}

var defaultFatalPatterns = []string{
	"FATAL ERROR",
	"UnhandledPromiseRejection",
}

// Classifier matches child-process output lines against known error
// substrings. It is a pure function over lines, testable apart from the
// process plumbing.
type Classifier struct {
	quota []string
	fatal []string
}

// NewClassifier builds a classifier. Empty pattern lists fall back to the
// defaults.
func NewClassifier(quota, fatal []string) *Classifier {
	if len(quota) == 0 {
		quota = defaultQuotaPatterns
	}
	if len(fatal) == 0 {
		fatal = defaultFatalPatterns
	}
	return &Classifier{quota: quota, fatal: fatal}
}

// Classify returns the class of a single output line. Quota patterns win
// over fatal patterns.
func (c *Classifier) Classify(line string) LineClass {
	for _, p := range c.quota {
		if strings.Contains(line, p) {
			return LineQuota
		}
	}
	for _, p := range c.fatal {
		if strings.Contains(line, p) {
			return LineFatal
		}
	}
	return LineNormal
}
