package dispatch

// Outcome classifies how a dispatched CLI run ended.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeTimeout
	OutcomeQuotaExhausted
)

// ExitCode maps the outcome onto the exit code contract consumed by the CI
// workflow: 0 success, 1 generic failure, 124 timeout, 429 quota exhausted.
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeSuccess:
		return 0
	case OutcomeTimeout:
		return 124
	case OutcomeQuotaExhausted:
		return 429
	default:
		return 1
	}
}

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeQuotaExhausted:
		return "quota_exhausted"
	default:
		return "failure"
	}
}

// Result is what a run reports back to the caller.
type Result struct {
	Outcome      Outcome
	ResponsePath string
	LogPath      string
}
