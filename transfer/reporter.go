package transfer

type NotifyKind int

func (k NotifyKind) String() string {
	switch k {
	case NotifySuccess:
		return "success"
	case NotifyError:
		return "error"
	}

	return "info"
}

const (
	NotifyInfo NotifyKind = iota
	NotifySuccess
	NotifyError
)

// Reporter receives orchestrator feedback. Implementations render it however
// they like (terminal, test recorder); the orchestrator never touches a
// presentation layer directly.
type Reporter interface {
	// Progress reports overall batch completion in percent, 0 to 100.
	Progress(pct float64)
	// Status reports the current fine-grained activity.
	Status(text string)
	// Task reports which batch item is being worked on.
	Task(text string)
	// Notify reports a user-facing event: a finished download, a missed
	// match, a per-item failure.
	Notify(text string, kind NotifyKind)
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) Progress(float64) {}

func (NopReporter) Status(string) {}

func (NopReporter) Task(string) {}

func (NopReporter) Notify(string, NotifyKind) {}
