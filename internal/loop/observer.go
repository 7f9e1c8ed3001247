package loop

// Phase is a step of the iteration state machine.
type Phase int

const (
	PhaseBranch Phase = iota
	PhaseAgent
	PhaseParse
	PhaseCommit
	PhasePush
	PhaseOpen
	PhasePoll
	PhaseMerge
	PhaseCleanup
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseBranch:
		return "branch"
	case PhaseAgent:
		return "agent"
	case PhaseParse:
		return "parse"
	case PhaseCommit:
		return "commit"
	case PhasePush:
		return "push"
	case PhaseOpen:
		return "open-pr"
	case PhasePoll:
		return "poll"
	case PhaseMerge:
		return "merge"
	case PhaseCleanup:
		return "cleanup"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Observer receives loop progress. Implementations must not block and cannot
// influence control flow.
type Observer interface {
	OnLoopStart(task string, limits Limits)
	OnIterationStart(ordinal int)
	OnPhase(ordinal int, phase Phase, detail string)
	OnIterationEnd(result IterationResult)
	OnLoopEnd(summary *Summary)
}

// NoopObserver implements Observer with no-ops. Embed it to implement only
// the callbacks you need.
type NoopObserver struct{}

var _ Observer = NoopObserver{}

func (NoopObserver) OnLoopStart(string, Limits)     {}
func (NoopObserver) OnIterationStart(int)           {}
func (NoopObserver) OnPhase(int, Phase, string)     {}
func (NoopObserver) OnIterationEnd(IterationResult) {}
func (NoopObserver) OnLoopEnd(*Summary)             {}

// MultiObserver fans out progress updates to multiple observers.
type MultiObserver struct {
	observers []Observer
}

var _ Observer = (*MultiObserver)(nil)

// NewMultiObserver forwards to every non-nil observer.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	filtered := make([]Observer, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			filtered = append(filtered, obs)
		}
	}
	return &MultiObserver{observers: filtered}
}

// safeCall calls fn with panic recovery so one observer cannot take down the
// loop or starve the others.
func safeCall(fn func()) {
	defer func() {
		_ = recover()
	}()
	fn()
}

func (m *MultiObserver) each(fn func(Observer)) {
	for _, obs := range m.observers {
		safeCall(func() { fn(obs) })
	}
}

// OnLoopStart forwards the call to all observers.
func (m *MultiObserver) OnLoopStart(task string, limits Limits) {
	m.each(func(o Observer) { o.OnLoopStart(task, limits) })
}

// OnIterationStart forwards the call to all observers.
func (m *MultiObserver) OnIterationStart(ordinal int) {
	m.each(func(o Observer) { o.OnIterationStart(ordinal) })
}

// OnPhase forwards the call to all observers.
func (m *MultiObserver) OnPhase(ordinal int, phase Phase, detail string) {
	m.each(func(o Observer) { o.OnPhase(ordinal, phase, detail) })
}

// OnIterationEnd forwards the call to all observers.
func (m *MultiObserver) OnIterationEnd(result IterationResult) {
	m.each(func(o Observer) { o.OnIterationEnd(result) })
}

// OnLoopEnd forwards the call to all observers.
func (m *MultiObserver) OnLoopEnd(summary *Summary) {
	m.each(func(o Observer) { o.OnLoopEnd(summary) })
}
