package device

// Op is an attachment operation driven by the orchestrator.
type Op string

const (
	OpAttach Op = "attach"
	OpDetach Op = "detach"
)

// Outcome is the result of one attachment operation attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// transitions maps (operation, outcome) to the resulting state. The result
// is independent of the state the device was in when the operation started:
// any state may fail into Error, and a retry from Error is a fresh attempt,
// not a resumption.
var transitions = map[Op]map[Outcome]State{
	OpAttach: {
		OutcomeSuccess: StateAttached,
		OutcomeFailure: StateError,
	},
	OpDetach: {
		OutcomeSuccess: StateDetached,
		OutcomeFailure: StateError,
	},
}

// Begin returns the state a device enters when an operation starts.
func Begin(Op) State {
	return StateTransitioning
}

// Next returns the state a device enters when an operation completes.
// Unknown combinations resolve to Error, which fails toward the secure side.
func Next(op Op, outcome Outcome) State {
	if byOutcome, ok := transitions[op]; ok {
		if next, ok := byOutcome[outcome]; ok {
			return next
		}
	}
	return StateError
}
