package resolver

// state carries the transient, per-request bookkeeping that a CNAME/DNAME
// chain needs across zone boundaries: the set of owner names already
// chased, so that a repeat triggers SERVFAIL instead of looping forever.
type state struct {
	cnameOwners map[string]bool
	dnameOwners map[string]bool
}

func newState() *state {
	return &state{
		cnameOwners: make(map[string]bool),
		dnameOwners: make(map[string]bool),
	}
}

// stepResult is the outcome of classifying one name. continueWalk means
// "pop the next label and keep walking this zone"; a non-empty next means
// "stop this zone walk and resume FindAnswer at this new name" (a CNAME or
// synthesized DNAME target, possibly in a different zone). Neither set
// means resolution is complete.
type stepResult struct {
	continueWalk bool
	next         string
}
