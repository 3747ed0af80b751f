// Package container manages per-function container pools: idle private
// containers become zygotes, zygotes fork into helpers for overloaded
// functions along a dependency graph, and everything else cold-starts a new
// private container. Each transition carries a stochastic provisioning cost
// recorded in a per-tick ledger.
package container

import (
	"fmt"

	"github.com/google/uuid"
)

// State is a container's lifecycle state.
type State int

const (
	// Private containers serve only their own function.
	Private State = iota
	// Zygote containers are idle, pre-initialised, and eligible to fork.
	Zygote
	// Helper containers were forked from another function's zygote.
	Helper
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Private:
		return "private"
	case Zygote:
		return "zygote"
	case Helper:
		return "helper"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ParseState maps a state name to its State.
func ParseState(name string) (State, error) {
	switch name {
	case "", "private":
		return Private, nil
	case "zygote":
		return Zygote, nil
	case "helper":
		return Helper, nil
	default:
		return 0, fmt.Errorf("unknown container state %q; valid: private, zygote, helper", name)
	}
}

// Container is one execution container in a function's pool.
type Container struct {
	ID       string
	Function string // function the container currently serves
	State    State
	Idle     bool
	Origin   string // function whose zygote was forked; helpers only
}

// Active reports whether the container can serve a request without provisioning.
func (c *Container) Active() bool {
	return !c.Idle && c.State != Zygote
}

// idNamespace scopes container IDs so they are stable across runs.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("fogsim/container"))

// containerID derives a deterministic ID from the function and allocation sequence.
func containerID(function string, seq int) string {
	return uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("%s/%d", function, seq))).String()
}
