// Package route decides whether a task runs inline or is delegated to an
// external capability provider.
//
// Routing is a deterministic rule table over task shape. The capability
// set is closed (reader, writer, tester, fixer, researcher) so every task
// shape maps to exactly one outcome; determinism is a correctness
// property here, not an optimization.
package route

import (
	"github.com/fyrsmithlabs/specd/internal/spec"
)

// Decision is the routing outcome for a task.
type Decision struct {
	// Delegate is true when the task must go to an external capability
	// provider; false means inline execution.
	Delegate bool
	// Capability is the target class when Delegate is true.
	Capability spec.Capability
}

// Inline is the inline-execution decision.
var Inline = Decision{}

// Delegate returns a delegation decision for the given capability class.
func Delegate(c spec.Capability) Decision {
	return Decision{Delegate: true, Capability: c}
}

// Router maps task shapes onto routing decisions.
type Router struct {
	// readHeavyThreshold is the artifact-read count above which a task
	// is handed to a reader.
	readHeavyThreshold int
}

// NewRouter creates a router with the standard rule table.
func NewRouter() *Router {
	return &Router{readHeavyThreshold: 3}
}

// Route returns the decision for a task. Rules are checked in fixed
// priority order and the first match wins, so repeated calls with
// identical input always produce the same outcome:
//
//  1. retry of a failed task          -> fixer
//  2. verification work               -> tester
//  3. exploratory/open-ended work     -> researcher
//  4. reads more than 3 artifacts     -> reader
//  5. produces source-like output     -> writer
//  6. everything else                 -> inline
func (r *Router) Route(t spec.Task) Decision {
	switch {
	case t.Retry:
		return Delegate(spec.CapabilityFixer)
	case t.Verification:
		return Delegate(spec.CapabilityTester)
	case t.Exploratory:
		return Delegate(spec.CapabilityResearcher)
	case t.ArtifactReads > r.readHeavyThreshold:
		return Delegate(spec.CapabilityReader)
	case t.ProducesSource:
		return Delegate(spec.CapabilityWriter)
	default:
		return Inline
	}
}
