// Package spec defines the core data model for phased workflow execution.
//
// A Spec is a unit of multi-phase work. Each Phase carries an entry gate,
// an exit gate, a set of required artifacts, and leaf Tasks. Gates are
// expressed as data (Check values) rather than code so that all engine
// state remains reconstructable from the on-disk manifest and markdown
// artifacts.
//
// The types here are shared by every engine component; they carry no
// behavior beyond gate evaluation and derived accessors.
package spec
