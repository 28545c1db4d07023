package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGateEval_EmptyGateHolds(t *testing.T) {
	ok, unmet := Gate{}.Eval(GateInput{})
	assert.True(t, ok)
	assert.Empty(t, unmet)
}

func TestGateEval_ArtifactExists(t *testing.T) {
	g := Gate{Checks: []Check{
		{Kind: CheckArtifactExists, Artifact: "design.md"},
		{Kind: CheckArtifactExists, Artifact: "plan.md"},
	}}

	present := map[string]bool{"design.md": true}
	ok, unmet := g.Eval(GateInput{
		ArtifactExists: func(name string) bool { return present[name] },
	})

	assert.False(t, ok)
	assert.Equal(t, []string{"artifact-exists:plan.md"}, unmet)
}

func TestGateEval_NilArtifactLookupFails(t *testing.T) {
	g := Gate{Checks: []Check{{Kind: CheckArtifactExists, Artifact: "out.md"}}}
	ok, unmet := g.Eval(GateInput{})
	assert.False(t, ok)
	assert.Len(t, unmet, 1)
}

func TestGateEval_PhaseComplete(t *testing.T) {
	g := Gate{Checks: []Check{{Kind: CheckPhaseComplete, Phase: 1}}}

	ok, _ := g.Eval(GateInput{PhasesDone: 1})
	assert.False(t, ok, "phase 1 not yet advanced past")

	ok, _ = g.Eval(GateInput{PhasesDone: 2})
	assert.True(t, ok)
}

func TestGateEval_TasksDone(t *testing.T) {
	g := Gate{Checks: []Check{{Kind: CheckTasksDone}}}

	ok, unmet := g.Eval(GateInput{TasksDone: false})
	assert.False(t, ok)
	assert.Equal(t, []string{"tasks-done"}, unmet)

	ok, _ = g.Eval(GateInput{TasksDone: true})
	assert.True(t, ok)
}

func TestGateEval_UnknownKindNeverHolds(t *testing.T) {
	g := Gate{Checks: []Check{{Kind: CheckKind("typo-check")}}}
	ok, unmet := g.Eval(GateInput{PhasesDone: 99, TasksDone: true})
	assert.False(t, ok)
	assert.Equal(t, []string{"typo-check"}, unmet)
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusArchived.Terminal())
	assert.False(t, StatusActive.Terminal())
	assert.False(t, StatusBlocked.Terminal())
	assert.False(t, StatusPending.Terminal())
}

func TestTaskSizeWeight(t *testing.T) {
	assert.Equal(t, 1, SizeSmall.Weight())
	assert.Equal(t, 2, SizeMedium.Weight())
	assert.Equal(t, 3, SizeLarge.Weight())
	assert.Equal(t, 2, TaskSize("unknown").Weight())
}

func TestPhasePendingTasks(t *testing.T) {
	p := Phase{Tasks: []Task{
		{ID: "t1", Done: true},
		{ID: "t2"},
		{ID: "t3"},
	}}
	pending := p.PendingTasks()
	assert.Len(t, pending, 2)
	assert.Equal(t, "t2", pending[0].ID)
	assert.Equal(t, "t3", pending[1].ID)
}

func TestSpecCurrentPhase(t *testing.T) {
	s := &Spec{Phases: []Phase{{Seq: 0, Name: "design"}, {Seq: 1, Name: "build"}}}

	s.PhaseIndex = 1
	assert.Equal(t, "build", s.CurrentPhase().Name)

	s.PhaseIndex = 2
	assert.Nil(t, s.CurrentPhase(), "past the last phase")
}
