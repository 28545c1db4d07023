package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecValidate(t *testing.T) {
	valid := func() *Spec {
		return &Spec{
			ID:     "s",
			Status: StatusActive,
			Phases: []Phase{
				{Seq: 0, Name: "design"},
				{Seq: 1, Name: "build"},
			},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("unknown status", func(t *testing.T) {
		s := valid()
		s.Status = "zombie"
		assert.Error(t, s.Validate())
	})

	t.Run("one-based seq numbering", func(t *testing.T) {
		s := valid()
		s.Phases[0].Seq = 1
		s.Phases[1].Seq = 2
		err := s.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "seq 1")
	})

	t.Run("reordered phases", func(t *testing.T) {
		s := valid()
		s.Phases[0].Seq, s.Phases[1].Seq = 1, 0
		assert.Error(t, s.Validate())
	})

	t.Run("no phases", func(t *testing.T) {
		s := valid()
		s.Phases = nil
		assert.NoError(t, s.Validate(), "phase presence is checked at activation, not structurally")
	})
}
