package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/specd/internal/budget"
	"github.com/fyrsmithlabs/specd/internal/handoff"
	"github.com/fyrsmithlabs/specd/internal/spec"
)

var (
	greenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("46")).
			Padding(0, 1)

	yellowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("226")).
			Padding(0, 1)

	redStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("196")).
			Bold(true).
			Padding(0, 1)

	// Section title style
	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

// zoneBadge renders the zone as a colored badge.
func zoneBadge(z budget.Zone) string {
	switch z {
	case budget.ZoneRed:
		return redStyle.Render("RED")
	case budget.ZoneYellow:
		return yellowStyle.Render("YELLOW")
	default:
		return greenStyle.Render("GREEN")
	}
}

// usageTable renders the per-dimension consumption against the caps.
func usageTable(u handoff.BudgetUsage, caps budget.Config) string {
	var b strings.Builder
	row := func(name string, used, limit int) {
		bar := ""
		if limit > 0 && used >= limit {
			bar = redStyle.Render("at cap")
		} else if limit > 0 && float64(used) >= caps.YellowRatio*float64(limit) {
			bar = yellowStyle.Render("near cap")
		}
		if limit > 0 {
			fmt.Fprintf(&b, "  %-12s %6d / %-6d %s\n", name, used, limit, bar)
		} else {
			fmt.Fprintf(&b, "  %-12s %6d   %s\n", name, used, dimStyle.Render("uncapped"))
		}
	}
	row("working", u.Working, caps.WorkingMax)
	row("episodic", u.Episodic, caps.EpisodicMax)
	row("semantic", u.Semantic, caps.SemanticMax)
	row("procedural", u.Procedural, 0)
	row("reads", u.DirectReads, caps.DirectReadMax)
	row("large reads", u.LargeReads, caps.LargeReadMax)
	row("delegations", u.Delegations, caps.DelegationMax)
	return b.String()
}

// phaseLine renders one phase's progress marker.
func phaseLine(s *spec.Spec, p *spec.Phase) string {
	marker := "[ ]"
	switch {
	case p.Seq < s.PhaseIndex:
		marker = "[x]"
	case p.Seq == s.PhaseIndex && !s.Status.Terminal():
		marker = "[>]"
	}
	done := len(p.Tasks) - len(p.PendingTasks())
	return fmt.Sprintf("  %s P%d %-20s %d/%d tasks", marker, p.Seq, p.Name, done, len(p.Tasks))
}
