// Package budget tracks a session's consumption of the bounded attention
// budget and classifies risk into zones.
//
// The tracker is a pure state machine over one session: four token tiers
// (working/episodic/semantic capped, procedural links-only and uncapped)
// plus three hard operation counters (direct reads, large-file reads,
// delegations). The session zone is the max zone across the capped
// dimensions, and Red latches until BeginSession so a checkpoint decision
// cannot be undone by a later small operation.
package budget

import (
	"fmt"
	"sync"
)

// Zone classifies resource consumption risk.
type Zone string

const (
	// ZoneGreen means consumption is comfortably under every cap.
	ZoneGreen Zone = "green"
	// ZoneYellow means at least one dimension reached 75% of its cap.
	ZoneYellow Zone = "yellow"
	// ZoneRed means at least one dimension reached its cap. Red latches
	// for the remainder of the session.
	ZoneRed Zone = "red"
)

// severity orders zones for max() comparisons.
func (z Zone) severity() int {
	switch z {
	case ZoneRed:
		return 2
	case ZoneYellow:
		return 1
	default:
		return 0
	}
}

// MemoryTier names a token sub-budget.
type MemoryTier string

const (
	// TierWorking is the active-task context tier.
	TierWorking MemoryTier = "working"
	// TierEpisodic is the session-history tier.
	TierEpisodic MemoryTier = "episodic"
	// TierSemantic is the long-lived-knowledge tier.
	TierSemantic MemoryTier = "semantic"
	// TierProcedural carries links only and has no cap; it never
	// contributes to the zone.
	TierProcedural MemoryTier = "procedural"
)

// Valid returns true if the tier is a known value.
func (m MemoryTier) Valid() bool {
	switch m {
	case TierWorking, TierEpisodic, TierSemantic, TierProcedural:
		return true
	default:
		return false
	}
}

// UsageKind identifies a recorded usage event.
type UsageKind string

const (
	// KindDirectRead is a direct artifact read.
	KindDirectRead UsageKind = "direct_read"
	// KindLargeFileRead is a read of a large file.
	KindLargeFileRead UsageKind = "large_file_read"
	// KindDelegation is a dispatch to an external capability provider.
	KindDelegation UsageKind = "delegation"
	// KindTokens is token consumption attributed to a memory tier.
	KindTokens UsageKind = "tokens"
)

// Usage is one consumption event.
type Usage struct {
	Kind UsageKind
	// Tier and Tokens apply only to KindTokens.
	Tier   MemoryTier
	Tokens int
}

// DirectRead returns a direct-read usage event.
func DirectRead() Usage { return Usage{Kind: KindDirectRead} }

// LargeFileRead returns a large-file-read usage event.
func LargeFileRead() Usage { return Usage{Kind: KindLargeFileRead} }

// Delegation returns a delegation usage event.
func Delegation() Usage { return Usage{Kind: KindDelegation} }

// Tokens returns a token-consumption event attributed to a tier.
func Tokens(tier MemoryTier, n int) Usage {
	return Usage{Kind: KindTokens, Tier: tier, Tokens: n}
}

// Config holds the per-dimension caps and the yellow threshold ratio.
type Config struct {
	WorkingMax    int     `koanf:"working_max"`
	EpisodicMax   int     `koanf:"episodic_max"`
	SemanticMax   int     `koanf:"semantic_max"`
	DirectReadMax int     `koanf:"direct_read_max"`
	LargeReadMax  int     `koanf:"large_read_max"`
	DelegationMax int     `koanf:"delegation_max"`
	YellowRatio   float64 `koanf:"yellow_ratio"`
}

// DefaultConfig returns the standard caps (working 2000, episodic 1000,
// semantic 500 tokens; 20 direct reads, 5 large reads, 10 delegations)
// with yellow at 75%.
func DefaultConfig() Config {
	return Config{
		WorkingMax:    2000,
		EpisodicMax:   1000,
		SemanticMax:   500,
		DirectReadMax: 20,
		LargeReadMax:  5,
		DelegationMax: 10,
		YellowRatio:   0.75,
	}
}

// Snapshot is a read-only view of the session's consumption, used for
// status rendering and handoff categorization.
type Snapshot struct {
	Session     string
	Working     int
	Episodic    int
	Semantic    int
	Procedural  int
	DirectReads int
	LargeReads  int
	Delegations int
	Zone        Zone
}

// ErrBudgetExceeded is returned when a usage would push a hard counter
// past its cap. The usage is rejected before execution, not applied.
type ErrBudgetExceeded struct {
	Kind UsageKind
	Cap  int
}

func (e *ErrBudgetExceeded) Error() string {
	return fmt.Sprintf("budget exceeded: %s cap %d reached", e.Kind, e.Cap)
}

// Tracker accounts for one session's budget. Safe for concurrent use,
// though a session normally has a single writer.
type Tracker struct {
	cfg Config

	mu          sync.Mutex
	session     string
	working     int
	episodic    int
	semantic    int
	procedural  int
	directReads int
	largeReads  int
	delegations int
	latched     bool
}

// NewTracker creates a tracker with the given caps. Zero or negative
// caps fall back to defaults.
func NewTracker(cfg Config) *Tracker {
	def := DefaultConfig()
	if cfg.WorkingMax <= 0 {
		cfg.WorkingMax = def.WorkingMax
	}
	if cfg.EpisodicMax <= 0 {
		cfg.EpisodicMax = def.EpisodicMax
	}
	if cfg.SemanticMax <= 0 {
		cfg.SemanticMax = def.SemanticMax
	}
	if cfg.DirectReadMax <= 0 {
		cfg.DirectReadMax = def.DirectReadMax
	}
	if cfg.LargeReadMax <= 0 {
		cfg.LargeReadMax = def.LargeReadMax
	}
	if cfg.DelegationMax <= 0 {
		cfg.DelegationMax = def.DelegationMax
	}
	if cfg.YellowRatio <= 0 || cfg.YellowRatio >= 1 {
		cfg.YellowRatio = def.YellowRatio
	}
	return &Tracker{cfg: cfg}
}

// BeginSession resets every counter and clears the Red latch. Budget
// state never survives a handoff; only the zone that caused a checkpoint
// is recorded in the artifact.
func (t *Tracker) BeginSession(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session = sessionID
	t.working = 0
	t.episodic = 0
	t.semantic = 0
	t.procedural = 0
	t.directReads = 0
	t.largeReads = 0
	t.delegations = 0
	t.latched = false
}

// Record applies one usage event and returns the session zone.
//
// A usage that would push a hard counter (reads, delegations) past its
// cap is rejected with ErrBudgetExceeded and not applied. Token usage is
// always applied; crossing a token cap turns the zone Red rather than
// failing, since the tokens are already spent by the time they are
// reported.
func (t *Tracker) Record(u Usage) (Zone, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch u.Kind {
	case KindDirectRead:
		if t.directReads >= t.cfg.DirectReadMax {
			return t.zoneLocked(), &ErrBudgetExceeded{Kind: KindDirectRead, Cap: t.cfg.DirectReadMax}
		}
		t.directReads++
	case KindLargeFileRead:
		if t.largeReads >= t.cfg.LargeReadMax {
			return t.zoneLocked(), &ErrBudgetExceeded{Kind: KindLargeFileRead, Cap: t.cfg.LargeReadMax}
		}
		t.largeReads++
	case KindDelegation:
		if t.delegations >= t.cfg.DelegationMax {
			return t.zoneLocked(), &ErrBudgetExceeded{Kind: KindDelegation, Cap: t.cfg.DelegationMax}
		}
		t.delegations++
	case KindTokens:
		if u.Tokens < 0 {
			return t.zoneLocked(), fmt.Errorf("negative token usage %d", u.Tokens)
		}
		switch u.Tier {
		case TierWorking:
			t.working += u.Tokens
		case TierEpisodic:
			t.episodic += u.Tokens
		case TierSemantic:
			t.semantic += u.Tokens
		case TierProcedural:
			t.procedural += u.Tokens
		default:
			return t.zoneLocked(), fmt.Errorf("unknown memory tier %q", u.Tier)
		}
	default:
		return t.zoneLocked(), fmt.Errorf("unknown usage kind %q", u.Kind)
	}

	z := t.zoneLocked()
	if z == ZoneRed {
		t.latched = true
	}
	return z, nil
}

// Zone returns the current session zone without recording anything.
func (t *Tracker) Zone() Zone {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.zoneLocked()
}

// Snapshot returns the current per-dimension consumption.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Session:     t.session,
		Working:     t.working,
		Episodic:    t.episodic,
		Semantic:    t.semantic,
		Procedural:  t.procedural,
		DirectReads: t.directReads,
		LargeReads:  t.largeReads,
		Delegations: t.delegations,
		Zone:        t.zoneLocked(),
	}
}

func (t *Tracker) zoneLocked() Zone {
	if t.latched {
		return ZoneRed
	}
	worst := ZoneGreen
	dims := []struct{ used, limit int }{
		{t.working, t.cfg.WorkingMax},
		{t.episodic, t.cfg.EpisodicMax},
		{t.semantic, t.cfg.SemanticMax},
		{t.directReads, t.cfg.DirectReadMax},
		{t.largeReads, t.cfg.LargeReadMax},
		{t.delegations, t.cfg.DelegationMax},
	}
	for _, d := range dims {
		z := zoneFor(d.used, d.limit, t.cfg.YellowRatio)
		if z.severity() > worst.severity() {
			worst = z
		}
	}
	return worst
}

func zoneFor(used, limit int, yellowRatio float64) Zone {
	if used >= limit {
		return ZoneRed
	}
	if float64(used) >= yellowRatio*float64(limit) {
		return ZoneYellow
	}
	return ZoneGreen
}
