package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/reflection"
)

// Config configures the registry service.
type Config struct {
	// RegisterThreshold is the minimum score to register (default: 75).
	RegisterThreshold int `koanf:"register_threshold"`

	// PromoteThreshold is the minimum score to promote to a standalone
	// skill document (default: 90).
	PromoteThreshold int `koanf:"promote_threshold"`

	// SkillsDir is where promoted skill documents are written.
	SkillsDir string `koanf:"skills_dir"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RegisterThreshold: 75,
		PromoteThreshold:  90,
		SkillsDir:         "skills",
	}
}

// Service manages pattern ingestion, scoring, and promotion.
type Service struct {
	cfg    *Config
	store  Store
	scorer *Scorer
	logger *zap.Logger
}

// NewService creates a registry service.
func NewService(cfg *Config, store Store, logger *zap.Logger) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if store == nil {
		return nil, errors.New("pattern store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PromoteThreshold < cfg.RegisterThreshold {
		return nil, fmt.Errorf("promote threshold %d below register threshold %d",
			cfg.PromoteThreshold, cfg.RegisterThreshold)
	}
	return &Service{
		cfg:    cfg,
		store:  store,
		scorer: NewScorer(),
		logger: logger,
	}, nil
}

// Ingest turns a reflection entry's candidates into stored candidate
// patterns with initial scores. Returns the created patterns in
// candidate order.
func (s *Service) Ingest(ctx context.Context, entry reflection.Entry) ([]Pattern, error) {
	if entry.SpecID == "" {
		return nil, errors.New("reflection entry requires a spec id")
	}

	existing, err := s.store.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list existing patterns: %w", err)
	}
	descriptions := make([]string, 0, len(existing))
	for _, p := range existing {
		descriptions = append(descriptions, p.Description)
	}

	var created []Pattern
	for _, c := range entry.Candidates {
		if strings.TrimSpace(c.Description) == "" {
			continue
		}
		p := Pattern{
			ID:          uuid.NewString(),
			SpecID:      entry.SpecID,
			Description: c.Description,
			Tags:        c.Tags,
			Scores:      s.scorer.Score(c, entry, descriptions),
			Status:      StatusCandidate,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.store.Insert(ctx, p); err != nil {
			return created, fmt.Errorf("insert pattern: %w", err)
		}
		descriptions = append(descriptions, p.Description)
		created = append(created, p)
		s.logger.Info("pattern candidate ingested",
			zap.String("pattern_id", p.ID),
			zap.String("spec_id", p.SpecID),
			zap.Int("score", p.Scores.Total()))
	}
	return created, nil
}

// Score validates the category breakdown and returns the total (0..102).
func (s *Service) Score(p Pattern) (int, error) {
	if err := p.Scores.Validate(); err != nil {
		return 0, err
	}
	return p.Scores.Total(), nil
}

// Promote advances a pattern by id.
//
// Score >= PromoteThreshold promotes the pattern and emits a standalone
// skill document; score >= RegisterThreshold registers it; anything
// lower fails with ErrBelowPromotionThreshold rather than silently
// registering a low-confidence pattern. Promotion is monotonic in score:
// any pattern scoring at least as high as one that promoted will promote
// too.
func (s *Service) Promote(ctx context.Context, id string) (Pattern, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return Pattern{}, err
	}
	if p.Status == StatusPromoted {
		return Pattern{}, ErrPatternImmutable
	}

	total, err := s.Score(p)
	if err != nil {
		return Pattern{}, err
	}
	if total < s.cfg.RegisterThreshold {
		return Pattern{}, fmt.Errorf("pattern %s scored %d, need %d: %w",
			id, total, s.cfg.RegisterThreshold, ErrBelowPromotionThreshold)
	}

	if total < s.cfg.PromoteThreshold {
		if err := s.store.SetStatus(ctx, id, StatusRegistered, nil); err != nil {
			return Pattern{}, err
		}
		p.Status = StatusRegistered
		s.logger.Info("pattern registered", zap.String("pattern_id", id), zap.Int("score", total))
		return p, nil
	}

	now := time.Now().UTC()
	if err := s.writeSkill(p, total); err != nil {
		return Pattern{}, fmt.Errorf("emit skill document: %w", err)
	}
	if err := s.store.SetStatus(ctx, id, StatusPromoted, &now); err != nil {
		return Pattern{}, err
	}
	p.Status = StatusPromoted
	p.PromotedAt = &now
	s.logger.Info("pattern promoted", zap.String("pattern_id", id), zap.Int("score", total))
	return p, nil
}

// Reject marks a pattern rejected.
func (s *Service) Reject(ctx context.Context, id string) error {
	return s.store.SetStatus(ctx, id, StatusRejected, nil)
}

// List returns patterns, optionally filtered by status ("" means all).
func (s *Service) List(ctx context.Context, status PatternStatus) ([]Pattern, error) {
	return s.store.List(ctx, status)
}

// Get retrieves one pattern.
func (s *Service) Get(ctx context.Context, id string) (Pattern, error) {
	return s.store.Get(ctx, id)
}

// Close releases the backing store.
func (s *Service) Close() error {
	return s.store.Close()
}

// SkillPath returns the skill document path for a pattern id.
func (s *Service) SkillPath(id string) string {
	return filepath.Join(s.cfg.SkillsDir, id+".md")
}

// writeSkill renders the standalone skill document for a promoted pattern.
func (s *Service) writeSkill(p Pattern, total int) error {
	if err := os.MkdirAll(s.cfg.SkillsDir, 0o755); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Skill: %s\n\n", firstLine(p.Description))
	fmt.Fprintf(&b, "- Pattern: %s\n", p.ID)
	fmt.Fprintf(&b, "- Source spec: %s\n", p.SpecID)
	fmt.Fprintf(&b, "- Score: %d/%d\n", total, MaxScore)
	if len(p.Tags) > 0 {
		fmt.Fprintf(&b, "- Tags: %s\n", strings.Join(p.Tags, ", "))
	}
	fmt.Fprintf(&b, "\n## Technique\n\n%s\n", p.Description)

	return os.WriteFile(s.SkillPath(p.ID), []byte(b.String()), 0o644)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
