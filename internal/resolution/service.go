// Package resolution decides what happens when an employer about to be
// saved shares its CUIT with records already in the registry. Answers are
// remembered per (CUIT, site) so the operator is asked once.
package resolution

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/order-convert/internal/company"
	"github.com/sells-group/order-convert/pkg/cuit"
)

var (
	// ErrDecisionRequired is returned when a conflict needs an answer and
	// no Prompter is configured.
	ErrDecisionRequired = errors.New("resolution: decision required")
	// ErrPromptCancelled is returned by a Prompter when the operator backs
	// out. The save is skipped and nothing is remembered.
	ErrPromptCancelled = errors.New("resolution: prompt cancelled")
)

// Registry is the part of the company registry the service needs.
type Registry interface {
	SearchByCUIT(id string) []company.Record
	Save(rec company.Record, forceNew bool) (company.Record, error)
}

// ConflictKind tells the operator how the incoming record relates to the
// existing ones.
type ConflictKind int

const (
	// ConflictAdditionalSite: the CUIT is known but not at this site.
	ConflictAdditionalSite ConflictKind = iota + 1
	// ConflictDuplicate: a record with this CUIT and site already exists.
	ConflictDuplicate
)

func (k ConflictKind) String() string {
	switch k {
	case ConflictAdditionalSite:
		return "additional_site"
	case ConflictDuplicate:
		return "duplicate"
	}
	return "unknown"
}

// Conflict is what a Prompter is asked about.
type Conflict struct {
	Kind     ConflictKind
	Key      Key
	Incoming company.Record
	Existing []company.Record
}

// Has reports whether row is one of the existing records.
func (c Conflict) Has(row int) bool {
	for _, r := range c.Existing {
		if r.Row == row {
			return true
		}
	}
	return false
}

// Prompter asks the operator to resolve a conflict.
type Prompter interface {
	Decide(ctx context.Context, c Conflict) (Decision, error)
}

// Outcome is the final effect of Save.
type Outcome string

const (
	OutcomeSaved   Outcome = "saved"
	OutcomeSkipped Outcome = "skipped"
)

// Result describes what Save did.
type Result struct {
	Outcome  Outcome
	Record   company.Record // the stored record when Outcome is OutcomeSaved
	Conflict *Conflict      // nil when no conflict was involved
	Decision *Decision      // the decision applied, if any
	Replayed bool           // the decision came from the store
}

// Service routes saves through conflict detection.
type Service struct {
	registry Registry
	store    Store
	prompter Prompter
}

// NewService wires a Service. prompter may be nil for unattended runs; a
// conflict without a remembered decision then fails with ErrDecisionRequired.
func NewService(registry Registry, store Store, prompter Prompter) *Service {
	return &Service{registry: registry, store: store, prompter: prompter}
}

// Classify returns the conflict rec would raise, or nil when it can be saved
// directly: it already has a row id, has no CUIT digits, or its CUIT is new.
func (s *Service) Classify(rec company.Record) *Conflict {
	if rec.Row > 0 || cuit.Digits(rec.CUIT) == "" {
		return nil
	}
	existing := s.registry.SearchByCUIT(rec.CUIT)
	if len(existing) == 0 {
		return nil
	}

	c := &Conflict{Kind: ConflictAdditionalSite, Key: KeyFor(rec), Incoming: rec, Existing: existing}
	for _, e := range existing {
		if e.Site() == c.Key.Site {
			c.Kind = ConflictDuplicate
			break
		}
	}
	return c
}

// Save stores rec, consulting remembered decisions and the prompter when
// its CUIT is already registered.
func (s *Service) Save(ctx context.Context, rec company.Record) (Result, error) {
	rec.CUIT = cuit.Format(rec.CUIT)

	conflict := s.Classify(rec)
	if conflict == nil {
		saved, err := s.registry.Save(rec, false)
		if err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeSaved, Record: saved}, nil
	}

	if d, ok := s.store.Get(conflict.Key); ok {
		if d.Kind != KindUnify || conflict.Has(d.TargetRow) {
			res, err := s.apply(rec, conflict, d)
			res.Replayed = true
			return res, err
		}
		zap.L().Info("resolution: remembered unify target is gone, asking again",
			zap.String("key", conflict.Key.String()),
			zap.Int("target_row", d.TargetRow),
		)
	}

	if s.prompter == nil {
		return Result{Conflict: conflict}, eris.Wrapf(ErrDecisionRequired, "resolution: cuit %s", rec.CUIT)
	}

	d, err := s.prompter.Decide(ctx, *conflict)
	if errors.Is(err, ErrPromptCancelled) {
		return Result{Outcome: OutcomeSkipped, Conflict: conflict}, nil
	}
	if err != nil {
		return Result{Conflict: conflict}, eris.Wrap(err, "resolution: prompt")
	}
	if !d.Kind.Valid() {
		return Result{Conflict: conflict}, eris.Errorf("resolution: unknown decision kind %q", d.Kind)
	}
	if d.Kind == KindUnify && !conflict.Has(d.TargetRow) {
		return Result{Conflict: conflict}, eris.Errorf("resolution: unify target row %d does not share cuit %s", d.TargetRow, rec.CUIT)
	}

	res, err := s.apply(rec, conflict, d)
	if err != nil {
		return res, err
	}

	if err := s.store.Put(ctx, conflict.Key, d); err != nil {
		// The registry already changed; the memo is best-effort.
		zap.L().Warn("resolution: could not remember decision",
			zap.String("key", conflict.Key.String()),
			zap.Error(err),
		)
	}
	return res, nil
}

func (s *Service) apply(rec company.Record, c *Conflict, d Decision) (Result, error) {
	res := Result{Outcome: OutcomeSkipped, Conflict: c, Decision: &d}

	var (
		saved company.Record
		err   error
	)
	switch d.Kind {
	case KindIgnore:
		zap.L().Debug("resolution: ignored", zap.String("key", c.Key.String()))
		return res, nil
	case KindUnify:
		rec.Row = d.TargetRow
		saved, err = s.registry.Save(rec, false)
	case KindKeep:
		rec.Row = 0
		saved, err = s.registry.Save(rec, true)
	default:
		return res, eris.Errorf("resolution: unknown decision kind %q", d.Kind)
	}
	if err != nil {
		return res, err
	}

	res.Outcome = OutcomeSaved
	res.Record = saved
	return res, nil
}
