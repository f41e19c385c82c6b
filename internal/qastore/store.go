// Package qastore gives a single logical view over two independent Q&A
// backends: a durable network store (Postgres) and an always-local store
// (SQLite). Either may be down; the store degrades instead of failing, and
// only "no backend at all" is a construction error.
package qastore

import (
	"context"
	"errors"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/cultiflow/voicedesk/internal/matcher"
	"github.com/cultiflow/voicedesk/internal/models"
)

var ErrNoBackend = errors.New("qastore: no usable backend")

// Hit is a successful lookup: the pair, the tier that matched it, and the
// backend it came from.
type Hit struct {
	Pair    models.QAPair
	Tier    matcher.Tier
	Backend string
}

type Store struct {
	primary   Backend
	secondary Backend
	orgToken  string
	log       *logrus.Logger
}

// New builds the dual-backend store. Either backend may be nil (its init
// failed upstream); both nil is the one hard error.
func New(primary, secondary Backend, orgToken string, log *logrus.Logger) (*Store, error) {
	if primary == nil && secondary == nil {
		return nil, ErrNoBackend
	}
	if log == nil {
		log = logrus.New()
	}
	if primary == nil {
		log.Warn("qa store: primary backend unavailable, running on secondary only")
	}
	if secondary == nil {
		log.Warn("qa store: secondary backend unavailable, running on primary only")
	}
	return &Store{primary: primary, secondary: secondary, orgToken: orgToken, log: log}, nil
}

func (s *Store) backends() []Backend {
	out := make([]Backend, 0, 2)
	if s.primary != nil {
		out = append(out, s.primary)
	}
	if s.secondary != nil {
		out = append(out, s.secondary)
	}
	return out
}

// Find runs all three matching tiers against the primary's full pair set for
// the language, then repeats against the secondary if the primary missed or
// failed. On a hit the usage counter is bumped on the matched backend only;
// the other backend's counters drift and are reconciled by ordinary upserts,
// not by Find.
func (s *Store) Find(ctx context.Context, question, language string) (*Hit, error) {
	if matcher.Normalize(question) == "" {
		return nil, nil
	}
	for _, b := range s.backends() {
		pairs, err := b.ListByLanguage(ctx, language)
		if err != nil {
			s.log.WithError(err).WithField("backend", b.Name()).Warn("qa store: find failed, trying next backend")
			continue
		}
		pair, tier, ok := matcher.Match(question, pairs, s.orgToken)
		if !ok {
			continue
		}
		if err := b.TouchUsage(ctx, pair.ID); err != nil {
			s.log.WithError(err).WithField("backend", b.Name()).Warn("qa store: usage update failed")
		} else {
			pair.UsageCount++
		}
		return &Hit{Pair: *pair, Tier: tier, Backend: b.Name()}, nil
	}
	return nil, nil
}

// Upsert writes to both backends unconditionally; each side's failure is
// logged and does not abort the other write. The returned id belongs to the
// primary if its write succeeded, else the secondary, else 0. It is only
// valid against the backend that issued it.
func (s *Store) Upsert(ctx context.Context, question, answer, language string) (uint, error) {
	var id uint
	wrote := false
	if s.primary != nil {
		pid, err := s.primary.Upsert(ctx, question, answer, language)
		if err != nil {
			s.log.WithError(err).WithField("backend", s.primary.Name()).Warn("qa store: upsert failed")
		} else {
			id, wrote = pid, true
		}
	}
	if s.secondary != nil {
		sid, err := s.secondary.Upsert(ctx, question, answer, language)
		if err != nil {
			s.log.WithError(err).WithField("backend", s.secondary.Name()).Warn("qa store: upsert failed")
		} else if !wrote {
			id, wrote = sid, true
		}
	}
	if !wrote {
		return 0, ErrNoBackend
	}
	return id, nil
}

// Get tries the primary, then the secondary, by raw id. Ids are backend-local:
// a get after an upsert is only guaranteed through the id that upsert returned.
func (s *Store) Get(ctx context.Context, id uint) (*models.QAPair, error) {
	for _, b := range s.backends() {
		row, err := b.Get(ctx, id)
		if err != nil {
			s.log.WithError(err).WithField("backend", b.Name()).Warn("qa store: get failed")
			continue
		}
		if row != nil {
			return row, nil
		}
	}
	return nil, nil
}

// List merges primary results then secondary results, deduplicating by
// (normalized question, language) so a pair present in both backends is
// reported once with the primary's copy winning. Ordering is usage_count
// desc then last_used desc (nulls last); the limit applies after the merge.
func (s *Store) List(ctx context.Context, language string, limit int) ([]models.QAPair, error) {
	seen := make(map[[2]string]struct{})
	var out []models.QAPair
	for _, b := range s.backends() {
		rows, err := b.List(ctx, language, 0)
		if err != nil {
			s.log.WithError(err).WithField("backend", b.Name()).Warn("qa store: list failed")
			continue
		}
		for _, r := range rows {
			key := [2]string{matcher.Normalize(r.QuestionText), r.Language}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, r)
		}
	}
	sortPairs(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes by id on both backends independently and reports true when
// at least one row actually went away. Because ids are backend-local a delete
// may silently no-op on the other backend.
func (s *Store) Delete(ctx context.Context, id uint) (bool, error) {
	deleted := false
	for _, b := range s.backends() {
		ok, err := b.Delete(ctx, id)
		if err != nil {
			s.log.WithError(err).WithField("backend", b.Name()).Warn("qa store: delete failed")
			continue
		}
		deleted = deleted || ok
	}
	return deleted, nil
}

// usage desc, then last_used desc with nulls last
func sortPairs(pairs []models.QAPair) {
	sort.SliceStable(pairs, func(i, j int) bool {
		return lessPair(pairs[i], pairs[j])
	})
}

func lessPair(a, b models.QAPair) bool {
	if a.UsageCount != b.UsageCount {
		return a.UsageCount > b.UsageCount
	}
	switch {
	case a.LastUsed == nil && b.LastUsed == nil:
		return false
	case b.LastUsed == nil:
		return true
	case a.LastUsed == nil:
		return false
	default:
		return a.LastUsed.After(*b.LastUsed)
	}
}
