// Package dashboard filters the fact tables and derives the engagement
// metrics shown on the analytics dashboard.
package dashboard

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/capstone-impacta/engagement-cli/internal/model"
)

// Dataset is a full read of both fact tables.
type Dataset struct {
	Faculty  []model.FactRow
	Network  []model.FactRow
	LoadedAt time.Time
}

// Empty reports whether either table has no rows.
func (d *Dataset) Empty() bool {
	return d == nil || len(d.Faculty) == 0 || len(d.Network) == 0
}

// Source loads the dataset.
type Source interface {
	Load(ctx context.Context) (*Dataset, error)
}

// FactLoader reads one fact table. store.FactStore satisfies it.
type FactLoader interface {
	LoadFacts(ctx context.Context, t model.Table) ([]model.FactRow, error)
}

// StoreSource reads both tables from a FactLoader on every call.
type StoreSource struct {
	facts FactLoader
}

// NewStoreSource creates a Source over facts.
func NewStoreSource(facts FactLoader) *StoreSource {
	return &StoreSource{facts: facts}
}

func (s *StoreSource) Load(ctx context.Context) (*Dataset, error) {
	fac, err := s.facts.LoadFacts(ctx, model.FacultyTable)
	if err != nil {
		return nil, eris.Wrap(err, "dashboard: load faculty table")
	}
	net, err := s.facts.LoadFacts(ctx, model.NetworkTable)
	if err != nil {
		return nil, eris.Wrap(err, "dashboard: load network table")
	}
	return &Dataset{Faculty: fac, Network: net, LoadedAt: time.Now().UTC()}, nil
}
