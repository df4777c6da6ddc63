package procedure

import (
	"context"

	"github.com/orneryd/deltagraph/pkg/graphstore"
	"github.com/orneryd/deltagraph/pkg/record"
)

// RegisterBuiltins registers the one example procedure spec §6 calls for
// ("implements nothing behind [the procedure contract] beyond ... one CALL
// example"): db.labels, which yields every label the graph store has ever
// registered, one record per label. It ignores args and takes nothing from
// the store beyond its label registry, so it needs no argument validation
// beyond what the registry contract already enforces on the caller's side.
func RegisterBuiltins(r *Registry) error {
	return r.Register(&Procedure{
		Name:   "db.labels",
		Args:   nil,
		Yields: []string{"label"},
		Call: func(ctx context.Context, store *graphstore.Store, args []record.Value) ([]*record.Record, error) {
			names := store.Labels().Names()
			out := make([]*record.Record, len(names))
			for i, name := range names {
				rec := record.New(1)
				rec.SetScalar(0, name)
				out[i] = rec
			}
			return out, nil
		},
	})
}
