package sync

import (
	"context"

	"github.com/aretw0/fieldbook/pkg/core"
)

// MarkerKind is the reserved kind holding the per-user pull markers. One row
// per synchronized kind, keyed by the kind name.
const MarkerKind core.Kind = "sync_marker"

const markerField = "marker"

type markers struct {
	store core.Store
}

// load returns the marker stored for user and kind, or "" before the first
// successful pull.
func (m markers) load(ctx context.Context, user string, kind core.Kind) (string, error) {
	row, err := m.store.Get(ctx, MarkerKind, core.Key{Owner: user, ID: string(kind)})
	if err != nil {
		if core.IsNotFound(err) {
			return "", nil
		}
		return "", core.StorageFault("load marker", err)
	}
	s, _ := row.Fields[markerField].(string)
	return s, nil
}

func (m markers) save(ctx context.Context, user string, kind core.Kind, marker string) error {
	row := core.Row{
		ID:     string(kind),
		Owner:  user,
		Synced: true,
		Fields: core.Fields{markerField: marker},
	}
	return core.StorageFault("save marker", m.store.Put(ctx, MarkerKind, row))
}
