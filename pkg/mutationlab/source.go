package mutationlab

import (
	"context"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/statefile"
	"github.com/sui-sandbox/replay/pkg/transport"
	"github.com/sui-sandbox/replay/pkg/types"
)

// stateSource serves objects, packages, and dynamic fields exclusively out
// of a statefile.State snapshot, with no fallback to a live transport.
// Handing this to the engine as both the object and package source is what
// makes a baseline replay (§4.9 step 3) "no prefetch/fallback": anything
// missing from the (possibly broken) state comes back as
// transport.ErrNotFound, same as a real miss against an archival source
// with nothing behind it.
type stateSource struct {
	objects  map[address.Address]map[address.Version]*types.VersionedObject
	latest   map[address.Address]address.Version
	packages map[address.Address]*types.Package
	fields   map[address.Address][]transport.DynamicFieldInfo
}

// newStateSource indexes state for point lookups. It does not retain
// references into state's slices it mutates later; callers pass an
// already-finalized (possibly broken) snapshot.
func newStateSource(state *statefile.State) *stateSource {
	s := &stateSource{
		objects:  make(map[address.Address]map[address.Version]*types.VersionedObject),
		latest:   make(map[address.Address]address.Version),
		packages: make(map[address.Address]*types.Package),
		fields:   make(map[address.Address][]transport.DynamicFieldInfo),
	}
	for i := range state.Objects {
		obj := state.Objects[i]
		if s.objects[obj.ID] == nil {
			s.objects[obj.ID] = make(map[address.Version]*types.VersionedObject)
		}
		s.objects[obj.ID][obj.Version] = &obj
		if latest, ok := s.latest[obj.ID]; !ok || obj.Version > latest {
			s.latest[obj.ID] = obj.Version
		}
	}
	for i := range state.Packages {
		pkg := state.Packages[i]
		s.packages[pkg.StorageID] = &pkg
		s.packages[pkg.RuntimeID] = &pkg
	}
	for _, df := range state.DynamicFields {
		s.fields[df.ParentID] = append(s.fields[df.ParentID], transport.DynamicFieldInfo{
			ParentID: df.ParentID,
			ChildID:  df.ChildID,
			KeyBytes: df.KeyBytes,
		})
	}
	return s
}

func (s *stateSource) GetObject(ctx context.Context, id address.Address) (*types.VersionedObject, error) {
	v, ok := s.latest[id]
	if !ok {
		return nil, transport.ErrNotFound
	}
	return s.objects[id][v], nil
}

func (s *stateSource) GetObjectAtVersion(ctx context.Context, id address.Address, version address.Version) (*types.VersionedObject, error) {
	obj, ok := s.objects[id][version]
	if !ok {
		return nil, transport.ErrNotFound
	}
	return obj, nil
}

func (s *stateSource) BatchGetObjects(ctx context.Context, refs []transport.ObjectRef, parallelism int) ([]*types.VersionedObject, error) {
	out := make([]*types.VersionedObject, 0, len(refs))
	for _, ref := range refs {
		obj, err := s.GetObjectAtVersion(ctx, ref.ID, ref.Version)
		if err == nil {
			out = append(out, obj)
		}
	}
	return out, nil
}

func (s *stateSource) FetchPackage(ctx context.Context, id address.Address) (*types.Package, error) {
	pkg, ok := s.packages[id]
	if !ok {
		return nil, transport.ErrNotFound
	}
	return pkg, nil
}

func (s *stateSource) FetchPackageAtCheckpoint(ctx context.Context, id address.Address, checkpoint uint64) (*types.Package, error) {
	return s.FetchPackage(ctx, id)
}

func (s *stateSource) GetPackageUpgrades(ctx context.Context, id address.Address) ([]transport.PackageUpgrade, error) {
	return nil, nil
}

func (s *stateSource) FetchDynamicFields(ctx context.Context, parent address.Address, limit int) ([]transport.DynamicFieldInfo, error) {
	fields := s.fields[parent]
	if limit > 0 && len(fields) > limit {
		fields = fields[:limit]
	}
	return fields, nil
}

func (s *stateSource) FetchDynamicFieldByName(ctx context.Context, parent address.Address, keyType types.TypeTag, keyBytes []byte) (*transport.DynamicFieldInfo, error) {
	for _, df := range s.fields[parent] {
		if string(df.KeyBytes) == string(keyBytes) {
			cp := df
			return &cp, nil
		}
	}
	return nil, transport.ErrNotFound
}

var (
	_ transport.ObjectSource       = (*stateSource)(nil)
	_ transport.PackageSource      = (*stateSource)(nil)
	_ transport.DynamicFieldSource = (*stateSource)(nil)
)
