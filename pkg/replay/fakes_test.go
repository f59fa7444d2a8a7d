package replay

import (
	"context"
	"fmt"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/transport"
	"github.com/sui-sandbox/replay/pkg/types"
)

// fakeObjectSource serves VersionedObjects out of an in-memory map keyed by
// (id, version), returning transport.ErrNotFound on a miss.
type fakeObjectSource struct {
	objects map[address.Address]map[address.Version]*types.VersionedObject
}

func newFakeObjectSource() *fakeObjectSource {
	return &fakeObjectSource{objects: make(map[address.Address]map[address.Version]*types.VersionedObject)}
}

func (f *fakeObjectSource) put(obj *types.VersionedObject) {
	if f.objects[obj.ID] == nil {
		f.objects[obj.ID] = make(map[address.Version]*types.VersionedObject)
	}
	f.objects[obj.ID][obj.Version] = obj
}

func (f *fakeObjectSource) GetObject(ctx context.Context, id address.Address) (*types.VersionedObject, error) {
	var latest *types.VersionedObject
	for v, obj := range f.objects[id] {
		if latest == nil || latest.Version < v {
			latest = obj
		}
	}
	if latest == nil {
		return nil, transport.ErrNotFound
	}
	return latest, nil
}

func (f *fakeObjectSource) GetObjectAtVersion(ctx context.Context, id address.Address, version address.Version) (*types.VersionedObject, error) {
	if obj, ok := f.objects[id][version]; ok {
		return obj, nil
	}
	return nil, transport.ErrNotFound
}

func (f *fakeObjectSource) BatchGetObjects(ctx context.Context, refs []transport.ObjectRef, parallelism int) ([]*types.VersionedObject, error) {
	out := make([]*types.VersionedObject, 0, len(refs))
	for _, ref := range refs {
		obj, err := f.GetObjectAtVersion(ctx, ref.ID, ref.Version)
		if err == nil {
			out = append(out, obj)
		}
	}
	return out, nil
}

// fakePackageSource serves Packages out of an in-memory map keyed by the id
// the test registers them under (runtime-id, per how the Loader queues
// MoveCall package references).
type fakePackageSource struct {
	packages map[address.Address]*types.Package
}

func newFakePackageSource() *fakePackageSource {
	return &fakePackageSource{packages: make(map[address.Address]*types.Package)}
}

func (f *fakePackageSource) FetchPackage(ctx context.Context, id address.Address) (*types.Package, error) {
	if pkg, ok := f.packages[id]; ok {
		return pkg, nil
	}
	return nil, fmt.Errorf("fakePackageSource: no package registered for %s", id)
}

func (f *fakePackageSource) FetchPackageAtCheckpoint(ctx context.Context, id address.Address, checkpoint uint64) (*types.Package, error) {
	return f.FetchPackage(ctx, id)
}

func (f *fakePackageSource) GetPackageUpgrades(ctx context.Context, id address.Address) ([]transport.PackageUpgrade, error) {
	return nil, nil
}

// fakeDynamicFieldSource serves a fixed, test-scripted set of dynamic field
// entries per parent.
type fakeDynamicFieldSource struct {
	byParent map[address.Address][]transport.DynamicFieldInfo
}

func newFakeDynamicFieldSource() *fakeDynamicFieldSource {
	return &fakeDynamicFieldSource{byParent: make(map[address.Address][]transport.DynamicFieldInfo)}
}

func (f *fakeDynamicFieldSource) FetchDynamicFields(ctx context.Context, parent address.Address, limit int) ([]transport.DynamicFieldInfo, error) {
	return f.byParent[parent], nil
}

func (f *fakeDynamicFieldSource) FetchDynamicFieldByName(ctx context.Context, parent address.Address, keyType types.TypeTag, keyBytes []byte) (*transport.DynamicFieldInfo, error) {
	for _, info := range f.byParent[parent] {
		return &info, nil
	}
	return nil, transport.ErrNotFound
}

var (
	_ transport.ObjectSource       = (*fakeObjectSource)(nil)
	_ transport.PackageSource      = (*fakePackageSource)(nil)
	_ transport.DynamicFieldSource = (*fakeDynamicFieldSource)(nil)
)
