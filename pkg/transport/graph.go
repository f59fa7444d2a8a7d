package transport

import (
	"context"
	"fmt"

	"github.com/sui-sandbox/replay/pkg/address"
	"github.com/sui-sandbox/replay/pkg/config"
	"github.com/sui-sandbox/replay/pkg/log"
	"github.com/sui-sandbox/replay/pkg/types"
)

// GraphAdapter queries the chain's GraphQL-style API for package bytecode,
// upgrade chains, and dynamic-field enumeration/lookup. The upstream
// service is a plain JSON-over-HTTP endpoint rather than a generated
// GraphQL client (§4.1), so GraphAdapter is built on the same httpClient
// as the other two adapters, shaped around cursor-paginated connections.
type GraphAdapter struct {
	http *httpClient
}

// NewGraphAdapter constructs a GraphAdapter against endpoint.
func NewGraphAdapter(endpoint string, cfg config.TransportConfig) *GraphAdapter {
	return &GraphAdapter{
		http: newHTTPClient("graph", endpoint, cfg, log.WithComponent("transport.graph")),
	}
}

type moduleWire struct {
	Name  string `json:"name"`
	Bytes []byte `json:"bytes"`
}

type packageConnectionWire struct {
	Nodes    []moduleWire `json:"nodes"`
	PageInfo PageInfo     `json:"page_info"`
}

type packageWire struct {
	StorageID string                `json:"storage_id"`
	RuntimeID string                `json:"runtime_id"`
	Version   uint64                `json:"version"`
	Modules   packageConnectionWire `json:"modules"`
	Linkage   map[string]string     `json:"linkage"`
}

func (w packageWire) decode() (*types.Package, error) {
	storageID, err := address.Parse(w.StorageID)
	if err != nil {
		return nil, fmt.Errorf("graph: package storage id: %w", err)
	}
	runtimeID, err := address.Parse(w.RuntimeID)
	if err != nil {
		return nil, fmt.Errorf("graph: package runtime id: %w", err)
	}

	modules := make([]types.Module, 0, len(w.Modules.Nodes))
	for _, m := range w.Modules.Nodes {
		modules = append(modules, types.Module{Name: m.Name, Bytes: m.Bytes})
	}

	linkage := make(map[address.Address]address.Address, len(w.Linkage))
	for runtimeIDStr, storageIDStr := range w.Linkage {
		depRuntimeID, err := address.Parse(runtimeIDStr)
		if err != nil {
			return nil, fmt.Errorf("graph: linkage runtime id: %w", err)
		}
		depStorageID, err := address.Parse(storageIDStr)
		if err != nil {
			return nil, fmt.Errorf("graph: linkage storage id: %w", err)
		}
		linkage[depRuntimeID] = depStorageID
	}

	return &types.Package{
		StorageID: storageID,
		RuntimeID: runtimeID,
		Version:   address.Version(w.Version),
		Modules:   modules,
		Linkage:   linkage,
	}, nil
}

// FetchPackage fetches the latest known version of package id, paginating
// through its modules connection (capped at MaxPageSize per page, §8).
func (g *GraphAdapter) FetchPackage(ctx context.Context, id address.Address) (*types.Package, error) {
	return g.fetchPackage(ctx, id, nil)
}

// FetchPackageAtCheckpoint fetches package id as it existed at checkpoint,
// for callers resolving state at a historical snapshot rather than HEAD.
func (g *GraphAdapter) FetchPackageAtCheckpoint(ctx context.Context, id address.Address, checkpoint uint64) (*types.Package, error) {
	return g.fetchPackage(ctx, id, &checkpoint)
}

func (g *GraphAdapter) fetchPackage(ctx context.Context, id address.Address, checkpoint *uint64) (*types.Package, error) {
	var head packageWire
	fetchModules := func(ctx context.Context, cursor string, pageSize int) ([]moduleWire, PageInfo, error) {
		req := struct {
			PackageID  string  `json:"package_id"`
			Checkpoint *uint64 `json:"checkpoint,omitempty"`
			Cursor     string  `json:"cursor,omitempty"`
			PageSize   int     `json:"page_size"`
		}{PackageID: id.String(), Checkpoint: checkpoint, Cursor: cursor, PageSize: pageSize}

		var resp packageWire
		if err := g.http.postJSON(ctx, "/package", req, &resp); err != nil {
			return nil, PageInfo{}, fmt.Errorf("graph: fetch package %s: %w", id, err)
		}
		if cursor == "" {
			head = resp
		}
		return resp.Modules.Nodes, resp.Modules.PageInfo, nil
	}

	modules, err := Paginate(ctx, 0, fetchModules)
	if err != nil {
		return nil, err
	}
	head.Modules.Nodes = modules
	return head.decode()
}

// GetPackageUpgrades returns the upgrade chain for the package whose
// original id is id, in ascending version order.
func (g *GraphAdapter) GetPackageUpgrades(ctx context.Context, id address.Address) ([]PackageUpgrade, error) {
	req := struct {
		OriginalID string `json:"original_id"`
	}{OriginalID: id.String()}

	var resp struct {
		Upgrades []struct {
			StorageID string `json:"storage_id"`
			Version   uint64 `json:"version"`
		} `json:"upgrades"`
	}
	if err := g.http.postJSON(ctx, "/package_upgrades", req, &resp); err != nil {
		return nil, fmt.Errorf("graph: get package upgrades %s: %w", id, err)
	}

	out := make([]PackageUpgrade, 0, len(resp.Upgrades))
	for _, u := range resp.Upgrades {
		storageID, err := address.Parse(u.StorageID)
		if err != nil {
			return nil, fmt.Errorf("graph: package upgrade storage id: %w", err)
		}
		out = append(out, PackageUpgrade{StorageID: storageID, Version: address.Version(u.Version)})
	}
	return out, nil
}

type dynamicFieldWire struct {
	ParentID string `json:"parent_id"`
	ChildID  string `json:"child_id"`
	Version  uint64 `json:"version"`
	KeyType  string `json:"key_type"`
	KeyBytes []byte `json:"key_bytes"`
}

func (w dynamicFieldWire) decode() (DynamicFieldInfo, error) {
	parent, err := address.Parse(w.ParentID)
	if err != nil {
		return DynamicFieldInfo{}, fmt.Errorf("graph: dynamic field parent id: %w", err)
	}
	child, err := address.Parse(w.ChildID)
	if err != nil {
		return DynamicFieldInfo{}, fmt.Errorf("graph: dynamic field child id: %w", err)
	}
	return DynamicFieldInfo{
		ParentID: parent,
		ChildID:  child,
		Version:  address.Version(w.Version),
		KeyType:  parseTypeStringBestEffort(w.KeyType),
		KeyBytes: w.KeyBytes,
	}, nil
}

// FetchDynamicFields enumerates up to limit dynamic fields owned by
// parent (0 means unlimited, still capped at MaxPageSize per request).
func (g *GraphAdapter) FetchDynamicFields(ctx context.Context, parent address.Address, limit int) ([]DynamicFieldInfo, error) {
	fetch := func(ctx context.Context, cursor string, pageSize int) ([]dynamicFieldWire, PageInfo, error) {
		req := struct {
			ParentID string `json:"parent_id"`
			Cursor   string `json:"cursor,omitempty"`
			PageSize int    `json:"page_size"`
		}{ParentID: parent.String(), Cursor: cursor, PageSize: pageSize}

		var resp struct {
			Nodes    []dynamicFieldWire `json:"nodes"`
			PageInfo PageInfo           `json:"page_info"`
		}
		if err := g.http.postJSON(ctx, "/dynamic_fields", req, &resp); err != nil {
			return nil, PageInfo{}, fmt.Errorf("graph: fetch dynamic fields of %s: %w", parent, err)
		}
		return resp.Nodes, resp.PageInfo, nil
	}

	wires, err := Paginate(ctx, limit, fetch)
	if err != nil {
		return nil, err
	}
	out := make([]DynamicFieldInfo, 0, len(wires))
	for _, w := range wires {
		info, err := w.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// FetchDynamicFieldByName looks up a single dynamic field of parent by its
// exact key type and BCS-encoded key bytes, returning nil (no error) when
// no such field exists.
func (g *GraphAdapter) FetchDynamicFieldByName(ctx context.Context, parent address.Address, keyType types.TypeTag, keyBytes []byte) (*DynamicFieldInfo, error) {
	req := struct {
		ParentID string `json:"parent_id"`
		KeyType  string `json:"key_type"`
		KeyBytes []byte `json:"key_bytes"`
	}{ParentID: parent.String(), KeyType: keyType.String(), KeyBytes: keyBytes}

	var resp struct {
		Found bool             `json:"found"`
		Field dynamicFieldWire `json:"field"`
	}
	if err := g.http.postJSON(ctx, "/dynamic_field_by_name", req, &resp); err != nil {
		return nil, fmt.Errorf("graph: fetch dynamic field by name of %s: %w", parent, err)
	}
	if !resp.Found {
		return nil, nil
	}
	info, err := resp.Field.decode()
	if err != nil {
		return nil, err
	}
	return &info, nil
}

var (
	_ PackageSource      = (*GraphAdapter)(nil)
	_ DynamicFieldSource = (*GraphAdapter)(nil)
)
