package transport

import (
	"context"
	"fmt"

	"github.com/sui-sandbox/replay/pkg/config"
	"github.com/sui-sandbox/replay/pkg/log"
)

// ArchivalAdapter fetches checkpoint blobs by sequence number. It is the
// primary historical-replay data source: the blob bundles the exact
// transaction, input-object, and output-object bytes for every
// transaction in the checkpoint, so no further fetch is needed when it is
// complete. No authentication is required (§4.1).
type ArchivalAdapter struct {
	http *httpClient
}

// NewArchivalAdapter constructs an ArchivalAdapter against endpoint using
// cfg's timeouts and retry budget.
func NewArchivalAdapter(endpoint string, cfg config.TransportConfig) *ArchivalAdapter {
	return &ArchivalAdapter{
		http: newHTTPClient("archival", endpoint, cfg, log.WithComponent("transport.archival")),
	}
}

// LatestCheckpoint returns the highest checkpoint sequence number the
// archive has bundled.
func (a *ArchivalAdapter) LatestCheckpoint(ctx context.Context) (uint64, error) {
	var resp struct {
		Sequence uint64 `json:"sequence"`
	}
	if err := a.http.postJSON(ctx, "/latest_checkpoint", struct{}{}, &resp); err != nil {
		return 0, fmt.Errorf("archival: latest checkpoint: %w", err)
	}
	return resp.Sequence, nil
}

// GetCheckpoint fetches the full checkpoint blob for seq.
func (a *ArchivalAdapter) GetCheckpoint(ctx context.Context, seq uint64) (*CheckpointBlob, error) {
	req := struct {
		Sequence uint64 `json:"sequence"`
	}{Sequence: seq}

	var blob CheckpointBlob
	if err := a.http.postJSON(ctx, "/checkpoint", req, &blob); err != nil {
		return nil, fmt.Errorf("archival: get checkpoint %d: %w", seq, err)
	}
	return &blob, nil
}

var _ CheckpointSource = (*ArchivalAdapter)(nil)
