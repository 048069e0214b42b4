package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// errEmptyIndex is reported when the loaded index holds no chunks.
var errEmptyIndex = errors.New("index holds no chunks")

// Sizer reports the number of chunks in an index.
type Sizer interface {
	Len() int
}

// IndexPinger reports ready once the local index is loaded and non-empty.
type IndexPinger struct {
	index Sizer
}

// NewIndexPinger constructs an IndexPinger over idx.
func NewIndexPinger(idx Sizer) *IndexPinger {
	return &IndexPinger{index: idx}
}

// Name returns the dependency label used in readiness responses.
func (p *IndexPinger) Name() string { return "index" }

// Ping fails when the index is missing or empty.
func (p *IndexPinger) Ping(_ context.Context) error {
	if p.index == nil {
		return errors.New("index not loaded")
	}
	if p.index.Len() == 0 {
		return errEmptyIndex
	}
	return nil
}
