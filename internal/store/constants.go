package store

// HNSW index parameters for 512-dim face embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWSearchMultiplier is the factor to request more candidates from
	// HNSW than asked for, so enough survive the deleted-entry filter.
	HNSWSearchMultiplier = 3
)
