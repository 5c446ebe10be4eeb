package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	EnrollmentCount int       `json:"enrollment_count"`
	BuildTime       time.Time `json:"build_time"`
	Version         int       `json:"version"`
}

const hnswMetadataVersion = 1

// HNSWIndex wraps an HNSW graph over enrollment embeddings, keyed by user ID.
// It accelerates 1:N identification; the backing store stays authoritative.
// A single graph serves both fresh builds and graphs loaded from disk, so
// entries added after a Load are searchable like any other.
type HNSWIndex struct {
	graph      *hnsw.Graph[string]
	idToRecord map[string]*Enrollment // Maps user ID to enrollment
	mu         sync.RWMutex
	path       string // Path to save/load index
}

// NewHNSWIndex creates a new empty HNSW index.
func NewHNSWIndex() *HNSWIndex {
	return &HNSWIndex{
		idToRecord: make(map[string]*Enrollment),
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// BuildFromEnrollments builds the index from scratch.
func (h *HNSWIndex) BuildFromEnrollments(enrollments []Enrollment) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(enrollments) == 0 {
		h.graph = nil
		h.idToRecord = make(map[string]*Enrollment)
		return nil
	}

	g := newGraph()
	h.idToRecord = make(map[string]*Enrollment, len(enrollments))

	for i := range enrollments {
		e := &enrollments[i]
		if len(e.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(e.UserID, e.Embedding))
		h.idToRecord[e.UserID] = e
	}

	h.graph = g
	return nil
}

// Search finds the k nearest enrollments to the query embedding.
// Returns user IDs and their cosine distances, nearest first.
func (h *HNSWIndex) Search(query []float32, k int) ([]string, []float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		return nil, nil, errors.New("index not initialized")
	}

	// Over-fetch so deleted entries can be filtered out.
	neighbors := h.graph.Search(query, k*HNSWSearchMultiplier)

	ids := make([]string, 0, k)
	distances := make([]float64, 0, k)
	for _, n := range neighbors {
		if _, ok := h.idToRecord[n.Key]; !ok {
			continue // deleted
		}
		ids = append(ids, n.Key)
		distances = append(distances, CosineDistance(query, n.Value))
		if len(ids) == k {
			break
		}
	}

	return ids, distances, nil
}

// Get returns the enrollment for a user ID, or nil.
func (h *HNSWIndex) Get(userID string) *Enrollment {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.idToRecord[userID]
}

// Add inserts or replaces a single enrollment in the index.
func (h *HNSWIndex) Add(e *Enrollment) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(e.Embedding) == 0 {
		return
	}

	if h.graph == nil {
		h.graph = newGraph()
	}

	// Graph.Add replaces the node if the key already exists.
	h.graph.Add(hnsw.MakeNode(e.UserID, e.Embedding))
	h.idToRecord[e.UserID] = e
}

// Delete removes an enrollment from the index. HNSW graphs do not support
// true deletion, so the record is dropped from the lookup map and filtered
// out of search results.
func (h *HNSWIndex) Delete(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.idToRecord, userID)
}

// Count returns the number of live entries in the index.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToRecord)
}

// SetPath sets the path for saving/loading the index.
func (h *HNSWIndex) SetPath(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.path = path
}

// Save persists the index and its metadata to disk. A no-op without a path.
func (h *HNSWIndex) Save() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.path == "" {
		return nil
	}

	if h.graph == nil {
		// Remove stale files if the index is empty (best-effort cleanup).
		_ = os.Remove(h.path)
		_ = os.Remove(h.path + ".meta")
		return nil
	}

	f, err := os.Create(h.path)
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	defer f.Close()

	if err := h.graph.Export(f); err != nil {
		return fmt.Errorf("exporting HNSW graph: %w", err)
	}

	// The count reflects the exported graph, tombstones included, so a
	// store whose live rows diverge from it triggers a rebuild on load.
	metadata := HNSWIndexMetadata{
		EnrollmentCount: h.graph.Len(),
		BuildTime:       time.Now(),
		Version:         hnswMetadataVersion,
	}
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(h.path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// Load loads a previously saved graph from disk. The idToRecord map is
// rebuilt separately from the backing store via RebuildFromEnrollments.
func (h *HNSWIndex) Load(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.path = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // No index file, will build from enrollments
	}

	saved, err := hnsw.LoadSavedGraph[string](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	// Adopt the loaded graph as the live one so later Adds land in the
	// same structure Search consults.
	h.graph = saved.Graph
	return nil
}

// LoadMetadata reads the sidecar metadata for a saved index file.
func LoadMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}

// RebuildFromEnrollments repopulates the lookup map after loading a graph
// from disk.
func (h *HNSWIndex) RebuildFromEnrollments(enrollments []Enrollment) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.idToRecord = make(map[string]*Enrollment, len(enrollments))
	for i := range enrollments {
		h.idToRecord[enrollments[i].UserID] = &enrollments[i]
	}
}

// IsEmpty returns true if no graph data is loaded.
func (h *HNSWIndex) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph == nil || h.graph.Len() == 0
}
