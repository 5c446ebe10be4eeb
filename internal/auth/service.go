// Package auth implements the enrollment and verification orchestration
// flow: one embedding per image, mean reduction, cosine comparison against
// the stored representative vector, threshold decision.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jsvoboda/face-auth/internal/embedding"
	"github.com/jsvoboda/face-auth/internal/store"
)

// Provider produces one face embedding per image, or a typed failure when
// the image contains no face (embedding.ErrNoFaceDetected) or more than one
// (embedding.ErrMultipleFaces).
type Provider interface {
	EmbedFace(ctx context.Context, image []byte) ([]float32, error)
}

// Options tune the orchestrators. Zero values fall back to the defaults
// matching the original deployment (512-d ArcFace embeddings, 0.6 cutoff).
type Options struct {
	DefaultThreshold float64 // similarity cutoff used when a request omits one
	MaxEnrollImages  int     // upper bound on images per enrollment
	Dim              int     // expected provider output dimensionality
	Model            string  // provider model name recorded with enrollments
}

const (
	DefaultThreshold = 0.6
	MaxEnrollImages  = 5
	DefaultDim       = 512
)

// Service coordinates the embedding provider and the enrollment store.
// It is stateless; every call receives its full input explicitly.
type Service struct {
	provider Provider
	enrolls  store.Writer
	opts     Options
}

// NewService creates an orchestration service.
func NewService(provider Provider, enrolls store.Writer, opts Options) *Service {
	if opts.DefaultThreshold <= 0 {
		opts.DefaultThreshold = DefaultThreshold
	}
	if opts.MaxEnrollImages <= 0 {
		opts.MaxEnrollImages = MaxEnrollImages
	}
	if opts.Dim <= 0 {
		opts.Dim = DefaultDim
	}
	return &Service{provider: provider, enrolls: enrolls, opts: opts}
}

// EnrollRequest carries one enrollment call's full input.
type EnrollRequest struct {
	UserID      string
	DisplayName string
	Images      [][]byte
}

// EnrollResult reports partial success: how many of the submitted images
// contributed to the stored representative vector.
type EnrollResult struct {
	UserID          string
	ImagesSubmitted int
	ImagesUsed      int
	Dim             int
	Replaced        bool // true when re-enrollment overwrote a prior record
}

// Enroll validates the request, obtains one embedding per usable image,
// reduces them to their element-wise mean, and stores the result keyed by
// user ID. The ID is an opaque caller-supplied string, stored verbatim
// apart from whitespace trimming. Re-enrollment replaces the prior record.
// The store is written exactly once on success and never on a failure path.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (*EnrollResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if len(req.Images) == 0 {
		return nil, &ValidationError{Field: "images", Reason: "at least one image is required"}
	}
	if len(req.Images) > s.opts.MaxEnrollImages {
		return nil, &ValidationError{
			Field:  "images",
			Reason: fmt.Sprintf("at most %d images are allowed, got %d", s.opts.MaxEnrollImages, len(req.Images)),
		}
	}

	vectors, used, err := s.embedBatch(ctx, req.Images)
	if err != nil {
		return nil, err
	}
	if used == 0 {
		return nil, fmt.Errorf("none of %d images contained exactly one face: %w", len(req.Images), ErrNoUsableImage)
	}

	mean, err := MeanVector(vectors)
	if err != nil {
		return nil, fmt.Errorf("reducing embeddings: %w", err)
	}

	replaced, err := s.enrolls.Has(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("checking prior enrollment: %w", err)
	}

	now := time.Now().UTC()
	enrollment := &store.Enrollment{
		UserID:      userID,
		DisplayName: req.DisplayName,
		Embedding:   mean,
		Dim:         len(mean),
		ImagesUsed:  used,
		Model:       s.opts.Model,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.enrolls.Save(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("saving enrollment for %q: %w", userID, err)
	}

	return &EnrollResult{
		UserID:          userID,
		ImagesSubmitted: len(req.Images),
		ImagesUsed:      used,
		Dim:             len(mean),
		Replaced:        replaced,
	}, nil
}

// embedBatch runs one provider call per image concurrently and merges the
// results by original image order, so input ordering cannot change the mean
// beyond float summation tolerance. Images the provider rejects as having
// no face or multiple faces are skipped; any other provider failure aborts
// the batch.
func (s *Service) embedBatch(ctx context.Context, images [][]byte) ([][]float32, int, error) {
	results := make([][]float32, len(images))
	errs := make([]error, len(images))

	var wg sync.WaitGroup
	for i, img := range images {
		wg.Add(1)
		go func(i int, img []byte) {
			defer wg.Done()
			results[i], errs[i] = s.provider.EmbedFace(ctx, img)
		}(i, img)
	}
	wg.Wait()

	vectors := make([][]float32, 0, len(images))
	for i, err := range errs {
		switch {
		case err == nil:
			if len(results[i]) != s.opts.Dim {
				return nil, 0, fmt.Errorf("provider returned %d-dim vector, expected %d", len(results[i]), s.opts.Dim)
			}
			vectors = append(vectors, results[i])
		case errors.Is(err, embedding.ErrNoFaceDetected), errors.Is(err, embedding.ErrMultipleFaces):
			// Skipped, counted as a failed image.
		default:
			return nil, 0, fmt.Errorf("embedding image %d: %w", i, err)
		}
	}
	return vectors, len(vectors), nil
}

// VerifyRequest carries one verification call's full input. A nil Threshold
// selects the configured default; the full [0, 1] range, including 0, stays
// expressible.
type VerifyRequest struct {
	UserID    string
	Image     []byte
	Threshold *float64
}

// VerifyResult is transient and never persisted by this layer.
type VerifyResult struct {
	UserID     string
	Similarity float64
	Threshold  float64
	Matched    bool
}

// Verify embeds the probe image, fetches the stored vector for the claimed
// identity, and applies the threshold decision. The raw similarity is
// returned alongside the boolean so callers can render confidence.
// No state is mutated; the call is safe to retry.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	threshold := s.opts.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, &ValidationError{Field: "threshold", Reason: "must be in [0, 1]"}
	}

	// Resolve the claimed identity before paying for a provider call, so an
	// unknown user is reported as such even when the probe image is unusable.
	enrollment, err := s.enrolls.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("user %q: %w", userID, ErrUnknownUser)
	}
	if err != nil {
		return nil, fmt.Errorf("loading enrollment for %q: %w", userID, err)
	}

	probe, err := s.embedProbe(ctx, req.Image)
	if err != nil {
		return nil, err
	}

	similarity, err := CosineSimilarity(probe, enrollment.Embedding)
	if err != nil {
		return nil, err
	}

	return &VerifyResult{
		UserID:     userID,
		Similarity: similarity,
		Threshold:  threshold,
		Matched:    similarity >= threshold, // inclusive boundary
	}, nil
}

// IdentifyRequest asks which enrolled identities a probe image resembles.
type IdentifyRequest struct {
	Image     []byte
	Limit     int
	Threshold float64 // 0 disables the similarity cutoff
}

// IdentifyMatch is one 1:N search candidate.
type IdentifyMatch struct {
	UserID      string
	DisplayName string
	Similarity  float64
}

const defaultIdentifyLimit = 5

// Identify embeds the probe and returns the closest enrolled identities,
// best first, optionally filtered by a similarity cutoff.
func (s *Service) Identify(ctx context.Context, req IdentifyRequest) ([]IdentifyMatch, error) {
	if req.Threshold < 0 || req.Threshold > 1 {
		return nil, &ValidationError{Field: "threshold", Reason: "must be in [0, 1]"}
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultIdentifyLimit
	}

	probe, err := s.embedProbe(ctx, req.Image)
	if err != nil {
		return nil, err
	}

	candidates, err := s.enrolls.FindSimilar(ctx, probe, limit)
	if err != nil {
		return nil, fmt.Errorf("searching enrollments: %w", err)
	}

	matches := make([]IdentifyMatch, 0, len(candidates))
	for _, c := range candidates {
		similarity := 1 - c.Distance
		if req.Threshold > 0 && similarity < req.Threshold {
			continue
		}
		matches = append(matches, IdentifyMatch{
			UserID:      c.Enrollment.UserID,
			DisplayName: c.Enrollment.DisplayName,
			Similarity:  similarity,
		})
	}
	return matches, nil
}

// embedProbe embeds a single probe image, mapping the provider's no-face
// and multi-face rejections to ErrNoUsableImage. A multi-face probe is
// rejected rather than guessing which face is the subject.
func (s *Service) embedProbe(ctx context.Context, image []byte) ([]float32, error) {
	probe, err := s.provider.EmbedFace(ctx, image)
	switch {
	case errors.Is(err, embedding.ErrNoFaceDetected):
		return nil, fmt.Errorf("probe image: %w", ErrNoUsableImage)
	case errors.Is(err, embedding.ErrMultipleFaces):
		return nil, fmt.Errorf("probe image contains multiple faces: %w", ErrNoUsableImage)
	case err != nil:
		return nil, fmt.Errorf("embedding probe image: %w", err)
	}
	if len(probe) != s.opts.Dim {
		return nil, fmt.Errorf("provider returned %d-dim vector, expected %d", len(probe), s.opts.Dim)
	}
	return probe, nil
}

// Delete removes a user's enrollment. Returns ErrUnknownUser when nothing
// was enrolled under the given ID.
func (s *Service) Delete(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	err := s.enrolls.Delete(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("user %q: %w", userID, ErrUnknownUser)
	}
	if err != nil {
		return fmt.Errorf("deleting enrollment for %q: %w", userID, err)
	}
	return nil
}

// Info returns the stored enrollment record for a user.
func (s *Service) Info(ctx context.Context, userID string) (*store.Enrollment, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	enrollment, err := s.enrolls.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("user %q: %w", userID, ErrUnknownUser)
	}
	if err != nil {
		return nil, fmt.Errorf("loading enrollment for %q: %w", userID, err)
	}
	return enrollment, nil
}

// List returns all enrollments, without embedding payloads.
func (s *Service) List(ctx context.Context) ([]store.Enrollment, error) {
	enrollments, err := s.enrolls.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing enrollments: %w", err)
	}
	return enrollments, nil
}

// Search returns enrollments whose user ID or display name contains the
// query. Matching is diacritics- and case-insensitive ("novak" finds
// "Jan Novák"); the stored records themselves are untouched. An empty
// query returns everything.
func (s *Service) Search(ctx context.Context, query string) ([]store.Enrollment, error) {
	enrollments, err := s.enrolls.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing enrollments: %w", err)
	}
	query = store.NormalizeName(query)
	if query == "" {
		return enrollments, nil
	}

	matched := make([]store.Enrollment, 0, len(enrollments))
	for _, e := range enrollments {
		if strings.Contains(store.NormalizeName(e.UserID), query) ||
			strings.Contains(store.NormalizeName(e.DisplayName), query) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}
