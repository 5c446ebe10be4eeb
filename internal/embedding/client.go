// Package embedding talks to the face-embedding server. The server wraps a
// detection + recognition model and returns one fixed-length vector per
// detected face; this package reduces that to the narrow provider contract
// the orchestration layer needs.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

const (
	defaultBaseURL = "http://localhost:8001"
	defaultModel   = "buffalo_l" // model name for reference only
)

// Typed provider failures. Both mean "this image cannot be used", not that
// the provider is broken; callers skip or reject the image.
var (
	ErrNoFaceDetected = errors.New("no face detected in image")
	ErrMultipleFaces  = errors.New("multiple faces detected in image")
)

// Client computes face embeddings using the embedding server.
type Client struct {
	baseURL string
	model   string
	maxEdge int // downscale bound before upload, 0 disables
	client  *http.Client
}

// NewClient creates a new embedding client.
func NewClient(baseURL, model string, maxEdge int) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		maxEdge: maxEdge,
		client:  &http.Client{},
	}
}

// faceDetection represents a single detected face in the server response.
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// faceResponse represents the response from the face embedding endpoint.
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// postMultipartImage posts the image as a multipart form to the given
// endpoint. The part carries an explicit Content-Type from magic byte
// detection so the server can reject unsupported formats early.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", DetectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// EmbedFace detects faces in the image and returns the embedding of the
// single face it contains. Images with zero faces yield ErrNoFaceDetected;
// images with more than one yield ErrMultipleFaces, since there is no safe
// way to decide which face is the subject.
func (c *Client) EmbedFace(ctx context.Context, imageData []byte) ([]float32, error) {
	if c.maxEdge > 0 {
		resized, err := ResizeImage(imageData, c.maxEdge)
		if err != nil {
			return nil, fmt.Errorf("preparing image: %w", err)
		}
		imageData = resized
	}

	body, err := c.postMultipartImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var faceResp faceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	switch {
	case faceResp.FacesCount == 0 || len(faceResp.Faces) == 0:
		return nil, ErrNoFaceDetected
	case faceResp.FacesCount > 1:
		return nil, ErrMultipleFaces
	}

	face := faceResp.Faces[0]
	if len(face.Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return face.Embedding, nil
}

// Model returns the model name being used.
func (c *Client) Model() string {
	return c.model
}

// Ping checks that the embedding server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("embedding server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding server unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}
