package handlers

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jsvoboda/face-auth/internal/auth"
	"github.com/jsvoboda/face-auth/internal/config"
	"github.com/jsvoboda/face-auth/internal/store/mock"
)

// fakeProvider maps image payloads to canned embeddings or errors.
type fakeProvider struct {
	vectors map[string][]float32
	errs    map[string]error
}

func (p *fakeProvider) EmbedFace(ctx context.Context, image []byte) ([]float32, error) {
	key := string(image)
	if err, ok := p.errs[key]; ok {
		return nil, err
	}
	if v, ok := p.vectors[key]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("unexpected image %q", key)
}

func testConfig() *config.Config {
	return &config.Config{
		Embedding: config.EmbeddingConfig{Dim: 2},
		Verify: config.VerifyConfig{
			Threshold:       0.6,
			MaxEnrollImages: 5,
			MaxUploadBytes:  1 << 20,
		},
	}
}

func newTestHandlerDeps(t *testing.T, provider *fakeProvider) (*auth.Service, *mock.EnrollmentStore, *config.Config) {
	t.Helper()
	cfg := testConfig()
	enrolls := mock.NewEnrollmentStore()
	service := auth.NewService(provider, enrolls, auth.Options{
		DefaultThreshold: cfg.Verify.Threshold,
		MaxEnrollImages:  cfg.Verify.MaxEnrollImages,
		Dim:              cfg.Embedding.Dim,
		Model:            "test-model",
	})
	return service, enrolls, cfg
}

// multipartRequest builds a multipart form request with string fields and
// named file parts.
func multipartRequest(t *testing.T, path string, fields map[string]string, files map[string][][]byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("writing field %s: %v", name, err)
		}
	}
	for name, payloads := range files {
		for i, payload := range payloads {
			part, err := writer.CreateFormFile(name, fmt.Sprintf("%s-%d.jpg", name, i))
			if err != nil {
				t.Fatalf("creating file part %s: %v", name, err)
			}
			if _, err := part.Write(payload); err != nil {
				t.Fatalf("writing file part %s: %v", name, err)
			}
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
