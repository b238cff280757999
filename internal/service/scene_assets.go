package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/globeoverlay/backend/internal/domain"
)

// Drawable is a model the overlay can place and draw
type Drawable interface {
	Name() string
}

// SceneAssets supplies the primary model or, failing that, a fallback
type SceneAssets interface {
	LoadPrimary(ctx context.Context) (Drawable, error)
	Fallback() Drawable
}

// Model is a loaded glTF asset or the procedural fallback
type Model struct {
	name   string
	Format string
	Size   int
}

func (m *Model) Name() string { return m.name }

// FallbackModel returns the procedural stand-in drawn when no asset loads
func FallbackModel() *Model {
	return &Model{name: "procedural-fallback", Format: "procedural"}
}

const maxAssetSize = 64 << 20

// ModelAssets loads a glTF/GLB model from an http(s) URL or a local path
type ModelAssets struct {
	source     string
	httpClient *http.Client
}

// NewModelAssets creates an asset source; an empty source always falls back
func NewModelAssets(source string) *ModelAssets {
	return &ModelAssets{
		source: source,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fallback returns the procedural model
func (a *ModelAssets) Fallback() Drawable { return FallbackModel() }

// LoadPrimary fetches and checks the configured model
func (a *ModelAssets) LoadPrimary(ctx context.Context) (Drawable, error) {
	if a.source == "" {
		return nil, fmt.Errorf("%w: no model asset configured", domain.ErrAssetLoad)
	}

	data, err := a.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAssetLoad, err)
	}

	format, err := sniffGLTF(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrAssetLoad, a.source, err)
	}

	return &Model{name: path.Base(a.source), Format: format, Size: len(data)}, nil
}

func (a *ModelAssets) read(ctx context.Context) ([]byte, error) {
	u, err := url.Parse(a.source)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return os.ReadFile(a.source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.source, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxAssetSize))
}

// sniffGLTF accepts a binary GLB container (version 2) or a JSON glTF
// document with an asset.version.
func sniffGLTF(data []byte) (string, error) {
	if len(data) >= 12 && bytes.Equal(data[:4], []byte("glTF")) {
		if v := binary.LittleEndian.Uint32(data[4:8]); v != 2 {
			return "", fmt.Errorf("unsupported glb version %d", v)
		}
		if n := binary.LittleEndian.Uint32(data[8:12]); int(n) != len(data) {
			return "", fmt.Errorf("glb length %d does not match %d bytes", n, len(data))
		}
		return "glb", nil
	}

	var doc struct {
		Asset *struct {
			Version string `json:"version"`
		} `json:"asset"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", errors.New("not a glTF document")
	}
	if doc.Asset == nil || doc.Asset.Version == "" {
		return "", errors.New("glTF document has no asset version")
	}
	return "gltf", nil
}
