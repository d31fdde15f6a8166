package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"receiptmaker/internal/storage"

	_ "golang.org/x/image/webp"
)

const (
	maxImageBytes  = 10 << 20
	maxImagePixels = 4096 * 4096
)

// ErrImageNotAllowed is returned for references the loader refuses to follow.
var ErrImageNotAllowed = errors.New("image reference not allowed")

// ObjectStore reads stored objects and maps URLs it issued back to object
// names.
type ObjectStore interface {
	ReadFile(ctx context.Context, objectName string) (io.ReadCloser, error)
	ObjectNameFromURL(rawURL string) (string, bool)
}

type imageOwnerKey struct{}

// WithImageOwner scopes storage logo reads in ctx to ownerID's logo prefix.
// An empty ownerID means the anonymous prefix.
func WithImageOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, imageOwnerKey{}, ownerID)
}

func imageOwner(ctx context.Context) string {
	owner, _ := ctx.Value(imageOwnerKey{}).(string)
	return owner
}

// ImageLoader resolves logo references: data URLs, storage object names and
// URLs issued by the same storage. It never fetches from other hosts, and
// object reads are limited to the caller's logo prefix.
type ImageLoader struct {
	objects ObjectStore
}

func NewImageLoader(objects ObjectStore) *ImageLoader {
	return &ImageLoader{objects: objects}
}

func (l *ImageLoader) Open(ctx context.Context, ref string) (image.Image, error) {
	raw, err := l.read(ctx, strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxImagePixels/cfg.Height {
		return nil, fmt.Errorf("image dimensions %dx%d exceed %d pixels", cfg.Width, cfg.Height, maxImagePixels)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func (l *ImageLoader) read(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case ref == "":
		return nil, errors.New("empty image reference")
	case strings.HasPrefix(ref, "data:"):
		return decodeDataURL(ref)
	}

	if l.objects == nil {
		return nil, fmt.Errorf("no storage configured for %q", ref)
	}
	name := ref
	if strings.Contains(ref, "://") {
		var ok bool
		if name, ok = l.objects.ObjectNameFromURL(ref); !ok {
			return nil, fmt.Errorf("%w: external URL", ErrImageNotAllowed)
		}
	}
	name, err := storage.CleanObjectName(name)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(name, storage.LogoPrefix(imageOwner(ctx))) {
		return nil, fmt.Errorf("%w: %q is outside the caller's logos", ErrImageNotAllowed, name)
	}

	rc, err := l.objects.ReadFile(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return readLimited(rc)
}

func decodeDataURL(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(ref, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, errors.New("unsupported data URL")
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > maxImageBytes+2 {
		return nil, fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("data URL: %w", err)
	}
	if len(raw) > maxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}
	return raw, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > maxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}
	return raw, nil
}
