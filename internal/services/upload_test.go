package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"strings"
	"testing"

	"receiptmaker/internal/storage"
)

func TestUploadLogoNormalisesToPNG(t *testing.T) {
	local, err := storage.NewLocalStorageClient(t.TempDir(), "http://localhost:8080", "secret")
	if err != nil {
		t.Fatalf("NewLocalStorageClient: %v", err)
	}
	svc := NewUploadService(local)
	ctx := context.Background()

	up, err := svc.UploadLogo(ctx, "user-1", pngBytes(t, 1024, 256))
	if err != nil {
		t.Fatalf("UploadLogo: %v", err)
	}
	if !strings.HasPrefix(up.ObjectName, "logos/user-1/") || !strings.HasSuffix(up.ObjectName, ".png") {
		t.Fatalf("unexpected object name %q", up.ObjectName)
	}
	if up.Width != maxLogoSide || up.Height != maxLogoSide/4 {
		t.Fatalf("logo not resized: %dx%d", up.Width, up.Height)
	}
	if up.URL == "" {
		t.Fatalf("missing signed url")
	}

	rc, err := local.ReadFile(ctx, up.ObjectName)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err != nil || format != "png" {
		t.Fatalf("stored logo is %q (%v), want png", format, err)
	}
}

func TestUploadLogoRejectsBadInput(t *testing.T) {
	local, _ := storage.NewLocalStorageClient(t.TempDir(), "http://localhost:8080", "secret")
	svc := NewUploadService(local)

	for name, data := range map[string][]byte{
		"empty":     nil,
		"not image": []byte("GIF89a but not really"),
		"too large": bytes.Repeat([]byte{0}, MaxLogoBytes+1),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.UploadLogo(context.Background(), "u", data); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
