package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"receiptmaker/internal/storage"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

const (
	MaxLogoBytes  = 5 << 20
	maxLogoSide   = 512
	logoURLExpiry = 24 * time.Hour
	maxLogoPixels = 40_000_000
)

// LogoUpload is what the editor stores in a header's logo field (ObjectName)
// and shows immediately (URL).
type LogoUpload struct {
	ObjectName string `json:"object_name"`
	URL        string `json:"url"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// UploadService normalises logos to PNG and stores them.
type UploadService struct {
	storage storage.StorageClient
}

func NewUploadService(client storage.StorageClient) *UploadService {
	return &UploadService{storage: client}
}

func (s *UploadService) UploadLogo(ctx context.Context, ownerID string, data []byte) (*LogoUpload, error) {
	if len(data) == 0 {
		return nil, invalid("file", "is empty")
	}
	if len(data) > MaxLogoBytes {
		return nil, invalid("file", "must be at most %d MB", MaxLogoBytes>>20)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, invalid("file", "must be a PNG, JPEG, GIF or WebP image")
	}
	if cfg.Width*cfg.Height > maxLogoPixels {
		return nil, invalid("file", "image dimensions are too large")
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, invalid("file", "must be a PNG, JPEG, GIF or WebP image")
	}
	if b := img.Bounds(); b.Dx() > maxLogoSide || b.Dy() > maxLogoSide {
		img = imaging.Fit(img, maxLogoSide, maxLogoSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode logo: %w", err)
	}

	objectName := storage.LogoObjectName(ownerID, uuid.New().String())
	res, err := s.storage.UploadFile(ctx, &buf, objectName, "image/png")
	if err != nil {
		return nil, fmt.Errorf("upload logo: %w", err)
	}
	url, err := s.storage.GetSignedURL(res.ObjectName, logoURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("sign logo url: %w", err)
	}
	b := img.Bounds()
	return &LogoUpload{ObjectName: res.ObjectName, URL: url, Width: b.Dx(), Height: b.Dy()}, nil
}
