package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// ErrInvalidObjectName is returned for names that escape the storage root.
var ErrInvalidObjectName = errors.New("invalid object name")

// StorageClient is the interface for object storage operations.
// Both GCS and local storage implementations must implement this interface.
type StorageClient interface {
	UploadFile(ctx context.Context, reader io.Reader, objectName, contentType string) (*UploadResult, error)
	DeleteFile(ctx context.Context, objectName string) error
	ReadFile(ctx context.Context, objectName string) (io.ReadCloser, error)
	GetSignedURL(objectName string, expiry time.Duration) (string, error)
	// ObjectNameFromURL returns the object a URL issued by this client
	// points at. Foreign URLs report false.
	ObjectNameFromURL(rawURL string) (string, bool)
	Close() error
}

// UploadResult contains the result of an upload operation
type UploadResult struct {
	ObjectName string `json:"object_name"`
	PublicURL  string `json:"public_url"`
	Size       int64  `json:"size"`
}

// LogoPrefix is the object prefix holding ownerID's logos.
func LogoPrefix(ownerID string) string {
	if ownerID == "" {
		ownerID = "anonymous"
	}
	return "logos/" + ownerID + "/"
}

// LogoObjectName places an uploaded logo under the owner's prefix.
func LogoObjectName(ownerID, id string) string {
	return fmt.Sprintf("%s%d_%s.png", LogoPrefix(ownerID), time.Now().Unix(), id)
}

// CleanObjectName normalises name and rejects absolute or parent-relative paths.
func CleanObjectName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidObjectName, name)
	}
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidObjectName, name)
	}
	return cleaned, nil
}
