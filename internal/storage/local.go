package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LocalStorageClient stores objects on the local filesystem and serves them
// through HMAC-signed URLs.
type LocalStorageClient struct {
	basePath  string
	baseURL   string
	secretKey string
}

func NewLocalStorageClient(basePath, baseURL, secretKey string) (*LocalStorageClient, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	if secretKey == "" {
		secretKey = "default-local-storage-key"
	}
	if baseURL == "" {
		baseURL = "internal://storage"
	}
	return &LocalStorageClient{basePath: basePath, baseURL: baseURL, secretKey: secretKey}, nil
}

func (l *LocalStorageClient) UploadFile(ctx context.Context, reader io.Reader, objectName, contentType string) (*UploadResult, error) {
	fullPath, err := l.resolve(objectName)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", objectName, err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", objectName, err)
	}
	defer file.Close()

	size, err := io.Copy(file, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to write data to file: %w", err)
	}

	return &UploadResult{
		ObjectName: objectName,
		PublicURL:  fmt.Sprintf("%s/%s", l.baseURL, objectName),
		Size:       size,
	}, nil
}

// DeleteFile removes the object. Missing objects are not an error.
func (l *LocalStorageClient) DeleteFile(ctx context.Context, objectName string) error {
	fullPath, err := l.resolve(objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file %s: %w", objectName, err)
	}
	l.cleanEmptyDirs(filepath.Dir(fullPath))
	return nil
}

// cleanEmptyDirs removes empty parent directories up to basePath
func (l *LocalStorageClient) cleanEmptyDirs(dir string) {
	base := filepath.Clean(l.basePath)
	for dir != base && dir != "" && dir != "." {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		os.Remove(dir)
		dir = filepath.Dir(dir)
	}
}

func (l *LocalStorageClient) ReadFile(ctx context.Context, objectName string) (io.ReadCloser, error) {
	fullPath, err := l.resolve(objectName)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", objectName, err)
	}
	return file, nil
}

// GetSignedURL returns a URL carrying an expiry timestamp and its signature.
func (l *LocalStorageClient) GetSignedURL(objectName string, expiry time.Duration) (string, error) {
	if _, err := CleanObjectName(objectName); err != nil {
		return "", err
	}
	expiresAt := time.Now().Add(expiry).Unix()
	signature := l.sign(objectName + ":" + strconv.FormatInt(expiresAt, 10))
	return fmt.Sprintf("%s/%s?expires=%d&signature=%s", l.baseURL, objectName, expiresAt, signature), nil
}

func (l *LocalStorageClient) sign(message string) string {
	h := hmac.New(sha256.New, []byte(l.secretKey))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignedURL verifies that a signed URL is valid and not expired
func (l *LocalStorageClient) VerifySignedURL(objectName string, expiresAt int64, signature string) bool {
	if time.Now().Unix() > expiresAt {
		return false
	}
	expected := l.sign(objectName + ":" + strconv.FormatInt(expiresAt, 10))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// ObjectNameFromURL accepts only URLs under baseURL that carry a valid,
// unexpired signature.
func (l *LocalStorageClient) ObjectNameFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	q := u.Query()
	u.RawQuery, u.Fragment = "", ""
	name, ok := strings.CutPrefix(u.String(), strings.TrimSuffix(l.baseURL, "/")+"/")
	if !ok {
		return "", false
	}
	expiresAt, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	if err != nil || !l.VerifySignedURL(name, expiresAt, q.Get("signature")) {
		return "", false
	}
	return name, true
}

// GetFilePath returns the filesystem path for an object, or an error if the
// name escapes the storage root.
func (l *LocalStorageClient) GetFilePath(objectName string) (string, error) {
	return l.resolve(objectName)
}

func (l *LocalStorageClient) resolve(objectName string) (string, error) {
	cleaned, err := CleanObjectName(objectName)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.basePath, filepath.FromSlash(cleaned)), nil
}

func (l *LocalStorageClient) Close() error {
	return nil
}

var _ StorageClient = (*LocalStorageClient)(nil)
