package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestCleanObjectName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "logos/u1/1_a.png", want: "logos/u1/1_a.png"},
		{in: "logos//u1/./a.png", want: "logos/u1/a.png"},
		{in: "", wantErr: true},
		{in: "/etc/passwd", wantErr: true},
		{in: "../secret", wantErr: true},
		{in: "logos/../../secret", wantErr: true},
		{in: "logos\\a.png", wantErr: true},
	}
	for _, tt := range tests {
		got, err := CleanObjectName(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidObjectName) {
				t.Errorf("CleanObjectName(%q) err = %v, want ErrInvalidObjectName", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("CleanObjectName(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestLocalStorageRoundTrip(t *testing.T) {
	client, err := NewLocalStorageClient(t.TempDir(), "http://files.test", "secret")
	if err != nil {
		t.Fatalf("NewLocalStorageClient: %v", err)
	}
	ctx := context.Background()

	res, err := client.UploadFile(ctx, strings.NewReader("png-bytes"), "logos/u1/logo.png", "image/png")
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if res.Size != int64(len("png-bytes")) || res.PublicURL != "http://files.test/logos/u1/logo.png" {
		t.Fatalf("unexpected result %+v", res)
	}

	rc, err := client.ReadFile(ctx, "logos/u1/logo.png")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "png-bytes" {
		t.Fatalf("read %q", data)
	}

	if err := client.DeleteFile(ctx, "logos/u1/logo.png"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if err := client.DeleteFile(ctx, "logos/u1/logo.png"); err != nil {
		t.Fatalf("second DeleteFile should be a no-op: %v", err)
	}
	if _, err := client.ReadFile(ctx, "../outside"); !errors.Is(err, ErrInvalidObjectName) {
		t.Fatalf("expected traversal rejection, got %v", err)
	}
}

func TestLocalSignedURL(t *testing.T) {
	client, err := NewLocalStorageClient(t.TempDir(), "http://files.test", "secret")
	if err != nil {
		t.Fatalf("NewLocalStorageClient: %v", err)
	}
	raw, err := client.GetSignedURL("logos/a.png", time.Minute)
	if err != nil {
		t.Fatalf("GetSignedURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	expires, _ := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	sig := u.Query().Get("signature")

	if !client.VerifySignedURL("logos/a.png", expires, sig) {
		t.Fatalf("expected valid signature")
	}
	if client.VerifySignedURL("logos/b.png", expires, sig) {
		t.Fatalf("signature must be bound to the object name")
	}
	if client.VerifySignedURL("logos/a.png", time.Now().Add(-time.Minute).Unix(), sig) {
		t.Fatalf("expired URL accepted")
	}
}

func TestLocalObjectNameFromURL(t *testing.T) {
	client, err := NewLocalStorageClient(t.TempDir(), "http://files.test", "secret")
	if err != nil {
		t.Fatalf("NewLocalStorageClient: %v", err)
	}
	signed, err := client.GetSignedURL("logos/u1/1_a.png", time.Minute)
	if err != nil {
		t.Fatalf("GetSignedURL: %v", err)
	}
	tampered := strings.Replace(signed, "logos/u1/", "logos/u2/", 1)

	tests := []struct {
		name   string
		url    string
		want   string
		wantOK bool
	}{
		{name: "signed", url: signed, want: "logos/u1/1_a.png", wantOK: true},
		{name: "other object", url: tampered},
		{name: "unsigned", url: "http://files.test/logos/u1/1_a.png"},
		{name: "foreign host", url: "http://127.0.0.1/logos/u1/1_a.png?" + strings.SplitN(signed, "?", 2)[1]},
		{name: "metadata", url: "http://169.254.169.254/latest/meta-data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := client.ObjectNameFromURL(tt.url)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("ObjectNameFromURL(%q) = %q, %v", tt.url, got, ok)
			}
		})
	}
}

func TestGCSObjectNameFromURL(t *testing.T) {
	g := &GCSClient{bucketName: "receipts"}
	tests := []struct {
		url    string
		want   string
		wantOK bool
	}{
		{"https://storage.googleapis.com/receipts/logos/u1/1_a.png?X-Goog-Signature=abc", "logos/u1/1_a.png", true},
		{"https://storage.googleapis.com/receipts/logos/u1/1_a.png", "logos/u1/1_a.png", true},
		{"https://storage.googleapis.com/other/logos/u1/1_a.png", "", false},
		{"http://storage.googleapis.com/receipts/logos/u1/1_a.png", "", false},
		{"https://evil.test/receipts/logos/u1/1_a.png", "", false},
	}
	for _, tt := range tests {
		got, ok := g.ObjectNameFromURL(tt.url)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ObjectNameFromURL(%q) = %q, %v", tt.url, got, ok)
		}
	}
}

func TestLogoObjectNameUsesPrefix(t *testing.T) {
	if got := LogoObjectName("u1", "x"); !strings.HasPrefix(got, LogoPrefix("u1")) {
		t.Errorf("LogoObjectName = %q", got)
	}
	if LogoPrefix("") != "logos/anonymous/" {
		t.Errorf("LogoPrefix(\"\") = %q", LogoPrefix(""))
	}
}
