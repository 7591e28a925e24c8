package blobstore_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"lecturenote/internal/blobstore"
	"lecturenote/internal/services"
)

func TestPutGetExistsDelete(t *testing.T) {
	ctx := context.Background()
	store, err := blobstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	key := blobstore.VideoKey("abc", ".mp4")
	if key != "videos/abc/original.mp4" {
		t.Fatalf("unexpected key %q", key)
	}
	if _, err := store.Put(ctx, key, strings.NewReader("video")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	ok, err := store.Exists(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	data, err := store.ReadAll(ctx, key)
	if err != nil || string(data) != "video" {
		t.Fatalf("ReadAll = %q, %v", data, err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestValidateKeyRejectsEscapes(t *testing.T) {
	for _, key := range []string{"", "/etc/passwd", "../x", "a/../../b", "a//b", `a\b`} {
		if err := blobstore.ValidateKey(key); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %q, got %v", key, err)
		}
	}
	if err := blobstore.ValidateKey(blobstore.SlideImageKey("t1", 7)); err != nil {
		t.Fatalf("slide key rejected: %v", err)
	}
	if got := blobstore.SlideImageKey("t1", 7); got != "processing/t1/slides/slide_007.jpg" {
		t.Fatalf("unexpected slide key %q", got)
	}
}

func TestSignerRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	signer, err := blobstore.NewSigner("secret", "http://example.test/")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	signer.WithClock(func() time.Time { return now })

	signed, err := signer.Sign("get", "outputs/t1/note.md", time.Hour, "note_t1.md")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	parsed, err := url.Parse(signed.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if parsed.Path != "/objects/outputs/t1/note.md" || signed.Method != "GET" {
		t.Fatalf("unexpected signed url %+v", signed)
	}
	q := parsed.Query()
	if err := signer.Verify("GET", "outputs/t1/note.md", q.Get("expires"), q.Get("sig"), q.Get("filename")); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := signer.Verify("PUT", "outputs/t1/note.md", q.Get("expires"), q.Get("sig"), q.Get("filename")); !errors.Is(err, blobstore.ErrSignatureInvalid) {
		t.Fatalf("expected method mismatch to fail, got %v", err)
	}
	if err := signer.Verify("GET", "outputs/t2/note.md", q.Get("expires"), q.Get("sig"), q.Get("filename")); !errors.Is(err, blobstore.ErrSignatureInvalid) {
		t.Fatalf("expected key mismatch to fail, got %v", err)
	}

	now = now.Add(2 * time.Hour)
	if err := signer.Verify("GET", "outputs/t1/note.md", q.Get("expires"), q.Get("sig"), q.Get("filename")); !errors.Is(err, blobstore.ErrSignatureExpired) {
		t.Fatalf("expected expiry, got %v", err)
	}
}
