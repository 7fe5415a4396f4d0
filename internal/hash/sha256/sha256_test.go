package sha256

import (
	"testing"

	"github.com/JakeFAU/webscreenshot/internal/screenshot"
)

func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.Hash([]byte("hello world"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestHasherBuildsScreenshotKeys(t *testing.T) {
	t.Parallel()

	key, err := screenshot.NewAddresser(New()).Key("hello world", screenshot.Size{Width: 360, Height: 640})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	want := "360x640/b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9.png"
	if key != want {
		t.Fatalf("expected %s, got %s", want, key)
	}
}
