// Package fingerprint derives stable cache keys from image references.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/verdant-ai/verdant/pkg/models"
)

// Invalid is returned for empty or unusable references so callers still get
// a key to look up. It never matches a real fingerprint.
const Invalid = "fp:invalid"

const prefix = "fp:"

// Mode selects what a fingerprint is derived from.
type Mode string

const (
	// ByReference hashes the normalized image reference. Cheap, no I/O.
	ByReference Mode = "reference"
	// ByContent hashes the image bytes when they are available.
	ByContent Mode = "content"
)

// Fingerprinter computes content keys.
type Fingerprinter struct {
	mode Mode
}

// New returns a Fingerprinter using mode. Unknown modes fall back to ByReference.
func New(mode Mode) *Fingerprinter {
	if mode != ByContent {
		mode = ByReference
	}
	return &Fingerprinter{mode: mode}
}

// Of returns the fingerprint for an image reference.
func Of(ref string) string {
	ref = normalize(ref)
	if ref == "" {
		return Invalid
	}
	return digest([]byte(ref))
}

// OfBytes returns the fingerprint of raw image content.
func OfBytes(data []byte) string {
	if len(data) == 0 {
		return Invalid
	}
	return digest(data)
}

// Request fingerprints req according to the configured mode. Content mode
// uses the loaded bytes when present and the reference otherwise.
func (f *Fingerprinter) Request(req models.IdentificationRequest) string {
	if f.mode == ByContent && len(req.ImageData) > 0 {
		return OfBytes(req.ImageData)
	}
	return Of(req.ImageRef)
}

// CacheKey composes the cache address of a request from its fingerprint.
// Context text is folded in so different questions about one image do not alias.
func CacheKey(fp string, feature models.Feature, contextText string) string {
	key := fp + ":" + string(feature)
	if ctx := strings.TrimSpace(contextText); ctx != "" {
		sum := sha256.Sum256([]byte(strings.ToLower(ctx)))
		key += ":" + hex.EncodeToString(sum[:4])
	}
	return key
}

func normalize(ref string) string {
	ref = strings.TrimSpace(ref)
	ref = strings.TrimPrefix(ref, "file://")
	return ref
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return prefix + hex.EncodeToString(sum[:8])
}
