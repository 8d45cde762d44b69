package provider

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Image is an image ready to be attached to a message: either inline bytes
// or a remote URL passed by reference.
type Image struct {
	MediaType string
	Data      []byte
	URL       string
}

// LoadImage resolves ref into an Image. Preloaded data wins over ref. Inline
// images larger than maxBytes are rejected with a content_too_large error
// before they are read where possible.
func LoadImage(ref string, data []byte, maxBytes int) (*Image, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case len(data) > 0:
		return inline(data, maxBytes)
	case ref == "":
		return nil, fmt.Errorf("%w: empty reference", ErrImageUnavailable)
	case isURL(ref):
		return &Image{URL: ref}, nil
	case strings.HasPrefix(ref, "data:"):
		return decodeDataURI(ref, maxBytes)
	}

	path := strings.TrimPrefix(ref, "file://")
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageUnavailable, err)
	}
	if maxBytes > 0 && info.Size() > int64(maxBytes) {
		return nil, tooLarge("image", int(info.Size()), maxBytes)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageUnavailable, err)
	}
	return inline(b, maxBytes)
}

// IsRemote reports whether ref is a URL or data: URI, the references
// LoadImage resolves without touching the local filesystem.
func IsRemote(ref string) bool {
	ref = strings.TrimSpace(ref)
	return isURL(ref) || strings.HasPrefix(ref, "data:")
}

func isURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func inline(b []byte, maxBytes int) (*Image, error) {
	if maxBytes > 0 && len(b) > maxBytes {
		return nil, tooLarge("image", len(b), maxBytes)
	}
	return &Image{MediaType: http.DetectContentType(b), Data: b}, nil
}

// decodeDataURI handles data:<media type>;base64,<payload>.
func decodeDataURI(uri string, maxBytes int) (*Image, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: unsupported data uri", ErrImageUnavailable)
	}
	if maxBytes > 0 && base64.StdEncoding.DecodedLen(len(payload)) > maxBytes+2 {
		return nil, tooLarge("image", base64.StdEncoding.DecodedLen(len(payload)), maxBytes)
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageUnavailable, err)
	}
	img, err := inline(b, maxBytes)
	if err != nil {
		return nil, err
	}
	if mt := strings.TrimSuffix(meta, ";base64"); mt != "" {
		img.MediaType = mt
	}
	return img, nil
}

func tooLarge(what string, size, limit int) *Error {
	return newError(KindContentTooLarge, 0, fmt.Errorf("%s is %d bytes, limit %d", what, size, limit))
}
