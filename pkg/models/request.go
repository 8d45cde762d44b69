package models

import "fmt"

// Feature is a billable capability of the identification client.
type Feature string

const (
	FeatureIdentify Feature = "identify"
	FeatureDiagnose Feature = "diagnose"
	FeatureChat     Feature = "chat"
)

// Features lists every known feature in display order.
var Features = []Feature{FeatureIdentify, FeatureDiagnose, FeatureChat}

// ParseFeature validates a feature name.
func ParseFeature(s string) (Feature, error) {
	switch f := Feature(s); f {
	case FeatureIdentify, FeatureDiagnose, FeatureChat:
		return f, nil
	}
	return "", fmt.Errorf("unknown feature %q", s)
}

// IdentificationRequest is created per user action and discarded once resolved.
type IdentificationRequest struct {
	// ImageRef is a local path, a data: URI or an http(s) URL.
	ImageRef string `json:"image_ref"`
	// ImageData optionally carries the already loaded image bytes.
	ImageData   []byte  `json:"-"`
	Feature     Feature `json:"feature"`
	ContextText string  `json:"context_text,omitempty"`
}

// ContentPart is one piece of a multimodal message.
type ContentPart struct {
	Type  string     `json:"type"`
	Text  string     `json:"text,omitempty"`
	Image *ImagePart `json:"image,omitempty"`
}

// ImagePart carries either inline base64 data or a URL.
type ImagePart struct {
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// ChatMessage is a single message sent to an inference endpoint.
type ChatMessage struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// InferenceRequest is the JSON body posted to every inference endpoint.
type InferenceRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []ChatMessage `json:"messages"`
}

// InferenceResponse is the envelope returned by an inference endpoint.
// Completion is a pointer so a missing field can be told apart from an empty one.
type InferenceResponse struct {
	Completion *string `json:"completion"`
}
