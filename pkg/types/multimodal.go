package types

import "fmt"

// MediaKind tags the closed set of multimodal input variants.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaAudio    MediaKind = "audio"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
)

// Media is a tagged union over the multimodal variants. Exactly one variant
// field matching Kind must be set; plain text records carry no Media at all.
type Media struct {
	Kind MediaKind `json:"kind"`

	Image    *ImageMedia    `json:"image,omitempty"`
	Audio    *AudioMedia    `json:"audio,omitempty"`
	Video    *VideoMedia    `json:"video,omitempty"`
	Document *DocumentMedia `json:"document,omitempty"`
}

// ImageMedia describes an image input. The record content holds the OCR
// surrogate text.
type ImageMedia struct {
	OriginalPath string `json:"original_path,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	SizeBytes    int64  `json:"size_bytes,omitempty"`
}

// AudioMedia describes an audio input. The record content holds the
// transcript.
type AudioMedia struct {
	OriginalPath    string  `json:"original_path,omitempty"`
	MimeType        string  `json:"mime_type,omitempty"`
	SizeBytes       int64   `json:"size_bytes,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// VideoMedia describes a video input. The record content holds the
// transcript of the audio track.
type VideoMedia struct {
	OriginalPath    string  `json:"original_path,omitempty"`
	MimeType        string  `json:"mime_type,omitempty"`
	SizeBytes       int64   `json:"size_bytes,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// DocumentMedia describes a document input. The record content holds the
// extracted text.
type DocumentMedia struct {
	OriginalPath string `json:"original_path,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	SizeBytes    int64  `json:"size_bytes,omitempty"`
	PageCount    int    `json:"page_count,omitempty"`
}

// Validate checks that exactly the variant named by Kind is populated.
func (m *Media) Validate() error {
	if m == nil {
		return nil
	}
	set := 0
	if m.Image != nil {
		set++
	}
	if m.Audio != nil {
		set++
	}
	if m.Video != nil {
		set++
	}
	if m.Document != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: media must carry exactly one variant, got %d", ErrValidation, set)
	}

	var ok bool
	switch m.Kind {
	case MediaImage:
		ok = m.Image != nil
	case MediaAudio:
		ok = m.Audio != nil
	case MediaVideo:
		ok = m.Video != nil
	case MediaDocument:
		ok = m.Document != nil
	default:
		return fmt.Errorf("%w: unknown media kind %q", ErrValidation, m.Kind)
	}
	if !ok {
		return fmt.Errorf("%w: media kind %q does not match the populated variant", ErrValidation, m.Kind)
	}
	return nil
}

// Clone returns a deep copy of the media descriptor.
func (m *Media) Clone() *Media {
	if m == nil {
		return nil
	}
	cp := Media{Kind: m.Kind}
	if m.Image != nil {
		v := *m.Image
		cp.Image = &v
	}
	if m.Audio != nil {
		v := *m.Audio
		cp.Audio = &v
	}
	if m.Video != nil {
		v := *m.Video
		cp.Video = &v
	}
	if m.Document != nil {
		v := *m.Document
		cp.Document = &v
	}
	return &cp
}
