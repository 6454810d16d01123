package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidContentType is returned when a content type string is not recognized.
var ErrInvalidContentType = errors.New("invalid content type")

// ContentType is the closed set of embeddable campaign content.
type ContentType string

const (
	ContentTypeNote  ContentType = "note"
	ContentTypeAsset ContentType = "asset"
)

// AllContentTypes returns every embeddable type in a stable order.
func AllContentTypes() []ContentType {
	return []ContentType{ContentTypeNote, ContentTypeAsset}
}

// ParseContentType accepts the singular tag ("note") or the collection name ("notes"), case-insensitively.
func ParseContentType(s string) (ContentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "note", "notes":
		return ContentTypeNote, nil
	case "asset", "assets":
		return ContentTypeAsset, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidContentType, s)
	}
}

// ParseContentTypes parses each entry and drops duplicates, keeping first-seen order.
func ParseContentTypes(values []string) ([]ContentType, error) {
	out := make([]ContentType, 0, len(values))
	seen := make(map[ContentType]struct{}, len(values))

	for _, v := range values {
		ct, err := ParseContentType(v)
		if err != nil {
			return nil, err
		}

		if _, dup := seen[ct]; dup {
			continue
		}

		seen[ct] = struct{}{}
		out = append(out, ct)
	}

	return out, nil
}

// IsValid reports whether c is one of the known content types.
func (c ContentType) IsValid() bool {
	switch c {
	case ContentTypeNote, ContentTypeAsset:
		return true
	default:
		return false
	}
}

// Collection returns the plural name used for per-type result maps ("notes", "assets").
func (c ContentType) Collection() string {
	switch c {
	case ContentTypeNote:
		return "notes"
	case ContentTypeAsset:
		return "assets"
	default:
		return string(c)
	}
}
