package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidDataURI is returned for strings that are not RFC 2397 data URIs.
var ErrInvalidDataURI = errors.New("invalid data uri")

// DataURI is a decoded data URI.
type DataURI struct {
	MediaType string
	Data      []byte
}

// EncodeDataURI returns "data:<mediaType>;base64,<payload>".
func EncodeDataURI(mediaType string, data []byte) string {
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI parses both base64 and percent-encoded data URIs.
func DecodeDataURI(s string) (*DataURI, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return nil, ErrInvalidDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, ErrInvalidDataURI
	}

	isBase64 := false
	mediaType := meta
	if strings.HasSuffix(meta, ";base64") {
		isBase64 = true
		mediaType = strings.TrimSuffix(meta, ";base64")
	}
	if mediaType == "" {
		mediaType = "text/plain;charset=US-ASCII"
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
		}
		return &DataURI{MediaType: mediaType, Data: data}, nil
	}

	decoded, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return &DataURI{MediaType: mediaType, Data: []byte(decoded)}, nil
}

// BaseType strips parameters: "audio/L16;rate=24000" -> "audio/L16".
func (d *DataURI) BaseType() string {
	t, _, _ := strings.Cut(d.MediaType, ";")
	return strings.TrimSpace(t)
}

// IsText reports whether the payload is text a prompt can embed.
func (d *DataURI) IsText() bool {
	t := strings.ToLower(d.BaseType())
	if strings.HasPrefix(t, "text/") {
		return true
	}
	switch t {
	case "application/json", "application/xml", "application/javascript",
		"application/x-yaml", "application/yaml", "application/typescript", "application/x-sh":
		return true
	}
	return false
}

var extensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
	"video/mp4":  "mp4",
	"video/webm": "webm",
	"audio/wav":  "wav",
	"audio/mpeg": "mp3",
	"text/plain": "txt",
}

// ExtensionFor maps a media type to a file extension ("bin" if unknown).
func ExtensionFor(mediaType string) string {
	t, _, _ := strings.Cut(strings.ToLower(mediaType), ";")
	if ext, ok := extensions[strings.TrimSpace(t)]; ok {
		return ext
	}
	return "bin"
}
