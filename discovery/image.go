package discovery

import (
	"encoding/base64"
	"mime"
	"net/http"
	"strings"

	"github.com/petal-labs/showroom/core"
)

// Image is the optional picture attached to a search. Exactly one of
// DataURL and Data is set.
type Image struct {
	// DataURL is a base64 data URL, sent as a JSON field.
	DataURL string

	// Data holds raw bytes, sent as a multipart file part with MediaType.
	Data      []byte
	MediaType string
	Filename  string
}

// ImageFromDataURL wraps an already encoded "data:<type>;base64,..." URL.
func ImageFromDataURL(dataURL string) (*Image, error) {
	img := &Image{DataURL: strings.TrimSpace(dataURL)}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// ImageFromBytes wraps raw image bytes. The media type is sniffed from the
// content.
func ImageFromBytes(data []byte, filename string) *Image {
	return &Image{
		Data:      data,
		MediaType: http.DetectContentType(data),
		Filename:  filename,
	}
}

// IsBinary reports whether the image is sent as raw bytes.
func (i *Image) IsBinary() bool {
	return i.Data != nil
}

// Validate checks that exactly one representation is present and well
// formed.
func (i *Image) Validate() error {
	switch {
	case i.DataURL != "" && i.Data != nil:
		return core.Invalid("image", "set either a data URL or raw bytes, not both")
	case i.Data != nil:
		if len(i.Data) == 0 {
			return core.Invalid("image", "must not be empty")
		}
		if i.MediaType != "" && !strings.HasPrefix(i.MediaType, "image/") {
			return core.Invalid("image", "media type %q is not an image", i.MediaType)
		}
		return nil
	case i.DataURL != "":
		return validateDataURL(i.DataURL)
	default:
		return core.Invalid("image", "must not be empty")
	}
}

func (i *Image) filename() string {
	if i.Filename != "" {
		return i.Filename
	}
	name := "image"
	if exts, _ := mime.ExtensionsByType(i.MediaType); len(exts) > 0 {
		name += exts[0]
	}
	return name
}

func validateDataURL(s string) error {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return core.Invalid("image", "data URL must start with \"data:\"")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return core.Invalid("image", "data URL has no payload")
	}
	mediaType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return core.Invalid("image", "data URL must be base64 encoded")
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return core.Invalid("image", "data URL media type %q is not an image", mediaType)
	}
	if payload == "" {
		return core.Invalid("image", "data URL has no payload")
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return core.Invalid("image", "data URL payload is not valid base64")
	}
	return nil
}
