// pkg/imaging/imaging.go
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrUndecodable     = errors.New("image could not be decoded")
)

// MaxPixels bounds the decoded canvas so a small payload cannot expand into a huge bitmap.
const MaxPixels = 64 * 1024 * 1024

// allowedTypes maps accepted content types to the extension used for stored objects.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
}

// Info describes a validated image payload.
type Info struct {
	ContentType string
	Ext         string
	Width       int
	Height      int
}

// AllowedContentType reports whether contentType may be uploaded.
func AllowedContentType(contentType string) bool {
	_, ok := allowedTypes[contentType]
	return ok
}

// DetectContentType sniffs the payload, ignoring whatever the client declared.
func DetectContentType(data []byte) string {
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if AllowedContentType(m.String()) {
			return m.String()
		}
	}
	return mt.String()
}

// Inspect checks that data is an allowed image type and fully decodes it to obtain its size.
func Inspect(data []byte) (Info, error) {
	contentType := DetectContentType(data)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > MaxPixels {
		return Info{}, fmt.Errorf("%w: dimensions %dx%d", ErrUndecodable, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	b := img.Bounds()

	return Info{
		ContentType: contentType,
		Ext:         ext,
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}
