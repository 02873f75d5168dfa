package builder

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrInvalidImage is returned for image data that cannot be decoded.
var ErrInvalidImage = errors.New("invalid image")

// embeddable lists the formats the document writer takes as-is.
var embeddable = map[string]bool{"png": true, "jpeg": true, "tiff": true, "webp": true}

// ImageData resolves raw bytes or a base64 data URI to encoded image data the
// document writer accepts. Other decodable formats are re-encoded as PNG.
func ImageData(raw []byte) ([]byte, image.Config, error) {
	data, err := decodeDataURI(raw)
	if err != nil {
		return nil, image.Config{}, err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, image.Config{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if embeddable[format] {
		return data, cfg, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, image.Config{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, image.Config{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return buf.Bytes(), cfg, nil
}

// DecodeImage decodes raw bytes or a data URI into an image.
func DecodeImage(raw []byte) (image.Image, error) {
	data, err := decodeDataURI(raw)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

func decodeDataURI(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidImage)
	}
	if !bytes.HasPrefix(raw, []byte("data:")) {
		return raw, nil
	}
	meta, payload, ok := strings.Cut(string(raw), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: unsupported data URI", ErrInvalidImage)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return data, nil
}
