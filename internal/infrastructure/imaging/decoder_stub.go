//go:build !gocv
// +build !gocv

package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"lod-checker/internal/domain/entity"
	"lod-checker/internal/domain/port"
)

// Decoder читает заголовок изображения стандартной библиотекой (сборка без OpenCV)
type Decoder struct{}

// NewDecoder создаёт декодер без OpenCV
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode проверяет, что формат известен и заголовок читается.
func (d *Decoder) Decode(data []byte) (entity.ImageInfo, error) {
	if len(data) == 0 {
		return entity.ImageInfo{}, errors.New("empty image")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return entity.ImageInfo{}, fmt.Errorf("decode image config: %w", err)
	}

	return entity.ImageInfo{
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

var _ port.ImageDecoder = (*Decoder)(nil)
