//go:build gocv
// +build gocv

package imaging

import (
	"errors"
	"net/http"
	"strings"

	"gocv.io/x/gocv"

	"lod-checker/internal/domain/entity"
	"lod-checker/internal/domain/port"
)

// Decoder декодирует изображение через OpenCV
type Decoder struct{}

// NewDecoder создаёт декодер на gocv
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode проверяет, что OpenCV может прочитать изображение, и возвращает его размеры.
func (d *Decoder) Decode(data []byte) (entity.ImageInfo, error) {
	if len(data) == 0 {
		return entity.ImageInfo{}, errors.New("empty image")
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadUnchanged)
	if err != nil {
		return entity.ImageInfo{}, err
	}
	defer mat.Close()

	if mat.Empty() {
		return entity.ImageInfo{}, errors.New("failed to decode image")
	}

	return entity.ImageInfo{
		Format: formatOf(data),
		Width:  mat.Cols(),
		Height: mat.Rows(),
	}, nil
}

// formatOf берёт имя формата из сигнатуры, как это делает image.DecodeConfig
func formatOf(data []byte) string {
	if mime := http.DetectContentType(data); strings.HasPrefix(mime, "image/") {
		return strings.TrimPrefix(mime, "image/")
	}
	if len(data) >= 4 && (string(data[:4]) == "II*\x00" || string(data[:4]) == "MM\x00*") {
		return "tiff"
	}
	return ""
}

var _ port.ImageDecoder = (*Decoder)(nil)
