package app

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"lod-checker/internal/domain/entity"
	"lod-checker/internal/domain/port"
	"lod-checker/internal/pkg/errorx"
)

// Ingestor превращает выбранный пользователем файл в изображение для показа и отправки.
// Выбор файла и drag-and-drop во всех интерфейсах приходят сюда же.
type Ingestor struct {
	decoder  port.ImageDecoder
	maxBytes int
}

// NewIngestor создаёт ingestor; при maxBytes <= 0 размер не ограничен
func NewIngestor(decoder port.ImageDecoder, maxBytes int) *Ingestor {
	return &Ingestor{decoder: decoder, maxBytes: maxBytes}
}

// Ingest проверяет, что байты декодируются как изображение, и кодирует их в base64.
// Размеры и содержимое не проверяются, это делает сервис анализа.
func (i *Ingestor) Ingest(data []byte) (*entity.EncodedImage, error) {
	if len(data) == 0 {
		return nil, errorx.Decode("empty file")
	}
	if i.maxBytes > 0 && len(data) > i.maxBytes {
		return nil, errorx.Decode("file is %d bytes, limit is %d", len(data), i.maxBytes)
	}

	var info entity.ImageInfo
	if i.decoder != nil {
		var err error
		info, err = i.decoder.Decode(data)
		if err != nil {
			return nil, errorx.Decode("%v", err)
		}
	}

	// TIFF сигнатурой не распознаётся, тип берём из декодера
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") && info.Format != "" {
		mimeType = "image/" + info.Format
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, errorx.Decode("unsupported content type %q", mimeType)
	}

	payload := base64.StdEncoding.EncodeToString(data)
	return &entity.EncodedImage{
		MimeType: mimeType,
		DataURL:  "data:" + mimeType + ";base64," + payload,
		Payload:  payload,
		Size:     len(data),
		Width:    info.Width,
		Height:   info.Height,
	}, nil
}

// IngestReader читает файл целиком, но не больше лимита
func (i *Ingestor) IngestReader(r io.Reader) (*entity.EncodedImage, error) {
	if i.maxBytes > 0 {
		r = io.LimitReader(r, int64(i.maxBytes)+1)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, errorx.Decode("read file: %v", err)
	}
	return i.Ingest(buf.Bytes())
}

// IngestDataURL принимает data-URL (как его отдаёт браузерный FileReader)
func (i *Ingestor) IngestDataURL(dataURL string) (*entity.EncodedImage, error) {
	_, payload, err := SplitDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	if i.maxBytes > 0 && len(payload) > base64.StdEncoding.EncodedLen(i.maxBytes) {
		return nil, errorx.Decode("data URL payload is %d bytes, limit is %d", len(payload), base64.StdEncoding.EncodedLen(i.maxBytes))
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errorx.Decode("invalid base64 payload: %v", err)
	}
	return i.Ingest(data)
}

// SplitDataURL делит "data:<mime>;base64,<payload>" на тип и полезную нагрузку
func SplitDataURL(dataURL string) (mimeType, payload string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(dataURL), "data:")
	if !ok {
		return "", "", errorx.Decode("not a data URL")
	}

	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", errorx.Decode("data URL has no payload")
	}

	mimeType, ok = strings.CutSuffix(header, ";base64")
	if !ok {
		return "", "", errorx.Decode("data URL is not base64 encoded")
	}
	return mimeType, payload, nil
}

// MaxBytes лимит размера файла; 0 без ограничения
func (i *Ingestor) MaxBytes() int {
	if i.maxBytes < 0 {
		return 0
	}
	return i.maxBytes
}

// DecodePayload возвращает исходные байты изображения
func DecodePayload(img *entity.EncodedImage) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: no image", errorx.ErrDecode)
	}
	return base64.StdEncoding.DecodeString(img.Payload)
}
