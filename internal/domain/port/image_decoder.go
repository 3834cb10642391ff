package port

import "lod-checker/internal/domain/entity"

// ImageDecoder проверяет, что байты являются декодируемым изображением
type ImageDecoder interface {
	// Decode возвращает формат и размеры или ошибку, если изображение не читается
	Decode(data []byte) (entity.ImageInfo, error)
}
