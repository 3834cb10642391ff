package entity

// ImageInfo то, что удалось узнать об изображении при декодировании
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// EncodedImage изображение, готовое и к показу, и к отправке.
// DataURL всегда равен "data:" + MimeType + ";base64," + Payload.
type EncodedImage struct {
	MimeType string
	DataURL  string // для предпросмотра
	Payload  string // base64 без префикса data-URL, для отправки
	Size     int    // размер исходных байт
	Width    int
	Height   int
}
