package errorx

import (
	"errors"
	"fmt"
	"strings"
)

// MsgAnalysisFailed единственное сообщение, которое видит пользователь при любой ошибке анализа
const MsgAnalysisFailed = "Failed to analyze the model. Please check the image and try again."

// MsgDecodeFailed показывается сразу при выборе файла
const MsgDecodeFailed = "Could not read this file as an image. Please select a PNG, JPEG, GIF, WebP, BMP or TIFF screenshot."

var (
	ErrDecode          = errors.New("image decode failed")
	ErrTransport       = errors.New("analysis service request failed")
	ErrEmptyResponse   = errors.New("no response from analysis service")
	ErrSchemaViolation = errors.New("analysis response violates schema")
	ErrSessionNotFound = errors.New("session not found")
)

// ErrorDetail описание одного нарушения схемы
type ErrorDetail struct {
	Path string
	Info string
}

// SchemaError ответ сервиса не соответствует ожидаемой схеме
type SchemaError struct {
	Details []ErrorDetail
	Cause   error
}

// NewSchemaError создаёт ошибку схемы с деталями
func NewSchemaError(cause error, details ...ErrorDetail) *SchemaError {
	return &SchemaError{Details: details, Cause: cause}
}

// Error реализует интерфейс error
func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString(ErrSchemaViolation.Error())
	if len(e.Details) > 0 {
		parts := make([]string, 0, len(e.Details))
		for _, d := range e.Details {
			parts = append(parts, fmt.Sprintf("%s: %s", d.Path, d.Info))
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Is позволяет errors.Is(err, ErrSchemaViolation)
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchemaViolation
}

// Unwrap возвращает исходную ошибку разбора
func (e *SchemaError) Unwrap() error {
	return e.Cause
}

// Decode оборачивает причину как ошибку декодирования изображения
func Decode(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, args...))
}
