package entity

import (
	"errors"
	"time"
)

// SessionState состояние формы проверки
type SessionState string

const (
	StateIdle      SessionState = "idle"      // изображения нет
	StateStaged    SessionState = "staged"    // изображение выбрано, отчёта нет
	StateAnalyzing SessionState = "analyzing" // запрос в работе
	StateCompleted SessionState = "completed" // есть отчёт
	StateFailed    SessionState = "failed"    // ошибка, изображение остаётся выбранным
)

// Ошибки переходов. Для вызывающего кода это no-op: состояние не меняется.
var (
	ErrNothingStaged    = errors.New("no image staged")
	ErrAnalysisInFlight = errors.New("analysis already in progress")
	ErrAlreadyCompleted = errors.New("analysis already completed, reset or select a new image")
	ErrStaleResult      = errors.New("analysis result is stale")
	ErrFormLocked       = errors.New("configuration is locked while analysis is running")
	ErrUnknownLOD       = errors.New("unknown LOD level")
)

// Session состояние одной формы: выбранное изображение, настройки и последний отчёт
type Session struct {
	ID          string
	State       SessionState
	Image       *EncodedImage
	Target      LODLevel
	ElementType string
	Context     string
	Result      *AnalysisResult
	Error       string
	Generation  uint64 // растёт при каждой смене изображения и сбросе
	UpdatedAt   time.Time
}

// Ticket выдаётся при старте анализа и привязывает ответ к поколению сессии
type Ticket struct {
	SessionID  string
	Generation uint64
	Request    AnalysisRequest
}

// NewSession создаёт пустую сессию с уровнем по умолчанию
func NewSession(id string, target LODLevel) *Session {
	if !target.Valid() {
		target = DefaultLOD
	}
	return &Session{
		ID:        id,
		State:     StateIdle,
		Target:    target,
		UpdatedAt: time.Now(),
	}
}

// Stage выбирает (или заменяет) изображение из любого состояния.
// Прежний отчёт и ошибка сбрасываются.
func (s *Session) Stage(img *EncodedImage) {
	s.Image = img
	s.Result = nil
	s.Error = ""
	s.State = StateStaged
	s.bump()
}

// ClearImage убирает выбранное изображение, настройки остаются
func (s *Session) ClearImage() error {
	switch s.State {
	case StateStaged, StateFailed:
	case StateAnalyzing:
		return ErrAnalysisInFlight
	case StateCompleted:
		return ErrAlreadyCompleted
	default:
		return ErrNothingStaged
	}
	s.Image = nil
	s.Error = ""
	s.State = StateIdle
	s.bump()
	return nil
}

// Configure меняет поля формы. Во время анализа форма заблокирована.
func (s *Session) Configure(target LODLevel, elementType, context string) error {
	if s.State == StateAnalyzing {
		return ErrFormLocked
	}
	if !target.Valid() {
		return ErrUnknownLOD
	}
	s.Target = target
	s.ElementType = elementType
	s.Context = context
	s.UpdatedAt = time.Now()
	return nil
}

// BeginAnalysis переводит сессию в Analyzing и возвращает билет запроса.
// Из Failed разрешён повтор: изображение всё ещё выбрано.
func (s *Session) BeginAnalysis() (Ticket, error) {
	switch s.State {
	case StateStaged, StateFailed:
	case StateAnalyzing:
		return Ticket{}, ErrAnalysisInFlight
	case StateCompleted:
		return Ticket{}, ErrAlreadyCompleted
	default:
		return Ticket{}, ErrNothingStaged
	}
	if s.Image == nil {
		return Ticket{}, ErrNothingStaged
	}

	s.State = StateAnalyzing
	s.Error = ""
	s.UpdatedAt = time.Now()

	return Ticket{
		SessionID:  s.ID,
		Generation: s.Generation,
		Request: AnalysisRequest{
			Image:       s.Image,
			Target:      s.Target,
			ElementType: s.ElementType,
			Context:     s.Context,
		},
	}, nil
}

// Complete применяет отчёт, если билет относится к текущему поколению
func (s *Session) Complete(t Ticket, result *AnalysisResult) error {
	if err := s.accept(t); err != nil {
		return err
	}
	s.Result = result
	s.Error = ""
	s.State = StateCompleted
	s.UpdatedAt = time.Now()
	return nil
}

// Fail фиксирует ошибку анализа, изображение остаётся выбранным
func (s *Session) Fail(t Ticket, message string) error {
	if err := s.accept(t); err != nil {
		return err
	}
	s.Result = nil
	s.Error = message
	s.State = StateFailed
	s.UpdatedAt = time.Now()
	return nil
}

// Reset возвращает форму в Idle. Целевой LOD сохраняется.
func (s *Session) Reset() {
	s.Image = nil
	s.Result = nil
	s.Error = ""
	s.ElementType = ""
	s.Context = ""
	s.State = StateIdle
	s.bump()
}

// Clone возвращает копию для чтения вне блокировки
func (s *Session) Clone() Session {
	return *s
}

func (s *Session) accept(t Ticket) error {
	if t.SessionID != s.ID || t.Generation != s.Generation || s.State != StateAnalyzing {
		return ErrStaleResult
	}
	return nil
}

func (s *Session) bump() {
	s.Generation++
	s.UpdatedAt = time.Now()
}
