package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"lod-checker/internal/domain/entity"
	"lod-checker/internal/domain/port"
	"lod-checker/internal/pkg/errorx"
	"lod-checker/internal/pkg/logger"
)

// Controller владеет состоянием форм проверки и управляет переходами между ними.
// Все интерфейсы (бот, HTTP, TUI) отправляют сюда события и показывают снимки сессий.
type Controller struct {
	// mu охраняет переходы всех сессий; во время запроса к сервису не удерживается
	mu       sync.Mutex
	sessions port.SessionRepository
	history  port.HistoryRepository
	analyzer port.ComplianceAnalyzer
	ingestor *Ingestor
	log      logger.Logger

	issued    atomic.Uint64
	inFlight  atomic.Int32
	discarded atomic.Uint64
}

// ConfigPatch меняет только заданные поля формы
type ConfigPatch struct {
	Target      *entity.LODLevel
	ElementType *string
	Context     *string
}

// Stats счётчики запросов к сервису анализа
type Stats struct {
	Issued    uint64
	InFlight  int32
	Discarded uint64
}

// OnAnalysisDone вызывается, когда асинхронный анализ применён (или отброшен)
type OnAnalysisDone func(session entity.Session, err error)

// NewController создаёт контроллер
func NewController(
	sessions port.SessionRepository,
	history port.HistoryRepository,
	analyzer port.ComplianceAnalyzer,
	ingestor *Ingestor,
	log logger.Logger,
) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	return &Controller{
		sessions: sessions,
		history:  history,
		analyzer: analyzer,
		ingestor: ingestor,
		log:      log,
	}
}

// Snapshot возвращает копию сессии, создавая её при первом обращении
func (c *Controller) Snapshot(ctx context.Context, sessionID string) (entity.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return entity.Session{}, err
	}
	return s.Clone(), nil
}

// Lookup возвращает копию только существующей сессии
func (c *Controller) Lookup(ctx context.Context, sessionID string) (entity.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.sessions.Find(ctx, sessionID)
	if err != nil {
		return entity.Session{}, err
	}
	return s.Clone(), nil
}

// SelectImage принимает байты файла. Ошибка декодирования возвращается сразу,
// состояние при этом не меняется.
func (c *Controller) SelectImage(ctx context.Context, sessionID string, data []byte) (entity.Session, error) {
	img, err := c.ingestor.Ingest(data)
	if err != nil {
		c.log.Warnf(ctx, "image rejected: %v", err)
		return entity.Session{}, err
	}
	return c.StageImage(ctx, sessionID, img)
}

// SelectReader читает файл из потока (загрузка multipart)
func (c *Controller) SelectReader(ctx context.Context, sessionID string, r io.Reader) (entity.Session, error) {
	img, err := c.ingestor.IngestReader(r)
	if err != nil {
		c.log.Warnf(ctx, "image rejected: %v", err)
		return entity.Session{}, err
	}
	return c.StageImage(ctx, sessionID, img)
}

// SelectDataURL принимает изображение в виде data-URL
func (c *Controller) SelectDataURL(ctx context.Context, sessionID, dataURL string) (entity.Session, error) {
	img, err := c.ingestor.IngestDataURL(dataURL)
	if err != nil {
		c.log.Warnf(ctx, "image rejected: %v", err)
		return entity.Session{}, err
	}
	return c.StageImage(ctx, sessionID, img)
}

// StageImage выбирает уже закодированное изображение из любого состояния
func (c *Controller) StageImage(ctx context.Context, sessionID string, img *entity.EncodedImage) (entity.Session, error) {
	if img == nil {
		return entity.Session{}, fmt.Errorf("%w: no image", errorx.ErrDecode)
	}

	return c.update(ctx, sessionID, func(s *entity.Session) error {
		if s.State == entity.StateAnalyzing {
			c.log.Infof(ctx, "image replaced while analysis is running, pending result will be discarded")
		}
		s.Stage(img)
		c.log.Debugf(ctx, "image staged: %s %dx%d, %d bytes", img.MimeType, img.Width, img.Height, img.Size)
		return nil
	})
}

// ClearImage убирает выбранное изображение (кнопка удаления на предпросмотре)
func (c *Controller) ClearImage(ctx context.Context, sessionID string) (entity.Session, error) {
	return c.update(ctx, sessionID, func(s *entity.Session) error {
		return s.ClearImage()
	})
}

// Configure меняет поля формы
func (c *Controller) Configure(ctx context.Context, sessionID string, patch ConfigPatch) (entity.Session, error) {
	return c.update(ctx, sessionID, func(s *entity.Session) error {
		target, elementType, extra := s.Target, s.ElementType, s.Context
		if patch.Target != nil {
			target = *patch.Target
		}
		if patch.ElementType != nil {
			elementType = *patch.ElementType
		}
		if patch.Context != nil {
			extra = *patch.Context
		}
		return s.Configure(target, elementType, extra)
	})
}

// SetTarget выбирает целевой LOD
func (c *Controller) SetTarget(ctx context.Context, sessionID string, target entity.LODLevel) (entity.Session, error) {
	return c.Configure(ctx, sessionID, ConfigPatch{Target: &target})
}

// SetElementType задаёт категорию элемента
func (c *Controller) SetElementType(ctx context.Context, sessionID, elementType string) (entity.Session, error) {
	return c.Configure(ctx, sessionID, ConfigPatch{ElementType: &elementType})
}

// SetContext задаёт дополнительный контекст
func (c *Controller) SetContext(ctx context.Context, sessionID, extra string) (entity.Session, error) {
	return c.Configure(ctx, sessionID, ConfigPatch{Context: &extra})
}

// Reset очищает форму. Целевой LOD сохраняется.
func (c *Controller) Reset(ctx context.Context, sessionID string) (entity.Session, error) {
	return c.update(ctx, sessionID, func(s *entity.Session) error {
		s.Reset()
		return nil
	})
}

// Analyze запускает проверку и ждёт ответа.
// Завершённая или неудачная проверка возвращается как состояние сессии, а не ошибка вызова;
// ошибка возвращается только для no-op (ErrNothingStaged, ErrAnalysisInFlight,
// ErrAlreadyCompleted) и для устаревшего ответа (ErrStaleResult).
func (c *Controller) Analyze(ctx context.Context, sessionID string) (entity.Session, error) {
	ticket, snapshot, err := c.begin(ctx, sessionID)
	if err != nil {
		return snapshot, err
	}
	return c.run(ctx, ticket)
}

// AnalyzeAsync переводит сессию в Analyzing и возвращается сразу.
// Запрос выполняется в отдельной горутине и не отменяется вместе с ctx.
func (c *Controller) AnalyzeAsync(ctx context.Context, sessionID string, done OnAnalysisDone) (entity.Session, error) {
	ticket, snapshot, err := c.begin(ctx, sessionID)
	if err != nil {
		return snapshot, err
	}

	go func(ctx context.Context) {
		s, err := c.run(ctx, ticket)
		if done != nil {
			done(s, err)
		}
	}(context.WithoutCancel(ctx))

	return snapshot, nil
}

// Delete удаляет сессию вместе с историей.
// Ответ анализа, который ещё в работе, будет отброшен.
func (c *Controller) Delete(ctx context.Context, sessionID string) error {
	ctx = logger.WithSessionID(ctx, sessionID)

	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.sessions.Find(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := c.remove(ctx, s); err != nil {
		return err
	}
	c.log.Infof(ctx, "session deleted")
	return nil
}

// EvictIdle удаляет сессии, которые не менялись дольше ttl, и возвращает их число
func (c *Controller) EvictIdle(ctx context.Context, ttl time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.sessions.ListIdle(ctx, time.Now().Add(-ttl))
	if err != nil {
		return 0, err
	}

	evicted := 0
	for _, id := range ids {
		s, err := c.sessions.Find(ctx, id)
		if err != nil {
			continue
		}
		if err := c.remove(ctx, s); err != nil {
			return evicted, err
		}
		evicted++
	}
	return evicted, nil
}

// RunEviction раз в ttl/4 (но не чаще раза в секунду) удаляет простаивающие сессии.
// Блокирует до отмены ctx; при ttl <= 0 сразу возвращается.
func (c *Controller) RunEviction(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.EvictIdle(ctx, ttl)
			if err != nil {
				c.log.Warnf(ctx, "session eviction failed: %v", err)
				continue
			}
			if n > 0 {
				c.log.Infof(ctx, "evicted %d idle sessions", n)
			}
		}
	}
}

// MaxImageBytes лимит размера изображения; 0 без ограничения
func (c *Controller) MaxImageBytes() int {
	if c.ingestor == nil {
		return 0
	}
	return c.ingestor.MaxBytes()
}

// History возвращает завершённые проверки сессии, новые первыми
func (c *Controller) History(ctx context.Context, sessionID string) ([]entity.HistoryItem, error) {
	if c.history == nil {
		return nil, nil
	}
	return c.history.List(ctx, sessionID)
}

// Stats возвращает счётчики запросов
func (c *Controller) Stats() Stats {
	return Stats{
		Issued:    c.issued.Load(),
		InFlight:  c.inFlight.Load(),
		Discarded: c.discarded.Load(),
	}
}

func (c *Controller) begin(ctx context.Context, sessionID string) (entity.Ticket, entity.Session, error) {
	if c.analyzer == nil {
		return entity.Ticket{}, entity.Session{}, errors.New("analyzer is not configured")
	}

	ctx = logger.WithSessionID(ctx, sessionID)

	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return entity.Ticket{}, entity.Session{}, err
	}

	ticket, err := s.BeginAnalysis()
	if err != nil {
		c.log.Debugf(ctx, "analyze ignored in state %s: %v", s.State, err)
		return entity.Ticket{}, s.Clone(), err
	}
	if err := c.sessions.Save(ctx, s); err != nil {
		return entity.Ticket{}, s.Clone(), err
	}

	c.issued.Inc()
	c.log.Infof(ctx, "analysis started: target=%s element=%q generation=%d", ticket.Request.Target, ticket.Request.ElementType, ticket.Generation)
	return ticket, s.Clone(), nil
}

func (c *Controller) run(ctx context.Context, ticket entity.Ticket) (entity.Session, error) {
	ctx = logger.WithSessionID(ctx, ticket.SessionID)

	c.inFlight.Inc()
	started := time.Now()
	result, analyzeErr := c.analyzer.Analyze(ctx, ticket.Request)
	c.inFlight.Dec()

	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.sessions.Find(ctx, ticket.SessionID)
	if err != nil {
		c.discarded.Inc()
		c.log.Warnf(ctx, "analysis finished for a removed session, result discarded")
		return entity.Session{}, entity.ErrStaleResult
	}

	var applyErr error
	if analyzeErr != nil {
		// Причина уходит в лог, пользователь видит одно общее сообщение
		c.log.Errorf(ctx, "analysis failed after %s: %v", time.Since(started).Round(time.Millisecond), analyzeErr)
		applyErr = s.Fail(ticket, errorx.MsgAnalysisFailed)
	} else {
		applyErr = s.Complete(ticket, result)
	}

	if applyErr != nil {
		c.discarded.Inc()
		c.log.Infof(ctx, "stale analysis result discarded: generation %d, current %d", ticket.Generation, s.Generation)
		return s.Clone(), applyErr
	}

	if err := c.sessions.Save(ctx, s); err != nil {
		return s.Clone(), err
	}

	if analyzeErr == nil {
		c.log.Infof(ctx, "analysis completed in %s: overall=%d", time.Since(started).Round(time.Millisecond), result.OverallScore)
		c.appendHistory(ctx, s, result)
	}

	return s.Clone(), nil
}

func (c *Controller) appendHistory(ctx context.Context, s *entity.Session, result *entity.AnalysisResult) {
	if c.history == nil {
		return
	}

	item := entity.HistoryItem{
		ID:        uuid.NewString(),
		SessionID: s.ID,
		Timestamp: time.Now(),
		Result:    result,
	}
	if s.Image != nil {
		item.ImageURL = s.Image.DataURL
	}

	if err := c.history.Append(ctx, item); err != nil {
		c.log.Warnf(ctx, "history append failed: %v", err)
	}
}

// remove вызывается под c.mu. Reset меняет поколение, и ответ для этой сессии
// уже не будет принят.
func (c *Controller) remove(ctx context.Context, s *entity.Session) error {
	s.Reset()
	if err := c.sessions.Delete(ctx, s.ID); err != nil {
		return err
	}
	if c.history != nil {
		if err := c.history.Delete(ctx, s.ID); err != nil {
			return err
		}
	}
	return nil
}

// update выполняет переход под блокировкой и сохраняет сессию
func (c *Controller) update(ctx context.Context, sessionID string, fn func(s *entity.Session) error) (entity.Session, error) {
	ctx = logger.WithSessionID(ctx, sessionID)

	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return entity.Session{}, err
	}

	if err := fn(s); err != nil {
		return s.Clone(), err
	}

	if err := c.sessions.Save(ctx, s); err != nil {
		return s.Clone(), err
	}
	return s.Clone(), nil
}
