package server

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	app "lod-checker/internal/application"
	"lod-checker/internal/domain/entity"
	"lod-checker/internal/pkg/errorx"
	"lod-checker/internal/pkg/ginx"
	"lod-checker/internal/pkg/logger"
	"lod-checker/internal/report"
)

const bodySlack = 64 << 10

// Handler HTTP-обработчики сессий проверки
type Handler struct {
	controller *app.Controller
	log        logger.Logger
}

// NewHandler создаёт обработчик
func NewHandler(controller *app.Controller, log logger.Logger) *Handler {
	return &Handler{
		controller: controller,
		log:        log,
	}
}

// Health GET /health
func (h *Handler) Health(c *gin.Context) {
	stats := h.controller.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "lod-checker",
		"issued":    stats.Issued,
		"inFlight":  stats.InFlight,
		"discarded": stats.Discarded,
	})
}

// CreateSession POST /api/v1/sessions
func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		ginx.BadRequestWithValidation(c, err)
		return
	}

	ctx := c.Request.Context()
	id := uuid.NewString()

	var target entity.LODLevel
	if req.Target != "" {
		var ok bool
		if target, ok = parseTarget(c, req.Target); !ok {
			return
		}
	}

	s, err := h.controller.Snapshot(ctx, id)
	if err == nil && target != "" {
		s, err = h.controller.SetTarget(ctx, id, target)
	}
	if err != nil {
		h.respondError(c, err, s)
		return
	}

	ginx.Success(c, fromSession(s, false))
}

// GetSession GET /api/v1/sessions/:id?preview=true
func (h *Handler) GetSession(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	ginx.Success(c, fromSession(s, wantPreview(c)))
}

// PutImage PUT /api/v1/sessions/:id/image
// multipart с полем file или JSON {"dataUrl": "..."}
func (h *Handler) PutImage(c *gin.Context) {
	if _, ok := h.lookup(c); !ok {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	if limit := h.bodyLimit(); limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	var (
		s   entity.Session
		err error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, ferr := c.FormFile("file")
		if tooLarge(ferr) {
			h.respondTooLarge(c)
			return
		}
		if ferr != nil {
			ginx.ErrorWithDetails(c, http.StatusBadRequest, "Validation failed",
				[]ginx.ErrorDetail{{Path: "file", Info: "file is required"}})
			return
		}
		f, ferr := fh.Open()
		if ferr != nil {
			h.respondError(c, ferr, s)
			return
		}
		defer f.Close()
		s, err = h.controller.SelectReader(ctx, id, f)
	} else {
		var req imageRequest
		if berr := c.ShouldBindJSON(&req); berr != nil {
			if tooLarge(berr) {
				h.respondTooLarge(c)
				return
			}
			ginx.BadRequestWithValidation(c, berr)
			return
		}
		s, err = h.controller.SelectDataURL(ctx, id, req.DataURL)
	}

	if err != nil {
		h.respondError(c, err, s)
		return
	}
	ginx.Success(c, fromSession(s, wantPreview(c)))
}

// DeleteSession DELETE /api/v1/sessions/:id
func (h *Handler) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.controller.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err, entity.Session{})
		return
	}
	ginx.Success(c, gin.H{"id": id, "deleted": true})
}

// DeleteImage DELETE /api/v1/sessions/:id/image
func (h *Handler) DeleteImage(c *gin.Context) {
	if _, ok := h.lookup(c); !ok {
		return
	}

	s, err := h.controller.ClearImage(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, s)
		return
	}
	ginx.Success(c, fromSession(s, false))
}

// PatchConfig PATCH /api/v1/sessions/:id/config
func (h *Handler) PatchConfig(c *gin.Context) {
	if _, ok := h.lookup(c); !ok {
		return
	}

	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ginx.BadRequestWithValidation(c, err)
		return
	}

	patch := app.ConfigPatch{ElementType: req.ElementType, Context: req.Context}
	if req.Target != nil {
		target, ok := parseTarget(c, *req.Target)
		if !ok {
			return
		}
		patch.Target = &target
	}

	s, err := h.controller.Configure(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err, s)
		return
	}
	ginx.Success(c, fromSession(s, false))
}

// Analyze POST /api/v1/sessions/:id/analyze?async=true
// Обрыв соединения клиентом запрос к сервису не отменяет.
func (h *Handler) Analyze(c *gin.Context) {
	if _, ok := h.lookup(c); !ok {
		return
	}
	ctx := context.WithoutCancel(c.Request.Context())
	id := c.Param("id")

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		s, err := h.controller.AnalyzeAsync(ctx, id, func(s entity.Session, err error) {
			if err != nil {
				h.log.Infof(ctx, "async analysis not applied: %v", err)
				return
			}
			h.log.Debugf(ctx, "async analysis finished in state %s", s.State)
		})
		if err != nil {
			h.respondError(c, err, s)
			return
		}
		ginx.Accepted(c, fromSession(s, false))
		return
	}

	s, err := h.controller.Analyze(ctx, id)
	if err != nil {
		h.respondError(c, err, s)
		return
	}
	ginx.Success(c, fromSession(s, false))
}

// Reset POST /api/v1/sessions/:id/reset
func (h *Handler) Reset(c *gin.Context) {
	if _, ok := h.lookup(c); !ok {
		return
	}

	s, err := h.controller.Reset(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, s)
		return
	}
	ginx.Success(c, fromSession(s, false))
}

// Report GET /api/v1/sessions/:id/report?format=text
func (h *Handler) Report(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	if s.Result == nil {
		ginx.NotFound(c, "report is not available in state "+string(s.State))
		return
	}

	view := report.Build(s.Result)
	if c.Query("format") == "text" {
		c.String(http.StatusOK, report.Text(view))
		return
	}
	ginx.Success(c, view)
}

// History GET /api/v1/sessions/:id/history?preview=true
func (h *Handler) History(c *gin.Context) {
	if _, ok := h.lookup(c); !ok {
		return
	}

	items, err := h.controller.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, entity.Session{})
		return
	}
	ginx.Success(c, fromHistory(items, wantPreview(c)))
}

func (h *Handler) lookup(c *gin.Context) (entity.Session, bool) {
	s, err := h.controller.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, s)
		return entity.Session{}, false
	}
	return s, true
}

// respondError переводит ошибки контроллера в HTTP-ответ
func (h *Handler) respondError(c *gin.Context, err error, s entity.Session) {
	switch {
	case errors.Is(err, errorx.ErrSessionNotFound):
		ginx.NotFound(c, err.Error())
	case errors.Is(err, errorx.ErrDecode):
		ginx.ErrorWithDetails(c, http.StatusBadRequest, errorx.MsgDecodeFailed,
			[]ginx.ErrorDetail{{Path: "file", Info: err.Error()}})
	case errors.Is(err, entity.ErrUnknownLOD):
		ginx.ErrorWithDetails(c, http.StatusBadRequest, "Validation failed",
			[]ginx.ErrorDetail{{Path: "target", Info: err.Error()}})
	case errors.Is(err, entity.ErrNothingStaged),
		errors.Is(err, entity.ErrAnalysisInFlight),
		errors.Is(err, entity.ErrAlreadyCompleted),
		errors.Is(err, entity.ErrFormLocked),
		errors.Is(err, entity.ErrStaleResult):
		var data interface{}
		if s.ID != "" {
			data = fromSession(s, false)
		}
		ginx.Conflict(c, err.Error(), data)
	default:
		h.log.Errorf(c.Request.Context(), "request failed: %v", err)
		ginx.InternalError(c, "internal error")
	}
}

// bodyLimit: изображение в base64 плюс запас на JSON и заголовки multipart
func (h *Handler) bodyLimit() int64 {
	limit := h.controller.MaxImageBytes()
	if limit <= 0 {
		return 0
	}
	return int64(base64.StdEncoding.EncodedLen(limit)) + bodySlack
}

func (h *Handler) respondTooLarge(c *gin.Context) {
	ginx.ErrorWithDetails(c, http.StatusRequestEntityTooLarge, errorx.MsgDecodeFailed,
		[]ginx.ErrorDetail{{Path: "file", Info: "request body is too large"}})
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func parseTarget(c *gin.Context, raw string) (entity.LODLevel, bool) {
	target, err := entity.ParseLODLevel(raw)
	if err != nil {
		ginx.ErrorWithDetails(c, http.StatusBadRequest, "Validation failed",
			[]ginx.ErrorDetail{{Path: "target", Info: err.Error()}})
		return "", false
	}
	return target, true
}

func wantPreview(c *gin.Context) bool {
	preview, _ := strconv.ParseBool(c.Query("preview"))
	return preview
}
