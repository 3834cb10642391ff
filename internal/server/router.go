package server

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	app "lod-checker/internal/application"
	"lod-checker/internal/pkg/logger"
)

var registerTagName sync.Once

// NewRouter настраивает все маршруты HTTP API
func NewRouter(controller *app.Controller, log logger.Logger) *gin.Engine {
	if log == nil {
		log = logger.Nop()
	}
	useJSONFieldNames()

	h := NewHandler(controller, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", h.CreateSession)
			sessions.GET("/:id", h.GetSession)
			sessions.DELETE("/:id", h.DeleteSession)
			sessions.PUT("/:id/image", h.PutImage)
			sessions.DELETE("/:id/image", h.DeleteImage)
			sessions.PATCH("/:id/config", h.PatchConfig)
			sessions.POST("/:id/analyze", h.Analyze)
			sessions.POST("/:id/reset", h.Reset)
			sessions.GET("/:id/report", h.Report)
			sessions.GET("/:id/history", h.History)
		}
	}

	return r
}

// useJSONFieldNames: в деталях ошибок валидации поля называются как в JSON
func useJSONFieldNames() {
	registerTagName.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}
