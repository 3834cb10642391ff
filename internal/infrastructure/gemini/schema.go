package gemini

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"lod-checker/internal/domain/entity"
	"lod-checker/internal/pkg/errorx"
)

// schema подмножество OpenAPI, которое понимает responseSchema
type schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*schema `json:"properties,omitempty"`
	Items       *schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

var sectionFields = []string{"score", "status", "observations", "missing", "recommendations"}

func sectionSchema() *schema {
	str := &schema{Type: "STRING"}
	return &schema{
		Type: "OBJECT",
		Properties: map[string]*schema{
			"score": {Type: "NUMBER"},
			"status": {
				Type: "STRING",
				Enum: []string{
					string(entity.StatusCompliant),
					string(entity.StatusPartial),
					string(entity.StatusNonCompliant),
				},
			},
			"observations":    {Type: "ARRAY", Items: str},
			"missing":         {Type: "ARRAY", Items: str},
			"recommendations": {Type: "ARRAY", Items: str},
		},
		Required: sectionFields,
	}
}

// responseSchema схема, которой обязан следовать ответ модели:
//
//	{
//	  overallScore: number,
//	  lodTarget: string,
//	  elementName: string,
//	  summary: string,
//	  geometry:    { score, status, observations[], missing[], recommendations[] },
//	  parameters:  { same shape },
//	  information: { same shape }
//	}
func responseSchema() *schema {
	return &schema{
		Type: "OBJECT",
		Properties: map[string]*schema{
			"overallScore": {Type: "NUMBER", Description: "0 to 100 compliance score"},
			"lodTarget":    {Type: "STRING"},
			"elementName":  {Type: "STRING", Description: "Identified element name"},
			"summary":      {Type: "STRING", Description: "Executive summary of the check in English (with Arabic translation in parentheses if useful)"},
			"geometry":     sectionSchema(),
			"parameters":   sectionSchema(),
			"information":  sectionSchema(),
		},
		Required: []string{"overallScore", "lodTarget", "elementName", "summary", "geometry", "parameters", "information"},
	}
}

// wireSection поля-указатели отличают «нет поля» от нулевого значения,
// для списков это делает сам nil
type wireSection struct {
	Score           *float64 `json:"score" validate:"required,min=0,max=100"`
	Status          *string  `json:"status" validate:"required,oneof=Compliant Partial Non-Compliant"`
	Observations    []string `json:"observations" validate:"required"`
	Missing         []string `json:"missing" validate:"required"`
	Recommendations []string `json:"recommendations" validate:"required"`
}

type wireResult struct {
	OverallScore *float64     `json:"overallScore" validate:"required,min=0,max=100"`
	LODTarget    *string      `json:"lodTarget" validate:"required"`
	ElementName  *string      `json:"elementName" validate:"required"`
	Summary      *string      `json:"summary" validate:"required"`
	Geometry     *wireSection `json:"geometry" validate:"required"`
	Parameters   *wireSection `json:"parameters" validate:"required"`
	Information  *wireSection `json:"information" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// В деталях ошибок используем имена полей JSON
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseResult строго разбирает текст ответа в отчёт.
// Любое отсутствующее или неверное поле считается ошибкой схемы, значения не подставляются.
func ParseResult(text string) (*entity.AnalysisResult, error) {
	var w wireResult
	if err := json.Unmarshal([]byte(cleanJSON(text)), &w); err != nil {
		return nil, errorx.NewSchemaError(err)
	}

	if err := validate.Struct(&w); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]errorx.ErrorDetail, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, errorx.ErrorDetail{
					Path: strings.TrimPrefix(fe.Namespace(), "wireResult."),
					Info: validationMessage(fe),
				})
			}
			return nil, errorx.NewSchemaError(nil, details...)
		}
		return nil, errorx.NewSchemaError(err)
	}

	return &entity.AnalysisResult{
		OverallScore: score(*w.OverallScore),
		LODTarget:    *w.LODTarget,
		ElementName:  *w.ElementName,
		Summary:      *w.Summary,
		Geometry:     w.Geometry.toEntity(),
		Parameters:   w.Parameters.toEntity(),
		Information:  w.Information.toEntity(),
	}, nil
}

func (s *wireSection) toEntity() entity.AnalysisSection {
	// статус уже проверен oneof, ошибка здесь невозможна
	status, _ := entity.ParseComplianceStatus(*s.Status)
	return entity.AnalysisSection{
		Score:           score(*s.Score),
		Status:          status,
		Observations:    s.Observations,
		Missing:         s.Missing,
		Recommendations: s.Recommendations,
	}
}

func score(v float64) int {
	return int(math.Round(v))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "is invalid"
	}
}

// cleanJSON убирает markdown-ограждение, которое модель иногда добавляет вокруг JSON
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
