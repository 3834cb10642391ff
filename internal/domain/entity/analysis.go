package entity

import "fmt"

// ComplianceStatus вердикт по одному аспекту проверки
type ComplianceStatus string

const (
	StatusCompliant    ComplianceStatus = "Compliant"
	StatusPartial      ComplianceStatus = "Partial"
	StatusNonCompliant ComplianceStatus = "Non-Compliant"
)

// ParseComplianceStatus строго сопоставляет строку с одним из трёх литералов.
func ParseComplianceStatus(s string) (ComplianceStatus, error) {
	switch ComplianceStatus(s) {
	case StatusCompliant, StatusPartial, StatusNonCompliant:
		return ComplianceStatus(s), nil
	}
	return "", fmt.Errorf("unknown compliance status %q", s)
}

// AnalysisSection результат по одному аспекту: геометрия, параметры или информация
type AnalysisSection struct {
	Score           int              `json:"score"`
	Status          ComplianceStatus `json:"status"`
	Observations    []string         `json:"observations"`
	Missing         []string         `json:"missing"`
	Recommendations []string         `json:"recommendations"`
}

// AnalysisResult итоговый отчёт о соответствии элемента целевому LOD.
// После создания не изменяется.
type AnalysisResult struct {
	OverallScore int             `json:"overallScore"`
	LODTarget    string          `json:"lodTarget"`
	ElementName  string          `json:"elementName"`
	Summary      string          `json:"summary"`
	Geometry     AnalysisSection `json:"geometry"`
	Parameters   AnalysisSection `json:"parameters"`
	Information  AnalysisSection `json:"information"`
}

// AnalysisRequest входные данные одной проверки
type AnalysisRequest struct {
	Image       *EncodedImage
	Target      LODLevel
	ElementType string
	Context     string
}
