package entity

import "time"

// HistoryItem завершённая проверка в истории сессии
type HistoryItem struct {
	ID        string
	SessionID string
	Timestamp time.Time
	ImageURL  string
	Result    *AnalysisResult
}
