package server

import (
	"time"

	"lod-checker/internal/domain/entity"
)

type createSessionRequest struct {
	Target string `json:"target" binding:"omitempty,max=16"`
}

type imageRequest struct {
	DataURL string `json:"dataUrl" binding:"required,startswith=data:"`
}

// configRequest меняет только переданные поля
type configRequest struct {
	Target      *string `json:"target" binding:"omitempty,max=16"`
	ElementType *string `json:"elementType" binding:"omitempty,max=200"`
	Context     *string `json:"context" binding:"omitempty,max=2000"`
}

type imageResponse struct {
	MimeType string `json:"mimeType"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Size     int    `json:"size"`
	DataURL  string `json:"dataUrl,omitempty"`
}

type sessionResponse struct {
	ID          string                 `json:"id"`
	State       entity.SessionState    `json:"state"`
	Target      entity.LODLevel        `json:"target"`
	ElementType string                 `json:"elementType"`
	Context     string                 `json:"context"`
	Image       *imageResponse         `json:"image,omitempty"`
	Result      *entity.AnalysisResult `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Generation  uint64                 `json:"generation"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

type historyResponse struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	ImageURL  string                 `json:"imageUrl,omitempty"`
	Result    *entity.AnalysisResult `json:"result"`
}

// fromSession; preview добавляет data-URL изображения
func fromSession(s entity.Session, preview bool) sessionResponse {
	resp := sessionResponse{
		ID:          s.ID,
		State:       s.State,
		Target:      s.Target,
		ElementType: s.ElementType,
		Context:     s.Context,
		Result:      s.Result,
		Error:       s.Error,
		Generation:  s.Generation,
		UpdatedAt:   s.UpdatedAt,
	}
	if s.Image != nil {
		resp.Image = &imageResponse{
			MimeType: s.Image.MimeType,
			Width:    s.Image.Width,
			Height:   s.Image.Height,
			Size:     s.Image.Size,
		}
		if preview {
			resp.Image.DataURL = s.Image.DataURL
		}
	}
	return resp
}

func fromHistory(items []entity.HistoryItem, preview bool) []historyResponse {
	out := make([]historyResponse, 0, len(items))
	for _, item := range items {
		h := historyResponse{
			ID:        item.ID,
			Timestamp: item.Timestamp,
			Result:    item.Result,
		}
		if preview {
			h.ImageURL = item.ImageURL
		}
		out = append(out, h)
	}
	return out
}
