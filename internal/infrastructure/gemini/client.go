package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lod-checker/internal/domain/entity"
	"lod-checker/internal/domain/port"
	"lod-checker/internal/pkg/errorx"
	"lod-checker/internal/pkg/logger"
)

// Client вызывает Gemini generateContent и разбирает отчёт о соответствии LOD
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
}

// Options настройки клиента
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration // 0: ждём сколько потребуется
}

// NewClient создаёт клиент. Экземпляр создаётся при старте и передаётся туда, где нужен.
func NewClient(opts Options, log logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		apiKey:     opts.APIKey,
		model:      opts.Model,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: opts.Timeout},
		log:        log,
	}
}

// --- Структуры API Gemini ---

type generateRequest struct {
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Contents          []content         `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	ResponseSchema   *schema `json:"responseSchema"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Analyze выполняет одну проверку. Повторов нет: ошибка возвращается вызывающему один раз.
func (c *Client) Analyze(ctx context.Context, req entity.AnalysisRequest) (*entity.AnalysisResult, error) {
	if req.Image == nil || req.Image.Payload == "" {
		return nil, fmt.Errorf("%w: image payload is empty", errorx.ErrTransport)
	}

	text, err := c.generate(ctx, buildRequest(req))
	if err != nil {
		c.log.Errorf(ctx, "LOD analysis failed: %v", err)
		return nil, err
	}

	result, err := ParseResult(text)
	if err != nil {
		c.log.Errorf(ctx, "LOD analysis returned invalid report: %v", err)
		return nil, err
	}

	return result, nil
}

func buildRequest(req entity.AnalysisRequest) generateRequest {
	mimeType := req.Image.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}

	return generateRequest{
		SystemInstruction: &content{
			Parts: []part{{Text: SystemPrompt()}},
		},
		Contents: []content{
			{
				Role: "user",
				Parts: []part{
					{InlineData: &inlineData{MimeType: mimeType, Data: req.Image.Payload}},
					{Text: BuildPrompt(req.Target, req.ElementType, req.Context)},
				},
			},
		},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema(),
		},
	}
}

// generate отправляет запрос и возвращает текст первого кандидата
func (c *Client) generate(ctx context.Context, reqBody generateRequest) (string, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", errorx.ErrTransport, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errorx.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errorx.ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", errorx.ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: gemini API error %d: %s", errorx.ErrTransport, resp.StatusCode, truncate(string(respBody), 512))
	}

	var gr generateResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return "", fmt.Errorf("%w: parse gemini envelope: %v", errorx.ErrTransport, err)
	}

	if gr.UsageMetadata != nil {
		c.log.Infof(ctx, "gemini %s answered in %s (tokens: prompt=%d candidates=%d total=%d)",
			c.model, time.Since(started).Round(time.Millisecond),
			gr.UsageMetadata.PromptTokenCount, gr.UsageMetadata.CandidatesTokenCount, gr.UsageMetadata.TotalTokenCount)
	}

	if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked: %s", errorx.ErrEmptyResponse, gr.PromptFeedback.BlockReason)
	}
	if len(gr.Candidates) == 0 {
		return "", errorx.ErrEmptyResponse
	}

	var text strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		if reason := gr.Candidates[0].FinishReason; reason != "" {
			return "", fmt.Errorf("%w: finish reason %s", errorx.ErrEmptyResponse, reason)
		}
		return "", errorx.ErrEmptyResponse
	}

	return text.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Проверка реализации интерфейса
var _ port.ComplianceAnalyzer = (*Client)(nil)
