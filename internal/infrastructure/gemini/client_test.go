package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"lod-checker/internal/domain/entity"
	"lod-checker/internal/pkg/errorx"
)

const validReport = `{
  "overallScore": 72,
  "lodTarget": "LOD 400",
  "elementName": "Steel Beam W12x26",
  "summary": "Geometry is precise but connections are schematic.",
  "geometry": {"score": 80, "status": "Partial", "observations": ["Exact profile"], "missing": ["Bolts"], "recommendations": ["Model bolt groups"]},
  "parameters": {"score": 65, "status": "Partial", "observations": [], "missing": ["Fire rating"], "recommendations": []},
  "information": {"score": 70, "status": "Non-Compliant", "observations": [], "missing": [], "recommendations": ["Add fabrication notes"]},
  "confidence": "high"
}`

func candidateEnvelope(text string) []byte {
	body, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{
				"content":      map[string]any{"parts": []any{map[string]any{"text": text}}},
				"finishReason": "STOP",
			},
		},
		"usageMetadata": map[string]any{"promptTokenCount": 10, "candidatesTokenCount": 20, "totalTokenCount": 30},
	})
	return body
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{APIKey: "test-key", Model: "gemini-test", BaseURL: srv.URL}, nil)
}

func testRequest() entity.AnalysisRequest {
	return entity.AnalysisRequest{
		Image:       &entity.EncodedImage{MimeType: "image/jpeg", Payload: "aGVsbG8="},
		Target:      entity.LOD400,
		ElementType: "Structural Beam",
	}
}

func TestClient_AnalyzeSendsContract(t *testing.T) {
	var captured generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &captured))

		_, _ = w.Write(candidateEnvelope(validReport))
	})

	result, err := client.Analyze(context.Background(), testRequest())
	require.NoError(t, err)

	require.Equal(t, 72, result.OverallScore)
	require.Equal(t, "Steel Beam W12x26", result.ElementName)
	require.Equal(t, entity.StatusPartial, result.Geometry.Status)
	require.Equal(t, entity.StatusNonCompliant, result.Information.Status)
	require.Equal(t, []string{"Bolts"}, result.Geometry.Missing)
	require.Empty(t, result.Parameters.Observations)

	require.NotNil(t, captured.SystemInstruction)
	require.Contains(t, captured.SystemInstruction.Parts[0].Text, "VDC Coordinator")
	require.Len(t, captured.Contents, 1)
	parts := captured.Contents[0].Parts
	require.Len(t, parts, 2)
	require.Equal(t, "image/jpeg", parts[0].InlineData.MimeType)
	require.Equal(t, "aGVsbG8=", parts[0].InlineData.Data)
	require.Contains(t, parts[1].Text, "Element Type: Structural Beam.")
	require.Contains(t, parts[1].Text, "Target LOD: LOD 400.")
	require.Contains(t, parts[1].Text, "Additional Context: None.")

	require.Equal(t, "application/json", captured.GenerationConfig.ResponseMimeType)
	rs := captured.GenerationConfig.ResponseSchema
	require.ElementsMatch(t, []string{"overallScore", "lodTarget", "elementName", "summary", "geometry", "parameters", "information"}, rs.Required)
	require.Equal(t, []string{"Compliant", "Partial", "Non-Compliant"}, rs.Properties["geometry"].Properties["status"].Enum)
}

func TestClient_AnalyzeRejectsMissingSection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(candidateEnvelope(`{
			"overallScore": 72, "lodTarget": "LOD 400", "elementName": "Beam", "summary": "s",
			"geometry": {"score": 80, "status": "Partial", "observations": [], "missing": [], "recommendations": []},
			"parameters": {"score": 80, "status": "Partial", "observations": [], "missing": [], "recommendations": []}
		}`))
	})

	result, err := client.Analyze(context.Background(), testRequest())
	require.Nil(t, result)
	require.ErrorIs(t, err, errorx.ErrSchemaViolation)

	var schemaErr *errorx.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Equal(t, "information", schemaErr.Details[0].Path)
}

func TestClient_AnalyzeTransportFailures(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota"}}`, http.StatusTooManyRequests)
	})
	_, err := client.Analyze(context.Background(), testRequest())
	require.ErrorIs(t, err, errorx.ErrTransport)

	client = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	})
	_, err = client.Analyze(context.Background(), testRequest())
	require.ErrorIs(t, err, errorx.ErrEmptyResponse)

	client = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback": {"blockReason": "SAFETY"}}`))
	})
	_, err = client.Analyze(context.Background(), testRequest())
	require.ErrorIs(t, err, errorx.ErrEmptyResponse)

	client = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(candidateEnvelope("   "))
	})
	_, err = client.Analyze(context.Background(), testRequest())
	require.ErrorIs(t, err, errorx.ErrEmptyResponse)
}

func TestClient_AnalyzeRequiresPayload(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	_, err := client.Analyze(context.Background(), entity.AnalysisRequest{Target: entity.LOD300})
	require.ErrorIs(t, err, errorx.ErrTransport)
	require.Zero(t, calls)
}
