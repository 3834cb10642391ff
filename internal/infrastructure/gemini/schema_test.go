package gemini

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"lod-checker/internal/pkg/errorx"
)

func TestParseResult_FencedJSONAndRounding(t *testing.T) {
	text := "```json\n" + strings.Replace(validReport, `"overallScore": 72`, `"overallScore": 71.6`, 1) + "\n```"

	result, err := ParseResult(text)
	require.NoError(t, err)
	require.Equal(t, 72, result.OverallScore)
}

func TestParseResult_Violations(t *testing.T) {
	cases := map[string]struct {
		text string
		path string
	}{
		"not json":       {text: "LOD 400 looks fine", path: ""},
		"unknown status": {text: strings.Replace(validReport, `"status": "Partial", "observations": ["Exact profile"]`, `"status": "Mostly", "observations": ["Exact profile"]`, 1), path: "geometry.status"},
		"score too high": {text: strings.Replace(validReport, `"overallScore": 72`, `"overallScore": 140`, 1), path: "overallScore"},
		"negative score": {text: strings.Replace(validReport, `"score": 65`, `"score": -1`, 1), path: "parameters.score"},
		"missing list":   {text: strings.Replace(validReport, `"missing": ["Fire rating"], `, ``, 1), path: "parameters.missing"},
		"null summary":   {text: strings.Replace(validReport, `"summary": "Geometry is precise but connections are schematic."`, `"summary": null`, 1), path: "summary"},
		"mistyped score": {text: strings.Replace(validReport, `"overallScore": 72`, `"overallScore": "72"`, 1), path: ""},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			result, err := ParseResult(tc.text)
			require.Nil(t, result)
			require.ErrorIs(t, err, errorx.ErrSchemaViolation)

			if tc.path != "" {
				var schemaErr *errorx.SchemaError
				require.ErrorAs(t, err, &schemaErr)
				require.NotEmpty(t, schemaErr.Details)
				require.Equal(t, tc.path, schemaErr.Details[0].Path)
			}
		})
	}
}

func TestParseResult_ZeroScoreIsValid(t *testing.T) {
	text := strings.Replace(validReport, `"overallScore": 72`, `"overallScore": 0`, 1)

	result, err := ParseResult(text)
	require.NoError(t, err)
	require.Equal(t, 0, result.OverallScore)
}
