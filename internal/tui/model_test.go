package tui

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	app "lod-checker/internal/application"
	"lod-checker/internal/domain/entity"
	"lod-checker/internal/infrastructure/imaging"
	"lod-checker/internal/infrastructure/storage"
	"lod-checker/internal/pkg/errorx"
	"lod-checker/internal/report"
)

type stubAnalyzer struct {
	result  *entity.AnalysisResult
	err     error
	started chan struct{}
	release chan struct{} // если задан, Analyze ждёт сигнала
}

func (s *stubAnalyzer) Analyze(ctx context.Context, req entity.AnalysisRequest) (*entity.AnalysisResult, error) {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	return s.result, s.err
}

func sampleResult() *entity.AnalysisResult {
	return &entity.AnalysisResult{
		OverallScore: 72,
		LODTarget:    "LOD 500",
		ElementName:  "Chiller",
		Summary:      "Asset data incomplete",
		Geometry:     entity.AnalysisSection{Score: 72, Status: entity.StatusPartial, Observations: []string{"Casing modeled"}},
		Parameters:   entity.AnalysisSection{Score: 90, Status: entity.StatusCompliant},
		Information:  entity.AnalysisSection{Score: 40, Status: entity.StatusNonCompliant, Missing: []string{"Serial number"}},
	}
}

func newTestModel(t *testing.T, analyzer *stubAnalyzer) Model {
	t.Helper()
	controller := app.NewController(
		storage.NewMemorySessionRepository(entity.LOD300),
		storage.NewMemoryHistoryRepository(5),
		analyzer,
		app.NewIngestor(imaging.NewDecoder(), 0),
		nil,
	)
	return NewModel(context.Background(), controller, "test")
}

func writePNG(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 6))))
	path := filepath.Join(t.TempDir(), "model view.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

// send прогоняет сообщение через Update и выполняет все получившиеся команды
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, cmd := m.Update(msg)
	m = updated.(Model)
	for _, out := range runCmd(cmd) {
		switch out.(type) {
		case sessionMsg, analysisDoneMsg:
			updated, _ = m.Update(out)
			m = updated.(Model)
		}
	}
	return m
}

// runCmd выполняет команду; таймеры вроде мигания курсора отбрасываются по таймауту
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}

	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()

	var msg tea.Msg
	select {
	case msg = <-ch:
	case <-time.After(100 * time.Millisecond):
		return nil
	}

	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runCmd(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestUpdateQuitCommand(t *testing.T) {
	m := newTestModel(t, &stubAnalyzer{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	require.True(t, ok)
}

func TestFullCheckFlow(t *testing.T) {
	m := newTestModel(t, &stubAnalyzer{result: sampleResult()})

	// путь в кавычках, как при перетаскивании файла в терминал
	m.path.SetValue(`"` + writePNG(t) + `"`)
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, entity.StateStaged, m.session.State)
	require.Contains(t, m.View(), "image/png 8x6")

	m = send(t, m, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, FieldLOD, m.focus)
	m = send(t, m, key("2"))
	require.Equal(t, entity.LOD400, m.session.Target)
	m = send(t, m, tea.KeyMsg{Type: tea.KeyRight})
	require.Equal(t, entity.LOD500, m.session.Target)
	m = send(t, m, tea.KeyMsg{Type: tea.KeyRight})
	require.Equal(t, entity.LOD500, m.session.Target, "no wrap past the last level")

	m = send(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = send(t, m, key("Chiller"))
	require.Equal(t, "Chiller", m.element.Value())

	m = send(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	require.False(t, m.analyzing)
	require.Equal(t, entity.StateCompleted, m.session.State)
	require.Equal(t, "Chiller", m.session.ElementType)

	view := m.View()
	require.Contains(t, view, "PARTIAL")
	require.Contains(t, view, "72%")

	m = send(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	require.Equal(t, entity.StateIdle, m.session.State)
	require.Equal(t, entity.LOD500, m.session.Target)
	require.Empty(t, m.element.Value())
	require.Equal(t, FieldPath, m.focus)
}

func TestRunWithoutImage(t *testing.T) {
	m := newTestModel(t, &stubAnalyzer{result: sampleResult()})

	m = send(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	require.False(t, m.analyzing)
	require.NotNil(t, m.notice)
	require.Equal(t, entity.ErrNothingStaged.Error(), m.notice.Message)
	require.Equal(t, entity.StateIdle, m.session.State)
}

func TestAnalysisFailureShowsGenericMessage(t *testing.T) {
	m := newTestModel(t, &stubAnalyzer{err: errorx.ErrTransport})

	m.path.SetValue(writePNG(t))
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = send(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})

	require.Equal(t, entity.StateFailed, m.session.State)
	require.True(t, m.notice.IsError)
	require.Equal(t, errorx.MsgAnalysisFailed, m.notice.Message)
	require.Contains(t, m.View(), errorx.MsgAnalysisFailed)
}

func TestLoadBrokenFile(t *testing.T) {
	m := newTestModel(t, &stubAnalyzer{})

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o600))
	m.path.SetValue(path)
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	require.Equal(t, entity.StateIdle, m.session.State)
	require.Equal(t, errorx.MsgDecodeFailed, m.notice.Message)

	m.path.SetValue(filepath.Join(t.TempDir(), "missing.png"))
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, errorx.MsgDecodeFailed, m.notice.Message)
}

func TestDigitsGoToTextFields(t *testing.T) {
	m := newTestModel(t, &stubAnalyzer{})

	m = send(t, m, key("3"))
	require.Equal(t, "3", m.path.Value())
	require.Equal(t, entity.LOD300, m.session.Target)
}

func TestRenderReportLayouts(t *testing.T) {
	v := report.Build(sampleResult())

	narrow := RenderReport(v, 60)
	wide := RenderReport(v, 150)
	for _, out := range []string{narrow, wide} {
		require.Contains(t, out, "Geometry")
		require.Contains(t, out, "Information Level")
		require.Contains(t, out, "NON-COMPLIANT")
		require.Contains(t, out, "Serial number")
	}
	require.Greater(t, strings.Count(narrow, "\n"), strings.Count(wide, "\n"))
}

func TestGaugeBar(t *testing.T) {
	require.Equal(t, "██████████", gaugeBar(100, 10))
	require.Equal(t, "███████░░░", gaugeBar(72, 10))
	require.Equal(t, "░░░░░░░░░░", gaugeBar(0, 10))
}

func TestCleanPath(t *testing.T) {
	require.Equal(t, "/tmp/my model.png", cleanPath(` '/tmp/my model.png' `))
	require.Equal(t, "/tmp/my model.png", cleanPath(`/tmp/my\ model.png`))
}

func TestResetDuringAnalysisUnlocksForm(t *testing.T) {
	analyzer := &stubAnalyzer{
		result:  sampleResult(),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	m := newTestModel(t, analyzer)
	path := writePNG(t)

	m.path.SetValue(path)
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, entity.StateStaged, m.session.State)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	m = updated.(Model)
	require.True(t, m.analyzing)

	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	pending := make(chan tea.Msg, len(batch))
	for _, c := range batch {
		if c == nil {
			continue
		}
		go func(c tea.Cmd) { pending <- c() }(c)
	}
	<-analyzer.started

	m = send(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	require.Equal(t, entity.StateIdle, m.session.State)
	require.False(t, m.analyzing)

	m.path.SetValue(path)
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, entity.StateStaged, m.session.State)

	updated, second := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	m = updated.(Model)
	require.True(t, m.analyzing)

	// ответ первого запуска приходит во время второго и не снимает блокировку
	close(analyzer.release)
	deadline := time.After(time.Second)
	for stale := false; !stale; {
		select {
		case out := <-pending:
			if done, ok := out.(analysisDoneMsg); ok {
				require.ErrorIs(t, done.err, entity.ErrStaleResult)
				updated, _ = m.Update(done)
				m = updated.(Model)
				stale = true
			}
		case <-deadline:
			t.Fatal("first analysis did not finish")
		}
	}
	require.True(t, m.analyzing)

	for _, out := range runCmd(second) {
		if done, ok := out.(analysisDoneMsg); ok {
			updated, _ = m.Update(done)
			m = updated.(Model)
		}
	}
	require.False(t, m.analyzing)
	require.Equal(t, entity.StateCompleted, m.session.State)
}
