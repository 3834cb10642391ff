package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	app "lod-checker/internal/application"
	"lod-checker/internal/domain/entity"
	"lod-checker/internal/pkg/errorx"
	"lod-checker/internal/report"
)

// Field поле формы в фокусе
type Field int

const (
	FieldPath Field = iota
	FieldLOD
	FieldElement
	FieldContext
	fieldCount
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	// formHeight строки, занятые формой и нижней панелью
	formHeight = 14
)

// Notice сообщение под формой
type Notice struct {
	Message string
	IsError bool
}

// sessionMsg результат действия с формой
type sessionMsg struct {
	session entity.Session
	err     error
}

// analysisDoneMsg ответ сервиса применён контроллером
type analysisDoneMsg struct {
	run     int
	session entity.Session
	err     error
}

type Model struct {
	ctx        context.Context
	controller *app.Controller
	sessionID  string
	session    entity.Session

	path    textinput.Model
	element textinput.Model
	extra   textinput.Model
	focus   Field

	spinner   spinner.Model
	report    viewport.Model
	analyzing bool
	runs      int // номер последнего запуска, ответы прежних запусков игнорируются
	notice    *Notice

	width  int
	height int
}

func NewModel(ctx context.Context, controller *app.Controller, sessionID string) Model {
	path := textinput.New()
	path.Placeholder = "path to a PNG/JPEG screenshot (drop a file here)"
	path.CharLimit = 4096
	path.Width = 60
	path.Focus()

	element := textinput.New()
	element.Placeholder = "e.g. Steel Beam, Duct Fitting (optional)"
	element.CharLimit = 200
	element.Width = 60

	extra := textinput.New()
	extra.Placeholder = "extra context for the reviewer (optional)"
	extra.CharLimit = 2000
	extra.Width = 60

	m := Model{
		ctx:        ctx,
		controller: controller,
		sessionID:  sessionID,
		path:       path,
		element:    element,
		extra:      extra,
		focus:      FieldPath,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		report:     viewport.New(defaultWidth, defaultHeight-formHeight),
		width:      defaultWidth,
		height:     defaultHeight,
	}
	if s, err := controller.Snapshot(ctx, sessionID); err == nil {
		m.session = s
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.report.Width = typed.Width
		m.report.Height = max(typed.Height-formHeight, 5)
		m.refreshReport()
		return m, nil

	case spinner.TickMsg:
		if !m.analyzing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd

	case sessionMsg:
		// сброс или новое изображение во время проверки снимают блокировку формы
		if typed.session.ID != "" && typed.session.State != entity.StateAnalyzing {
			m.analyzing = false
		}
		m.apply(typed.session, typed.err)
		return m, nil

	case analysisDoneMsg:
		if typed.run != m.runs {
			return m, nil
		}
		m.analyzing = false
		m.apply(typed.session, typed.err)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(typed)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab":
		return m.setFocus((m.focus + 1) % fieldCount), nil
	case "shift+tab":
		return m.setFocus((m.focus + fieldCount - 1) % fieldCount), nil
	case "ctrl+r":
		return m.run()
	case "ctrl+n":
		m.path.SetValue("")
		m.element.SetValue("")
		m.extra.SetValue("")
		return m.setFocus(FieldPath), m.resetCmd()
	case "ctrl+x":
		return m, m.clearCmd()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.report, cmd = m.report.Update(msg)
		return m, cmd
	}

	switch m.focus {
	case FieldLOD:
		if target, ok := m.targetForKey(msg.String()); ok {
			return m, m.targetCmd(target)
		}
		return m, nil
	case FieldPath:
		if msg.Type == tea.KeyEnter {
			return m, m.loadCmd(m.path.Value())
		}
	case FieldElement, FieldContext:
		if msg.Type == tea.KeyEnter {
			return m.setFocus((m.focus + 1) % fieldCount), nil
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case FieldPath:
		m.path, cmd = m.path.Update(msg)
	case FieldElement:
		m.element, cmd = m.element.Update(msg)
	case FieldContext:
		m.extra, cmd = m.extra.Update(msg)
	}
	return m, cmd
}

// targetForKey: 1/2/3 выбирают уровень, стрелки листают без переноса
func (m Model) targetForKey(key string) (entity.LODLevel, bool) {
	levels := entity.LODLevels()
	current := 0
	for i, l := range levels {
		if l == m.session.Target {
			current = i
		}
	}

	switch key {
	case "1", "2", "3":
		return levels[int(key[0]-'1')], true
	case "left", "h":
		return levels[max(current-1, 0)], true
	case "right", "l":
		return levels[min(current+1, len(levels)-1)], true
	}
	return "", false
}

func (m Model) setFocus(f Field) Model {
	m.focus = f
	m.path.Blur()
	m.element.Blur()
	m.extra.Blur()
	switch f {
	case FieldPath:
		m.path.Focus()
	case FieldElement:
		m.element.Focus()
	case FieldContext:
		m.extra.Focus()
	}
	return m
}

// run сохраняет поля формы и запускает проверку в tea.Cmd
func (m Model) run() (tea.Model, tea.Cmd) {
	if m.analyzing {
		return m, nil
	}
	switch m.session.State {
	case entity.StateStaged, entity.StateFailed:
	default:
		m.apply(m.session, noopReason(m.session.State))
		return m, nil
	}

	m.analyzing = true
	m.runs++
	m.notice = nil
	run := m.runs
	elementType := strings.TrimSpace(m.element.Value())
	extra := strings.TrimSpace(m.extra.Value())

	ctx, controller, id := m.ctx, m.controller, m.sessionID
	analyze := func() tea.Msg {
		if _, err := controller.Configure(ctx, id, app.ConfigPatch{ElementType: &elementType, Context: &extra}); err != nil {
			return analysisDoneMsg{run: run, err: err}
		}
		s, err := controller.Analyze(ctx, id)
		return analysisDoneMsg{run: run, session: s, err: err}
	}
	return m, tea.Batch(m.spinner.Tick, analyze)
}

func (m Model) loadCmd(raw string) tea.Cmd {
	ctx, controller, id := m.ctx, m.controller, m.sessionID
	return func() tea.Msg {
		data, err := os.ReadFile(cleanPath(raw))
		if err != nil {
			return sessionMsg{err: errorx.Decode("%v", err)}
		}
		s, err := controller.SelectImage(ctx, id, data)
		return sessionMsg{session: s, err: err}
	}
}

func (m Model) targetCmd(target entity.LODLevel) tea.Cmd {
	ctx, controller, id := m.ctx, m.controller, m.sessionID
	return func() tea.Msg {
		s, err := controller.SetTarget(ctx, id, target)
		return sessionMsg{session: s, err: err}
	}
}

func (m Model) resetCmd() tea.Cmd {
	ctx, controller, id := m.ctx, m.controller, m.sessionID
	return func() tea.Msg {
		s, err := controller.Reset(ctx, id)
		return sessionMsg{session: s, err: err}
	}
}

func (m Model) clearCmd() tea.Cmd {
	ctx, controller, id := m.ctx, m.controller, m.sessionID
	return func() tea.Msg {
		s, err := controller.ClearImage(ctx, id)
		return sessionMsg{session: s, err: err}
	}
}

// apply показывает новое состояние сессии или ошибку действия
func (m *Model) apply(s entity.Session, err error) {
	if s.ID != "" {
		m.session = s
	}

	switch {
	case errors.Is(err, entity.ErrStaleResult):
		// форма уже сменилась, ответ не нужен
		m.notice = nil
	case errors.Is(err, errorx.ErrDecode):
		m.notice = &Notice{Message: errorx.MsgDecodeFailed, IsError: true}
	case err != nil:
		m.notice = &Notice{Message: err.Error(), IsError: true}
	case s.State == entity.StateFailed:
		m.notice = &Notice{Message: s.Error, IsError: true}
	case s.State == entity.StateStaged && s.Image != nil:
		m.notice = &Notice{Message: "Image staged. Press ctrl+r to run the check."}
	default:
		m.notice = nil
	}

	m.refreshReport()
}

func (m *Model) refreshReport() {
	if m.session.State != entity.StateCompleted || m.session.Result == nil {
		m.report.SetContent("")
		return
	}
	m.report.SetContent(RenderReport(report.Build(m.session.Result), m.report.Width))
	m.report.GotoTop()
}

func noopReason(state entity.SessionState) error {
	switch state {
	case entity.StateAnalyzing:
		return entity.ErrAnalysisInFlight
	case entity.StateCompleted:
		return entity.ErrAlreadyCompleted
	default:
		return entity.ErrNothingStaged
	}
}

// cleanPath убирает кавычки и экранирование, которые терминал добавляет при перетаскивании файла
func cleanPath(raw string) string {
	p := strings.TrimSpace(raw)
	p = strings.Trim(p, `"'`)
	p = strings.ReplaceAll(p, `\ `, " ")
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, rest)
		}
	}
	return p
}
