package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"lod-checker/internal/domain/entity"
	"lod-checker/internal/report"
)

var (
	titleStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	labelStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(10)
	focusedLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("69")).Bold(true).Width(10)
	lodStyle          = lipgloss.NewStyle().Padding(0, 1)
	selectedLODStyle  = lipgloss.NewStyle().Padding(0, 1).Reverse(true)
	hintStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	barStyle          = lipgloss.NewStyle().Reverse(true).Padding(0, 1)
)

func toneColor(t report.Tone) lipgloss.Color {
	switch t {
	case report.ToneGood:
		return lipgloss.Color("46") // green
	case report.ToneWarn:
		return lipgloss.Color("214") // yellow
	default:
		return lipgloss.Color("196") // red
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("BIM LOD Compliance Checker"))
	b.WriteString("\n\n")

	b.WriteString(m.label(FieldPath, "Image") + m.path.View() + "\n")
	b.WriteString(strings.Repeat(" ", 10) + hintStyle.Render(m.imageLine()) + "\n")
	b.WriteString(m.label(FieldLOD, "Target") + m.lodSelector() + "\n")
	b.WriteString(strings.Repeat(" ", 10) + hintStyle.Render(m.session.Target.Hint()) + "\n")
	b.WriteString(m.label(FieldElement, "Element") + m.element.View() + "\n")
	b.WriteString(m.label(FieldContext, "Context") + m.extra.View() + "\n\n")

	switch {
	case m.analyzing:
		b.WriteString(fmt.Sprintf("%s Analyzing %s against %s...\n", m.spinner.View(), elementLabel(m.element.Value()), m.session.Target))
	case m.notice != nil:
		b.WriteString(RenderNotice(m.notice, m.width) + "\n")
	}

	if m.session.State == entity.StateCompleted {
		b.WriteString(m.report.View() + "\n")
	}

	b.WriteString(RenderBottomBar(m))
	return b.String()
}

func (m Model) label(f Field, text string) string {
	if m.focus == f {
		return focusedLabelStyle.Render("› " + text)
	}
	return labelStyle.Render("  " + text)
}

func (m Model) imageLine() string {
	img := m.session.Image
	if img == nil {
		return "no image selected"
	}
	return fmt.Sprintf("%s %dx%d, %d KB", img.MimeType, img.Width, img.Height, (img.Size+1023)/1024)
}

func (m Model) lodSelector() string {
	parts := make([]string, 0, len(entity.LODLevels()))
	for i, level := range entity.LODLevels() {
		text := fmt.Sprintf("%d %s", i+1, level)
		if level == m.session.Target {
			parts = append(parts, selectedLODStyle.Render(text))
		} else {
			parts = append(parts, lodStyle.Render(text))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func elementLabel(v string) string {
	if strings.TrimSpace(v) == "" {
		return "element"
	}
	return strings.TrimSpace(v)
}

// RenderNotice рамка с сообщением: красная для ошибок, зелёная для остального
func RenderNotice(n *Notice, width int) string {
	if n == nil {
		return ""
	}

	style := lipgloss.NewStyle().
		Padding(0, 1).
		Border(lipgloss.RoundedBorder())

	if n.IsError {
		style = style.BorderForeground(lipgloss.Color("196"))
	} else {
		style = style.BorderForeground(lipgloss.Color("46"))
	}

	if width > 4 {
		style = style.Width(width - 4)
	}
	return style.Render(n.Message)
}

// RenderReport отчёт: шапка с итоговой оценкой и три карточки
func RenderReport(v report.View, width int) string {
	gaugeStyle := lipgloss.NewStyle().Bold(true).Foreground(toneColor(v.Gauge.Tone))

	header := lipgloss.JoinVertical(lipgloss.Left,
		lodStyle.Reverse(true).Render(v.LODTarget)+" "+lipgloss.NewStyle().Bold(true).Render(v.ElementName),
		gaugeStyle.Render(fmt.Sprintf("%s %d%%", gaugeBar(v.Gauge.Score, 20), v.Gauge.Score)),
		v.Summary,
	)

	cardWidth := width - 2
	horizontal := width >= 3*34
	if horizontal {
		cardWidth = width/3 - 2
	}

	cards := make([]string, 0, len(v.Cards))
	for _, card := range v.Cards {
		cards = append(cards, renderCard(card, cardWidth))
	}

	var body string
	if horizontal {
		body = lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left, cards...)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, "", body)
}

func renderCard(card report.Card, width int) string {
	color := toneColor(card.Badge.Tone)
	badge := lipgloss.NewStyle().Foreground(color).Bold(true).Render(card.Badge.Label)

	lines := []string{
		lipgloss.NewStyle().Bold(true).Render(card.Title) + fmt.Sprintf("  %d/100  ", card.Score) + badge,
	}
	for _, l := range card.Lists {
		lines = append(lines, "", hintStyle.Render(strings.ToUpper(l.Title)))
		for _, item := range l.Items {
			lines = append(lines, "• "+item)
		}
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1)
	if width > 4 {
		style = style.Width(width - 2)
	}
	return style.Render(strings.Join(lines, "\n"))
}

func gaugeBar(score, cells int) string {
	filled := score * cells / 100
	filled = min(max(filled, 0), cells)
	return strings.Repeat("█", filled) + strings.Repeat("░", cells-filled)
}

// RenderBottomBar подсказки по клавишам
func RenderBottomBar(m Model) string {
	hints := []string{"[tab] field", "[enter] load image", "[1/2/3 ←/→] LOD", "[ctrl+r] run", "[ctrl+x] remove", "[ctrl+n] new", "[ctrl+c] quit"}
	if m.analyzing {
		hints = []string{"[ctrl+n] new", "[ctrl+c] quit"}
	}
	if m.session.State == entity.StateCompleted {
		hints = []string{"[pgup/pgdn] scroll", "[ctrl+n] new check", "[ctrl+c] quit"}
	}
	return barStyle.Render(strings.Join(hints, " "))
}
