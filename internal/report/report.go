// Package report превращает отчёт анализа в представление для показа пользователю.
package report

import (
	"fmt"
	"html"
	"strings"

	"lod-checker/internal/domain/entity"
)

// Tone цветовая категория оценки или статуса
type Tone string

const (
	ToneGood Tone = "good"
	ToneWarn Tone = "warn"
	ToneBad  Tone = "bad"
)

// Заголовки карточек и списков
const (
	TitleGeometry        = "Geometry"
	TitleParameters      = "Parameters"
	TitleInformation     = "Information Level"
	TitleObservations    = "Observations"
	TitleMissing         = "Missing Elements"
	TitleRecommendations = "Action Items"
)

// Gauge итоговая оценка
type Gauge struct {
	Score int  `json:"score"`
	Tone  Tone `json:"tone"`
}

// Badge метка статуса на карточке
type Badge struct {
	Label string `json:"label"`
	Tone  Tone   `json:"tone"`
}

// List именованный список пунктов карточки
type List struct {
	Title string   `json:"title"`
	Items []string `json:"items"`
}

// Card один аспект проверки. Пустые списки в Lists не попадают.
type Card struct {
	Title string `json:"title"`
	Score int    `json:"score"`
	Badge Badge  `json:"badge"`
	Lists []List `json:"lists,omitempty"`
}

// View всё, что нужно для отрисовки отчёта
type View struct {
	LODTarget   string `json:"lodTarget"`
	ElementName string `json:"elementName"`
	Summary     string `json:"summary"`
	Gauge       Gauge  `json:"gauge"`
	Cards       []Card `json:"cards"`
}

// GaugeTone: больше 85 хорошо, больше 60 предупреждение, иначе плохо
func GaugeTone(score int) Tone {
	switch {
	case score > 85:
		return ToneGood
	case score > 60:
		return ToneWarn
	default:
		return ToneBad
	}
}

// StatusBadge метка статуса в верхнем регистре
func StatusBadge(status entity.ComplianceStatus) Badge {
	b := Badge{Label: strings.ToUpper(string(status))}
	switch status {
	case entity.StatusCompliant:
		b.Tone = ToneGood
	case entity.StatusNonCompliant:
		b.Tone = ToneBad
	default:
		b.Tone = ToneWarn
	}
	return b
}

// Build строит представление отчёта
func Build(result *entity.AnalysisResult) View {
	if result == nil {
		return View{}
	}

	return View{
		LODTarget:   result.LODTarget,
		ElementName: result.ElementName,
		Summary:     result.Summary,
		Gauge: Gauge{
			Score: result.OverallScore,
			Tone:  GaugeTone(result.OverallScore),
		},
		Cards: []Card{
			buildCard(TitleGeometry, result.Geometry),
			buildCard(TitleParameters, result.Parameters),
			buildCard(TitleInformation, result.Information),
		},
	}
}

func buildCard(title string, section entity.AnalysisSection) Card {
	card := Card{
		Title: title,
		Score: section.Score,
		Badge: StatusBadge(section.Status),
	}

	for _, l := range []List{
		{Title: TitleObservations, Items: section.Observations},
		{Title: TitleMissing, Items: section.Missing},
		{Title: TitleRecommendations, Items: section.Recommendations},
	} {
		if len(l.Items) > 0 {
			card.Lists = append(card.Lists, l)
		}
	}
	return card
}

// Text простой текст для логов и ?format=text
func Text(v View) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "[%s] %s\n", v.LODTarget, v.ElementName)
	fmt.Fprintf(&sb, "Overall: %d%% (%s)\n", v.Gauge.Score, v.Gauge.Tone)
	if v.Summary != "" {
		sb.WriteString(v.Summary)
		sb.WriteString("\n")
	}

	for _, card := range v.Cards {
		fmt.Fprintf(&sb, "\n%s: %d/100 %s\n", card.Title, card.Score, card.Badge.Label)
		for _, l := range card.Lists {
			fmt.Fprintf(&sb, "  %s:\n", l.Title)
			for _, item := range l.Items {
				fmt.Fprintf(&sb, "    • %s\n", item)
			}
		}
	}

	return sb.String()
}

var toneMarks = map[Tone]string{
	ToneGood: "🟢",
	ToneWarn: "🟡",
	ToneBad:  "🔴",
}

// ToneMark эмодзи для тона
func ToneMark(t Tone) string {
	return toneMarks[t]
}

// HTML разметка для Telegram (parse_mode=HTML). Текст модели экранируется.
func HTML(v View) string {
	var sb strings.Builder
	esc := html.EscapeString

	fmt.Fprintf(&sb, "<b>%s</b> · <code>%s</code>\n", esc(v.ElementName), esc(v.LODTarget))
	fmt.Fprintf(&sb, "%s <b>%d%%</b>\n", ToneMark(v.Gauge.Tone), v.Gauge.Score)
	if v.Summary != "" {
		fmt.Fprintf(&sb, "\n<i>%s</i>\n", esc(v.Summary))
	}

	for _, card := range v.Cards {
		fmt.Fprintf(&sb, "\n%s <b>%s</b> %d/100 <code>%s</code>\n",
			ToneMark(card.Badge.Tone), esc(card.Title), card.Score, esc(card.Badge.Label))
		for _, l := range card.Lists {
			fmt.Fprintf(&sb, "<u>%s</u>\n", esc(l.Title))
			for _, item := range l.Items {
				fmt.Fprintf(&sb, "• %s\n", esc(item))
			}
		}
	}

	return sb.String()
}
