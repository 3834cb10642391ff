package telegram

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	app "lod-checker/internal/application"
	"lod-checker/internal/domain/entity"
	"lod-checker/internal/infrastructure/imaging"
	"lod-checker/internal/infrastructure/storage"
	"lod-checker/internal/pkg/errorx"
	"lod-checker/internal/pkg/logger"
)

type sentMessage struct {
	text      string
	parseMode string
	keyboard  *tgbotapi.InlineKeyboardMarkup
}

type fakeSender struct {
	mu        sync.Mutex
	messages  []sentMessage
	callbacks int
	notify    chan sentMessage
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
	sent := sentMessage{text: msg.Text, parseMode: msg.ParseMode}
	if kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
		sent.keyboard = &kb
	}

	f.mu.Lock()
	f.messages = append(f.messages, sent)
	f.mu.Unlock()
	if f.notify != nil {
		f.notify <- sent
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	f.callbacks++
	f.mu.Unlock()
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[len(f.messages)-1]
}

type stubAnalyzer struct {
	result *entity.AnalysisResult
	err    error
}

func (s *stubAnalyzer) Analyze(ctx context.Context, req entity.AnalysisRequest) (*entity.AnalysisResult, error) {
	return s.result, s.err
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func newTestBot(t *testing.T, analyzer *stubAnalyzer) (*Bot, *fakeSender) {
	t.Helper()
	controller := app.NewController(
		storage.NewMemorySessionRepository(entity.LOD300),
		storage.NewMemoryHistoryRepository(5),
		analyzer,
		app.NewIngestor(imaging.NewDecoder(), 0),
		nil,
	)
	sender := &fakeSender{notify: make(chan sentMessage, 16)}
	b := newBot(sender, controller, logger.Nop())
	data := pngBytes(t)
	b.fetch = func(fileID string) ([]byte, error) {
		if fileID == "broken" {
			return []byte("not an image"), nil
		}
		return data, nil
	}
	return b, sender
}

func command(chatID int64, text string) *tgbotapi.Message {
	name, _, _ := strings.Cut(text, " ")
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}
}

func photo(chatID int64, fileID string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: chatID},
		Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: fileID}},
	}
}

func waitFor(t *testing.T, sender *fakeSender, match func(sentMessage) bool) sentMessage {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case m := <-sender.notify:
			if match(m) {
				return m
			}
		case <-deadline:
			t.Fatal("expected message was not sent")
		}
	}
}

func TestBot_PhotoThenAnalyze(t *testing.T) {
	result := &entity.AnalysisResult{
		OverallScore: 72,
		LODTarget:    "LOD 400",
		ElementName:  "Steel Beam",
		Summary:      "Connections missing",
		Geometry:     entity.AnalysisSection{Score: 70, Status: entity.StatusPartial},
		Parameters:   entity.AnalysisSection{Score: 80, Status: entity.StatusCompliant},
		Information:  entity.AnalysisSection{Score: 60, Status: entity.StatusNonCompliant},
	}
	b, sender := newTestBot(t, &stubAnalyzer{result: result})
	ctx := context.Background()

	b.handleMessage(ctx, photo(1, "big"))
	staged := sender.last()
	require.Contains(t, staged.text, "LOD 300")
	require.NotNil(t, staged.keyboard)
	require.Len(t, staged.keyboard.InlineKeyboard, 2)

	b.handleUpdate(ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    "lod:400",
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}},
	}})
	require.Contains(t, sender.last().text, "LOD 400")
	require.Equal(t, 1, sender.callbacks)

	b.handleMessage(ctx, command(1, "/analyze"))
	report := waitFor(t, sender, func(m sentMessage) bool { return m.parseMode == tgbotapi.ModeHTML })
	require.Contains(t, report.text, "Steel Beam")
	require.Contains(t, report.text, "PARTIAL")

	b.handleMessage(ctx, command(1, "/history"))
	require.Contains(t, sender.last().text, "Steel Beam · LOD 400 · 72%")
}

func TestBot_FailureShowsGenericMessage(t *testing.T) {
	b, sender := newTestBot(t, &stubAnalyzer{err: errorx.ErrTransport})
	ctx := context.Background()

	b.handleMessage(ctx, photo(7, "big"))
	b.handleMessage(ctx, command(7, "/analyze"))

	m := waitFor(t, sender, func(m sentMessage) bool { return strings.Contains(m.text, errorx.MsgAnalysisFailed) })
	require.NotNil(t, m.keyboard, "retry button is offered")
}

func TestBot_AnalyzeWithoutImage(t *testing.T) {
	b, sender := newTestBot(t, &stubAnalyzer{})

	b.handleMessage(context.Background(), command(3, "/analyze"))
	require.Equal(t, msgSendImage, sender.last().text)
}

func TestBot_BrokenImage(t *testing.T) {
	b, sender := newTestBot(t, &stubAnalyzer{})

	b.handleMessage(context.Background(), photo(4, "broken"))
	require.Contains(t, sender.last().text, errorx.MsgDecodeFailed)
}

func TestBot_Commands(t *testing.T) {
	b, sender := newTestBot(t, &stubAnalyzer{})
	ctx := context.Background()

	b.handleMessage(ctx, command(5, "/lod 500"))
	require.Contains(t, sender.last().text, "LOD 500")

	b.handleMessage(ctx, command(5, "/lod 200"))
	require.Equal(t, msgLODUsage, sender.last().text)

	b.handleMessage(ctx, command(5, "/element Duct fitting"))
	require.Contains(t, sender.last().text, "Duct fitting")

	b.handleMessage(ctx, command(5, "/status"))
	require.Contains(t, sender.last().text, "LOD 500")
	require.Contains(t, sender.last().text, "Duct fitting")

	b.handleMessage(ctx, command(5, "/reset"))
	require.Contains(t, sender.last().text, "LOD 500")

	b.handleMessage(ctx, command(5, "/history"))
	require.Equal(t, msgNoHistory, sender.last().text)

	b.handleMessage(ctx, command(5, "/unknown"))
	require.Equal(t, msgUnknownCommand, sender.last().text)
}

func TestLODKeyboard(t *testing.T) {
	kb := lodKeyboard(entity.Session{Target: entity.LOD400, State: entity.StateIdle})
	require.Len(t, kb.InlineKeyboard, 1)

	row := kb.InlineKeyboard[0]
	require.Len(t, row, 3)
	require.Equal(t, "✅ LOD 400", row[1].Text)
	require.Equal(t, "lod:300", *row[0].CallbackData)
}

func TestSplitMessage(t *testing.T) {
	require.Equal(t, []string{"short"}, splitMessage("short", 10))

	chunks := splitMessage("aaaa\nbbbb\ncccc\n", 10)
	require.Equal(t, []string{"aaaa\nbbbb\n", "cccc\n"}, chunks)

	// длинная строка без переводов режется по границе руны
	for _, c := range splitMessage(strings.Repeat("я", 10), 5) {
		require.LessOrEqual(t, len(c), 5)
		require.True(t, strings.HasPrefix(c, "я"))
	}
}

func TestDescribeError(t *testing.T) {
	require.Equal(t, msgInFlight, describeError(entity.ErrAnalysisInFlight))
	require.Equal(t, msgLocked, describeError(entity.ErrFormLocked))
	require.Equal(t, msgInternalError, describeError(errors.New("boom")))
}

func TestBot_ProgressMessageComesBeforeReport(t *testing.T) {
	result := &entity.AnalysisResult{
		OverallScore: 90,
		LODTarget:    "LOD 300",
		ElementName:  "Column",
		Geometry:     entity.AnalysisSection{Score: 90, Status: entity.StatusCompliant},
		Parameters:   entity.AnalysisSection{Score: 90, Status: entity.StatusCompliant},
		Information:  entity.AnalysisSection{Score: 90, Status: entity.StatusCompliant},
	}
	b, sender := newTestBot(t, &stubAnalyzer{result: result})
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		chatID := int64(100 + i)
		b.handleMessage(ctx, photo(chatID, "big"))
		b.handleMessage(ctx, command(chatID, "/analyze"))
		waitFor(t, sender, func(m sentMessage) bool { return m.parseMode == tgbotapi.ModeHTML })

		sender.mu.Lock()
		texts := make([]string, 0, 2)
		for _, m := range sender.messages {
			if m.text == msgProcessing || m.parseMode == tgbotapi.ModeHTML {
				texts = append(texts, m.text)
			}
		}
		sender.messages = nil
		sender.mu.Unlock()

		require.Len(t, texts, 2)
		require.Equal(t, msgProcessing, texts[0])
	}
}
