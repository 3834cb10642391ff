package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "lod-checker/internal/application"
	"lod-checker/internal/domain/entity"
	"lod-checker/internal/pkg/errorx"
	"lod-checker/internal/pkg/logger"
	"lod-checker/internal/report"
)

const (
	msgStart = `👋 Привет! Я проверяю BIM-модели на соответствие уровню проработки (LOD).

📸 Отправьте скриншот элемента модели, выберите целевой LOD и нажмите «Проверить».

📋 Команды:
/lod 300|400|500 — целевой уровень
/element <тип> — категория элемента
/context <текст> — дополнительный контекст
/analyze — запустить проверку
/status — текущее состояние
/remove — убрать изображение
/reset — новая проверка
/history — прошлые отчёты
/help — справка`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте скриншот элемента (фото или файлом PNG/JPEG)
2️⃣ Выберите целевой LOD кнопками или командой /lod
3️⃣ При желании укажите /element и /context
4️⃣ Нажмите «Проверить» или отправьте /analyze

💡 LOD 300: точная геометрия, конкретная система
💡 LOD 400: детали для изготовления, крепёж, сварка
💡 LOD 500: исполнительная модель, данные эксплуатации`

	msgSendImage      = "📸 Отправьте скриншот элемента модели для проверки."
	msgStaged         = "🖼 Изображение выбрано. Целевой уровень: %s"
	msgProcessing     = "⏳ Анализирую элемент, это может занять до минуты..."
	msgInFlight       = "⏳ Проверка уже идёт, дождитесь результата."
	msgAlreadyDone    = "✅ Отчёт уже готов. Отправьте новое изображение или /reset."
	msgLocked         = "🔒 Настройки нельзя менять во время проверки."
	msgReset          = "🔄 Форма очищена. Целевой уровень: %s"
	msgRemoved        = "🗑 Изображение убрано."
	msgUnknownCommand = "❓ Неизвестная команда. Используйте /help для справки."
	msgLODUsage       = "Выберите уровень: /lod 300, /lod 400 или /lod 500"
	msgLODSet         = "🎯 Целевой уровень: %s\n%s"
	msgElementSet     = "🏗 Элемент: %s"
	msgContextSet     = "📝 Контекст: %s"
	msgNoHistory      = "📭 Отчётов пока нет."
	msgInternalError  = "⚠️ Что-то пошло не так. Попробуйте ещё раз."

	callbackAnalyze = "analyze"
	callbackLOD     = "lod:"

	// maxMessageLen ограничение Telegram на длину текста
	maxMessageLen = 4096
)

// sender часть BotAPI, которой пользуется бот
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot представляет Telegram-бота
type Bot struct {
	api        sender
	updates    func() tgbotapi.UpdatesChannel
	stop       func()
	fetch      func(fileID string) ([]byte, error)
	controller *app.Controller
	log        logger.Logger
}

// NewBot создаёт нового бота
func NewBot(token string, controller *app.Controller, log logger.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.Nop()
	}
	log.Infof(context.Background(), "authorized on account %s", api.Self.UserName)

	b := newBot(api, controller, log)
	b.updates = func() tgbotapi.UpdatesChannel {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		return api.GetUpdatesChan(u)
	}
	b.stop = api.StopReceivingUpdates
	b.fetch = func(fileID string) ([]byte, error) {
		return downloadFile(api, fileID)
	}
	return b, nil
}

func newBot(api sender, controller *app.Controller, log logger.Logger) *Bot {
	return &Bot{
		api:        api,
		controller: controller,
		log:        log,
	}
}

// Run запускает основной цикл обработки сообщений до отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	updates := b.updates()
	ctx = logger.WithFrontEnd(ctx, "telegram")

	for {
		select {
		case <-ctx.Done():
			b.stop()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	ctx = logger.WithSessionID(ctx, sessionID(chatID))

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	// Обработка фото
	if len(msg.Photo) > 0 {
		// Берём файл с максимальным разрешением
		photo := msg.Photo[len(msg.Photo)-1]
		b.handleImage(ctx, chatID, photo.FileID)
		return
	}

	// Скриншот, отправленный файлом, приходит без сжатия
	if msg.Document != nil {
		b.handleImage(ctx, chatID, msg.Document.FileID)
		return
	}

	b.sendMessage(chatID, msgSendImage)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	id := sessionID(chatID)
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		s, err := b.controller.Snapshot(ctx, id)
		if err != nil {
			b.fail(ctx, chatID, err)
			return
		}
		b.sendWithKeyboard(chatID, msgStart, s)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "lod":
		if args == "" {
			s, err := b.controller.Snapshot(ctx, id)
			if err != nil {
				b.fail(ctx, chatID, err)
				return
			}
			b.sendWithKeyboard(chatID, msgLODUsage, s)
			return
		}
		b.setTarget(ctx, chatID, args)

	case "element":
		s, err := b.controller.SetElementType(ctx, id, args)
		if err != nil {
			b.fail(ctx, chatID, err)
			return
		}
		b.sendMessage(chatID, fmt.Sprintf(msgElementSet, orDefault(s.ElementType, "Unknown/Auto-detect")))

	case "context":
		s, err := b.controller.SetContext(ctx, id, args)
		if err != nil {
			b.fail(ctx, chatID, err)
			return
		}
		b.sendMessage(chatID, fmt.Sprintf(msgContextSet, orDefault(s.Context, "None")))

	case "analyze":
		b.analyze(ctx, chatID)

	case "status":
		s, err := b.controller.Snapshot(ctx, id)
		if err != nil {
			b.fail(ctx, chatID, err)
			return
		}
		b.sendWithKeyboard(chatID, describeSession(s), s)

	case "remove":
		if _, err := b.controller.ClearImage(ctx, id); err != nil {
			b.fail(ctx, chatID, err)
			return
		}
		b.sendMessage(chatID, msgRemoved)

	case "reset":
		s, err := b.controller.Reset(ctx, id)
		if err != nil {
			b.fail(ctx, chatID, err)
			return
		}
		b.sendMessage(chatID, fmt.Sprintf(msgReset, s.Target))

	case "history":
		items, err := b.controller.History(ctx, id)
		if err != nil {
			b.fail(ctx, chatID, err)
			return
		}
		b.sendMessage(chatID, formatHistory(items))

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

// handleCallback обрабатывает нажатия inline-кнопок
func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warnf(ctx, "answer callback: %v", err)
	}
	if cb.Message == nil {
		return
	}

	chatID := cb.Message.Chat.ID
	ctx = logger.WithSessionID(ctx, sessionID(chatID))

	switch {
	case cb.Data == callbackAnalyze:
		b.analyze(ctx, chatID)
	case strings.HasPrefix(cb.Data, callbackLOD):
		b.setTarget(ctx, chatID, strings.TrimPrefix(cb.Data, callbackLOD))
	default:
		b.log.Warnf(ctx, "unknown callback data %q", cb.Data)
	}
}

// handleImage скачивает файл и выбирает его для проверки
func (b *Bot) handleImage(ctx context.Context, chatID int64, fileID string) {
	data, err := b.fetch(fileID)
	if err != nil {
		b.log.Errorf(ctx, "download file: %v", err)
		b.sendMessage(chatID, msgInternalError)
		return
	}

	s, err := b.controller.SelectImage(ctx, sessionID(chatID), data)
	if err != nil {
		b.fail(ctx, chatID, err)
		return
	}
	b.sendWithKeyboard(chatID, fmt.Sprintf(msgStaged, s.Target), s)
}

func (b *Bot) setTarget(ctx context.Context, chatID int64, raw string) {
	target, err := entity.ParseLODLevel(raw)
	if err != nil {
		b.sendMessage(chatID, msgLODUsage)
		return
	}

	s, err := b.controller.SetTarget(ctx, sessionID(chatID), target)
	if err != nil {
		b.fail(ctx, chatID, err)
		return
	}
	b.sendWithKeyboard(chatID, fmt.Sprintf(msgLODSet, s.Target, s.Target.Hint()), s)
}

// analyze запускает проверку в фоне, отчёт приходит отдельным сообщением
func (b *Bot) analyze(ctx context.Context, chatID int64) {
	// отчёт уходит только после сообщения о начале проверки
	announced := make(chan struct{})
	_, err := b.controller.AnalyzeAsync(ctx, sessionID(chatID), func(s entity.Session, err error) {
		<-announced
		b.deliver(ctx, chatID, s, err)
	})
	if err != nil {
		close(announced)
		b.fail(ctx, chatID, err)
		return
	}
	b.sendMessage(chatID, msgProcessing)
	close(announced)
}

// deliver показывает итог анализа
func (b *Bot) deliver(ctx context.Context, chatID int64, s entity.Session, err error) {
	if errors.Is(err, entity.ErrStaleResult) {
		b.log.Infof(ctx, "stale result not delivered")
		return
	}
	if err != nil {
		b.fail(ctx, chatID, err)
		return
	}

	switch s.State {
	case entity.StateCompleted:
		for _, chunk := range splitMessage(report.HTML(report.Build(s.Result)), maxMessageLen) {
			b.sendHTML(chatID, chunk)
		}
	case entity.StateFailed:
		b.sendWithKeyboard(chatID, "⚠️ "+s.Error, s)
	}
}

// fail переводит ошибку контроллера в сообщение пользователю
func (b *Bot) fail(ctx context.Context, chatID int64, err error) {
	text := describeError(err)
	if text == msgInternalError {
		b.log.Errorf(ctx, "request failed: %v", err)
	}
	b.sendMessage(chatID, text)
}

func describeError(err error) string {
	switch {
	case errors.Is(err, errorx.ErrDecode):
		return "⚠️ " + errorx.MsgDecodeFailed
	case errors.Is(err, entity.ErrNothingStaged):
		return msgSendImage
	case errors.Is(err, entity.ErrAnalysisInFlight):
		return msgInFlight
	case errors.Is(err, entity.ErrAlreadyCompleted):
		return msgAlreadyDone
	case errors.Is(err, entity.ErrFormLocked):
		return msgLocked
	case errors.Is(err, entity.ErrUnknownLOD):
		return msgLODUsage
	default:
		return msgInternalError
	}
}

func describeSession(s entity.Session) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Состояние: %s\n", s.State)
	fmt.Fprintf(&sb, "🎯 Уровень: %s\n", s.Target)
	fmt.Fprintf(&sb, "🏗 Элемент: %s\n", orDefault(s.ElementType, "Unknown/Auto-detect"))
	fmt.Fprintf(&sb, "📝 Контекст: %s", orDefault(s.Context, "None"))
	if s.Image != nil {
		fmt.Fprintf(&sb, "\n🖼 Изображение: %s %dx%d", s.Image.MimeType, s.Image.Width, s.Image.Height)
	}
	if s.Result != nil {
		fmt.Fprintf(&sb, "\n✅ Оценка: %d%%", s.Result.OverallScore)
	}
	if s.Error != "" {
		fmt.Fprintf(&sb, "\n⚠️ %s", s.Error)
	}
	return sb.String()
}

func formatHistory(items []entity.HistoryItem) string {
	if len(items) == 0 {
		return msgNoHistory
	}

	var sb strings.Builder
	sb.WriteString("🗂 Последние отчёты:\n")
	for i, item := range items {
		if item.Result == nil {
			continue
		}
		fmt.Fprintf(&sb, "%d. %s %s · %s · %d%%\n",
			i+1, item.Timestamp.Format("02.01 15:04"), item.Result.ElementName, item.Result.LODTarget, item.Result.OverallScore)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// lodKeyboard кнопки выбора уровня, текущий отмечен; кнопка проверки только при выбранном изображении
func lodKeyboard(s entity.Session) tgbotapi.InlineKeyboardMarkup {
	var lodRow []tgbotapi.InlineKeyboardButton
	for _, level := range entity.LODLevels() {
		label := string(level)
		if level == s.Target {
			label = "✅ " + label
		}
		lodRow = append(lodRow, tgbotapi.NewInlineKeyboardButtonData(label, callbackLOD+level.Number()))
	}

	rows := [][]tgbotapi.InlineKeyboardButton{lodRow}
	if s.State == entity.StateStaged || s.State == entity.StateFailed {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔍 Проверить", callbackAnalyze),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// splitMessage режет текст по строкам на части не длиннее limit байт
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		if cur.Len()+len(line) > limit && cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		for len(line) > limit {
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

func sessionID(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// downloadFile скачивает файл из Telegram
func downloadFile(api *tgbotapi.BotAPI, fileID string) ([]byte, error) {
	fileURL, err := api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	resp, err := http.Get(fileURL)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Errorf(context.Background(), "send message: %v", err)
	}
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, s entity.Session) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = lodKeyboard(s)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Errorf(context.Background(), "send message: %v", err)
	}
}

func (b *Bot) sendHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		b.log.Errorf(context.Background(), "send report: %v", err)
	}
}
