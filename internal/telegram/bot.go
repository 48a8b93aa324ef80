package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"menfess/internal/config"
	"menfess/internal/ledger"
	"menfess/internal/relay"
)

const (
	successReply = "✅ Pssst... Pesanmu telah dilepaskan dari balik bayang. Kini biarlah mereka membacanya… tanpa tahu siapa yang menulisnya!\n\n" +
		"°❀⋆.ೃ࿔*:･°❀⋆.ೃ࿔*:･"
	relaySuccessReply  = "✅ Balasanmu telah dikirim secara anonim."
	bannedReply        = "🚫 Kamu telah diblokir karena berulang kali melanggar aturan."
	confirmDeleteText  = "Apakah kamu yakin ingin menghapus pesan ini?"
	genericFailureText = "⚠️ Terjadi kesalahan. Coba lagi nanti."
)

// Bot is the Telegram transport glue: it turns updates into coordinator events
// and implements relay.Transport for the outbound side.
type Bot struct {
	api         *tgbotapi.BotAPI
	coordinator *relay.Coordinator
	ledger      *ledger.Ledger
	cfg         *config.Config
	logger      *zap.Logger
}

// NewBot creates and authorizes the Telegram bot. The coordinator is attached
// afterwards with SetCoordinator because the coordinator needs the bot as its
// transport.
func NewBot(cfg *config.Config, violationLedger *ledger.Ledger, logger *zap.Logger) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))

	return &Bot{
		api:    botAPI,
		ledger: violationLedger,
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (b *Bot) SetCoordinator(coordinator *relay.Coordinator) {
	b.coordinator = coordinator
}

// --- relay.Transport ---

// Publish posts to the public channel, with an optional photo.
func (b *Bot) Publish(text, photoID string) (int64, error) {
	var sent tgbotapi.Message
	var err error
	if photoID != "" {
		photo := tgbotapi.NewPhoto(b.cfg.Telegram.ChannelID, tgbotapi.FileID(photoID))
		photo.Caption = text
		photo.ParseMode = tgbotapi.ModeMarkdown
		sent, err = b.api.Send(photo)
	} else {
		msg := tgbotapi.NewMessage(b.cfg.Telegram.ChannelID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		sent, err = b.api.Send(msg)
	}
	if err != nil {
		return 0, err
	}
	return int64(sent.MessageID), nil
}

func (b *Bot) DeleteMessage(messageID int64) error {
	_, err := b.api.Request(tgbotapi.NewDeleteMessage(b.cfg.Telegram.ChannelID, int(messageID)))
	return err
}

func (b *Bot) SendPrivate(userID int64, text string) (int64, error) {
	sent, err := b.api.Send(tgbotapi.NewMessage(userID, text))
	if err != nil {
		return 0, err
	}
	return int64(sent.MessageID), nil
}

func (b *Bot) SendThreaded(replyToID int64, text string) (int64, error) {
	msg := tgbotapi.NewMessage(b.cfg.Telegram.DiscussionChatID, text)
	msg.ReplyToMessageID = int(replyToID)
	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return int64(sent.MessageID), nil
}

// --- update loop ---

// Start begins listening for updates from Telegram. Each update is handled on
// its own goroutine; the coordinator guards its shared state.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Telegram bot started, waiting for updates...")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram bot shutting down...")
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			go b.handleUpdate(update)
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallbackQuery(update.CallbackQuery)
		return
	}
	if update.Message != nil {
		b.handleMessage(update.Message)
	}
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	if message.Chat == nil {
		return
	}

	if message.Chat.ID == b.cfg.Telegram.DiscussionChatID {
		b.handleDiscussionMessage(message)
		return
	}

	if !message.Chat.IsPrivate() {
		return
	}

	if message.IsCommand() {
		switch message.Command() {
		case "start":
			b.reply(message.Chat.ID, welcomeText(b.cfg.Telegram.ChannelUsername))
		case "help":
			b.reply(message.Chat.ID, relay.TemplateHelp)
		case "violators":
			b.handleViolatorsCommand(message)
		default:
			b.reply(message.Chat.ID, "Perintah tidak dikenal. Gunakan /help untuk bantuan.")
		}
		return
	}

	b.handlePrivateSubmission(message)
}

// handleDiscussionMessage translates discussion-group traffic: the automatic
// forward of a channel post becomes a mirror event, everything else that
// replies to something becomes a comment event.
func (b *Bot) handleDiscussionMessage(message *tgbotapi.Message) {
	if message.IsAutomaticForward {
		err := b.coordinator.Dispatch(relay.MirroredPostObserved{
			MirrorID: int64(message.MessageID),
			Text:     messageText(message),
		})
		if err != nil {
			b.logger.Error("Failed to handle mirrored post", zap.Error(err))
		}
		return
	}

	if message.ReplyToMessage == nil {
		return
	}
	if message.From != nil && message.From.IsBot {
		return
	}

	err := b.coordinator.Dispatch(relay.CommentReceived{
		CommentID:     int64(message.MessageID),
		ReplyParentID: int64(message.ReplyToMessage.MessageID),
		Text:          messageText(message),
	})
	if err != nil {
		b.logger.Error("Failed to handle comment", zap.Error(err))
	}
}

func (b *Bot) handlePrivateSubmission(message *tgbotapi.Message) {
	userID := message.From.ID
	displayName := message.From.UserName
	if displayName == "" {
		displayName = "-"
	}

	if !b.checkMembership(message.Chat.ID, userID) {
		return
	}

	text := messageText(message)
	photoID := ""
	if len(message.Photo) > 0 {
		if message.Caption == "" {
			b.reply(message.Chat.ID, "❌ Kirim foto dengan caption sesuai format menfess.")
			return
		}
		photoID = message.Photo[len(message.Photo)-1].FileID
	}
	if text == "" {
		return
	}

	isAdmin := b.cfg.IsAdmin(userID)

	// A reply to an earlier bot message may be a relay request; the
	// coordinator decides and falls back to the submission pipeline.
	if message.ReplyToMessage != nil {
		relayID, relayed, err := b.coordinator.HandlePrivateReply(relay.PrivateReplyReceived{
			SubmitterID:   userID,
			DisplayName:   displayName,
			ReplyParentID: int64(message.ReplyToMessage.MessageID),
			Text:          text,
			PhotoID:       photoID,
			IsAdmin:       isAdmin,
		})
		b.replyForOutcome(message.Chat.ID, relayID, err, relayed)
		return
	}

	publishedID, err := b.coordinator.HandleSubmission(relay.SubmissionReceived{
		SubmitterID: userID,
		DisplayName: displayName,
		Text:        text,
		PhotoID:     photoID,
		IsAdmin:     isAdmin,
	})
	b.replyForOutcome(message.Chat.ID, publishedID, err, false)
}

// replyForOutcome maps pipeline outcomes to user-facing replies. isRelay marks
// a successful anonymized relay, which gets a plain confirmation instead of
// the publish keyboard.
func (b *Bot) replyForOutcome(chatID, messageID int64, err error, isRelay bool) {
	if err == nil {
		if isRelay {
			b.reply(chatID, relaySuccessReply)
			return
		}
		msg := tgbotapi.NewMessage(chatID, successReply)
		msg.ReplyMarkup = initialKeyboard(b.cfg.Telegram.ChannelUsername, messageID)
		if _, sendErr := b.api.Send(msg); sendErr != nil {
			b.logger.Error("Failed to send success reply", zap.Error(sendErr))
		}
		return
	}

	var formatErr *relay.FormatError
	var limitedErr *relay.RateLimitedError
	var rejectedErr *relay.ContentRejectedError

	switch {
	case errors.Is(err, relay.ErrBanned):
		b.reply(chatID, bannedReply)
	case errors.As(err, &formatErr):
		b.replyMarkdown(chatID, formatErr.Help)
	case errors.As(err, &limitedErr):
		b.reply(chatID, fmt.Sprintf("⏳ Tunggu %d menit lagi sebelum kirim menfess berikutnya.", limitedErr.RemainingMinutes))
	case errors.As(err, &rejectedErr):
		safeTerm := escapeMarkdown(rejectedErr.Term)
		if rejectedErr.Banned {
			b.replyMarkdown(chatID, fmt.Sprintf(
				"🚫 Kamu telah diblokir karena %d kali melanggar aturan.\nKata terakhir yang melanggar: `%s`",
				b.cfg.Moderation.WarningLimit, safeTerm))
		} else {
			b.replyMarkdown(chatID, fmt.Sprintf(
				"⚠️ Pesanmu mengandung kata yang tidak pantas: `%s`\nIni peringatan ke-%d dari %d.",
				safeTerm, rejectedErr.Warnings, b.cfg.Moderation.WarningLimit))
		}
	default:
		b.logger.Error("Submission pipeline failed", zap.Error(err))
		b.reply(chatID, genericFailureText)
	}
}

// checkMembership requires the submitter to be a member of the channel.
func (b *Bot) checkMembership(chatID, userID int64) bool {
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: b.cfg.Telegram.ChannelUsername,
			UserID:             userID,
		},
	})
	if err != nil {
		b.logger.Error("Failed to check channel membership", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(chatID, "⚠️ Gagal mengecek status keanggotaan channel. Pastikan bot sudah admin di channel.")
		return false
	}
	if member.Status == "left" || member.Status == "kicked" {
		b.reply(chatID, fmt.Sprintf("⚠️ Kamu harus join channel %s dulu!", b.cfg.Telegram.ChannelUsername))
		return false
	}
	return true
}

func (b *Bot) handleViolatorsCommand(message *tgbotapi.Message) {
	if !b.cfg.IsAdmin(message.From.ID) {
		b.reply(message.Chat.ID, "🚫 Kamu tidak memiliki izin untuk melihat data pelanggar.")
		return
	}

	records, err := b.ledger.List()
	if err != nil {
		b.logger.Error("Failed to list violators", zap.Error(err))
		b.reply(message.Chat.ID, genericFailureText)
		return
	}
	if len(records) == 0 {
		b.reply(message.Chat.ID, "✅ Belum ada pelanggar terdeteksi.")
		return
	}

	var lines []string
	for _, record := range records {
		flag := "⚠️"
		if record.Banned {
			flag = "🚫"
		}
		lastTerm := "-"
		if len(record.Violations) > 0 {
			lastTerm = record.Violations[len(record.Violations)-1].Term
		}
		lines = append(lines, fmt.Sprintf("%s `%d` (%s) — %dx pelanggaran\nTerakhir: %s",
			flag, record.SubmitterID, record.DisplayName, record.WarningCount, escapeMarkdown(lastTerm)))
	}
	b.replyMarkdown(message.Chat.ID, "📋 *Daftar Pelanggar:*\n\n"+strings.Join(lines, "\n\n"))
}

// handleCallbackQuery drives the delete-confirm flow on the success reply.
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	callback := tgbotapi.NewCallback(query.ID, "")
	if _, err := b.api.Request(callback); err != nil {
		b.logger.Error("Failed to send callback response", zap.Error(err))
	}

	parts := strings.SplitN(query.Data, ":", 2)
	if len(parts) != 2 {
		b.logger.Error("Failed to parse callback data: invalid format", zap.String("data", query.Data))
		return
	}
	action := parts[0]
	messageID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		b.logger.Error("Failed to parse callback message ID", zap.String("id", parts[1]), zap.Error(err))
		return
	}

	chatID := query.Message.Chat.ID
	ownMessageID := query.Message.MessageID

	switch action {
	case "del":
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, ownMessageID, confirmDeleteText,
			confirmKeyboard(b.cfg.Telegram.ChannelUsername, messageID))
		if _, err := b.api.Send(edit); err != nil {
			b.logger.Error("Failed to edit message", zap.Error(err))
		}
	case "del_back":
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, ownMessageID, successReply,
			initialKeyboard(b.cfg.Telegram.ChannelUsername, messageID))
		if _, err := b.api.Send(edit); err != nil {
			b.logger.Error("Failed to edit message", zap.Error(err))
		}
	case "del_yes":
		resultText := "✅ Pesanmu di channel sudah dihapus."
		if err := b.DeleteMessage(messageID); err != nil {
			b.logger.Error("Failed to delete channel message", zap.Int64("message_id", messageID), zap.Error(err))
			resultText = "⚠️ Gagal menghapus pesan di channel. Mungkin pesan sudah dihapus sebelumnya."
		}
		edit := tgbotapi.NewEditMessageText(chatID, ownMessageID, resultText)
		if _, err := b.api.Send(edit); err != nil {
			b.logger.Error("Failed to edit message", zap.Error(err))
		}
	default:
		b.logger.Error("Unknown callback action", zap.String("action", action))
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) replyMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// messageText returns the usable text of a message, caption included.
func messageText(message *tgbotapi.Message) string {
	if message.Text != "" {
		return strings.TrimSpace(message.Text)
	}
	return strings.TrimSpace(message.Caption)
}

func welcomeText(channelUsername string) string {
	return "🕯️ Selamat datang di Masker FESS — tempat rahasia menjadi suara.\n\n" +
		"Di sini, kamu tidak perlu menjadi siapa-siapa. Cukup kirimkan pesanmu ke bot ini, " +
		"dan kami akan menyampaikannya ke dunia — tanpa nama, tanpa jejak.\n\n" +
		"⚠️ Penting: Hanya anggota channel " + channelUsername + " yang bisa berbicara lewat bot ini.\n\n" +
		"Cara kerja: tulis, kirim, lepaskan. Biarkan bot membawa pesanmu ke permukaan.\n\n" +
		"Peraturan di balik layar:\n" +
		"1. Satu suara setiap 10 menit.\n" +
		"2. Tidak ada tempat untuk spam.\n" +
		"3. Jangan bawa politik, SARA, atau kebencian ke dalam ruang ini.\n\n" +
		"Topeng sudah terpasang. Sekarang saatnya bicara."
}
