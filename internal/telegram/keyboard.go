package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// channelMessageURL builds the public link to a channel post.
func channelMessageURL(channelUsername string, messageID int64) string {
	username := strings.TrimPrefix(channelUsername, "@")
	return fmt.Sprintf("https://t.me/%s/%d", username, messageID)
}

// initialKeyboard is attached to the success reply: view the post or start the
// delete flow.
func initialKeyboard(channelUsername string, messageID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("👀 Lihat Pesan", channelMessageURL(channelUsername, messageID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Hapus Pesan", fmt.Sprintf("del:%d", messageID)),
		),
	)
}

// confirmKeyboard asks the submitter to confirm deletion.
func confirmKeyboard(channelUsername string, messageID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("👀 Lihat Pesan", channelMessageURL(channelUsername, messageID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Ya, Saya Yakin", fmt.Sprintf("del_yes:%d", messageID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅ Kembali", fmt.Sprintf("del_back:%d", messageID)),
		),
	)
}

// escapeMarkdown protects special characters so user text cannot break the
// Markdown parse mode.
func escapeMarkdown(text string) string {
	escapeChars := `\_*[]()~` + "`" + `>#+-=|{}.!`
	var b strings.Builder
	for _, r := range text {
		if strings.ContainsRune(escapeChars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
