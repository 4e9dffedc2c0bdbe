// Package notification posts fix suggestions to a Telegram channel.
package notification

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
)

const (
	maxMessageLength = 4096
	// minMessageInterval is the minimum time between messages to the same
	// channel to avoid Telegram rate limits
	minMessageInterval = 1 * time.Second
)

// Suggestion is one fix suggestion and the context it was produced from.
type Suggestion struct {
	// Source describes the analyzed input, e.g. "user-service #42".
	Source          string
	ErrorCount      int
	FileCount       int
	Chunk           int
	Total           int
	Model           string
	DurationSeconds float64
	CostUSD         float64
	Correction      string
}

// sender is the part of tgbotapi.BotAPI the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramClient handles Telegram notifications. It is shared by concurrent
// requests; mu serializes sends so the interval holds across them.
type TelegramClient struct {
	bot      sender
	username string
	channel  int64
	hostname string
	interval time.Duration

	mu              sync.Mutex
	lastMessageTime time.Time
}

// NewTelegramClient creates a new Telegram client. httpClient carries the
// proxy and timeout settings; nil means http.DefaultClient.
func NewTelegramClient(botToken string, channel int64, httpClient *http.Client) (*TelegramClient, error) {
	return newTelegramClient(botToken, tgbotapi.APIEndpoint, channel, httpClient)
}

func newTelegramClient(botToken, endpoint string, channel int64, httpClient *http.Client) (*TelegramClient, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	bot, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, httpClient)
	if err != nil {
		// Sanitize error to prevent bot token from appearing in error messages
		return nil, internalerrors.Wrapf(err, "failed to create Telegram bot")
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &TelegramClient{
		bot:      bot,
		username: bot.Self.UserName,
		channel:  channel,
		hostname: hostname,
		interval: minMessageInterval,
	}, nil
}

// Notify sends the suggestion to the channel. Each message part is sent
// once; the first failure is returned.
func (t *TelegramClient) Notify(ctx context.Context, s Suggestion) error {
	for _, part := range t.splitMessage(t.formatMessage(s)) {
		if err := t.send(ctx, part); err != nil {
			return err
		}
	}
	return nil
}

func (t *TelegramClient) send(ctx context.Context, part string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.waitForRateLimit(ctx); err != nil {
		return err
	}

	msgConfig := tgbotapi.NewMessage(t.channel, part)
	msgConfig.ParseMode = "MarkdownV2"

	if _, err := t.bot.Send(msgConfig); err != nil {
		return internalerrors.Wrapf(err, "failed to send Telegram message")
	}
	t.lastMessageTime = time.Now()
	return nil
}

// formatMessage formats the suggestion into a Telegram message
func (t *TelegramClient) formatMessage(s Suggestion) string {
	var msg strings.Builder

	msg.WriteString("🔧 *Build Fix Suggestion*\n")
	msg.WriteString(fmt.Sprintf("🖥 Host\\: %s\n", escapeMarkdown(t.hostname)))
	msg.WriteString(fmt.Sprintf("📅 Date\\: %s\n", escapeMarkdown(time.Now().Format("2006-01-02 15:04:05"))))
	if s.Source != "" {
		msg.WriteString(fmt.Sprintf("📦 Source\\: %s\n", escapeMarkdown(s.Source)))
	}
	msg.WriteString("\n")

	msg.WriteString("📋 *Execution Stats*\n")
	msg.WriteString(fmt.Sprintf("• Error lines\\: %d\n", s.ErrorCount))
	msg.WriteString(fmt.Sprintf("• Changed files\\: %d\n", s.FileCount))
	if s.Total > 1 {
		msg.WriteString(fmt.Sprintf("• Diff chunk\\: %d/%d\n", s.Chunk+1, s.Total))
	}
	if s.Model != "" {
		msg.WriteString(fmt.Sprintf("• Model\\: %s\n", escapeMarkdown(s.Model)))
	}
	if s.CostUSD > 0 {
		msg.WriteString(fmt.Sprintf("• Cost\\: %s\n", escapeMarkdown(fmt.Sprintf("$%.4f", s.CostUSD))))
	}
	msg.WriteString(fmt.Sprintf("• Duration\\: %s\n", escapeMarkdown(fmt.Sprintf("%.2fs", s.DurationSeconds))))
	msg.WriteString("\n")

	msg.WriteString("💡 *Suggestion*\n")
	msg.WriteString(escapeMarkdown(s.Correction))
	msg.WriteString("\n")

	return msg.String()
}

// waitForRateLimit blocks until interval has passed since the last send.
// Callers hold mu.
func (t *TelegramClient) waitForRateLimit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.lastMessageTime.IsZero() {
		return nil
	}

	wait := t.interval - time.Since(t.lastMessageTime)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// splitMessage splits a long message into parts of at most maxMessageLength
// bytes, preferring line breaks.
func (t *TelegramClient) splitMessage(message string) []string {
	if len(message) <= maxMessageLength {
		return []string{message}
	}

	var messages []string
	lines := strings.Split(message, "\n")
	var currentMsg strings.Builder

	for _, line := range lines {
		if currentMsg.Len()+len(line)+1 > maxMessageLength {
			if currentMsg.Len() > 0 {
				messages = append(messages, currentMsg.String())
				currentMsg.Reset()
			}

			if len(line) > maxMessageLength {
				messages = append(messages, cutLine(line, maxMessageLength)...)
				continue
			}
		}

		currentMsg.WriteString(line)
		currentMsg.WriteString("\n")
	}

	if currentMsg.Len() > 0 {
		messages = append(messages, currentMsg.String())
	}

	return messages
}

// cutLine cuts line into pieces of at most limit bytes. A cut never lands
// inside a UTF-8 sequence or between a MarkdownV2 escape and the character
// it escapes.
func cutLine(line string, limit int) []string {
	var pieces []string
	for len(line) > limit {
		end := limit
		for end > 0 && !utf8.RuneStart(line[end]) {
			end--
		}
		if escapes := trailingBackslashes(line[:end]); escapes%2 == 1 {
			end--
		}
		if end <= 0 {
			_, end = utf8.DecodeRuneInString(line)
		}
		pieces = append(pieces, line[:end])
		line = line[end:]
	}
	if line != "" {
		pieces = append(pieces, line)
	}
	return pieces
}

func trailingBackslashes(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n
}

// escapeMarkdown escapes special characters for Telegram MarkdownV2
func escapeMarkdown(text string) string {
	// See: https://core.telegram.org/bots/api#markdownv2-style
	specialChars := []string{
		"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!", ":",
	}

	result := text
	for _, char := range specialChars {
		result = strings.ReplaceAll(result, char, "\\"+char)
	}

	return result
}

// GetBotInfo returns information about the bot
func (t *TelegramClient) GetBotInfo() map[string]interface{} {
	return map[string]interface{}{
		"username": t.username,
		"channel":  t.channel,
		"hostname": t.hostname,
	}
}
