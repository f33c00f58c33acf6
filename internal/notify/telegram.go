package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/fd1az/oracle-resolver/internal/httpclient"
)

const defaultTelegramURL = "https://api.telegram.org"

// TelegramSender posts to the Telegram Bot API.
type TelegramSender struct {
	token  string
	chatID string
	client httpclient.Client
}

// NewTelegramSender creates a sender. baseURL defaults to the public API.
func NewTelegramSender(baseURL, token, chatID string) (*TelegramSender, error) {
	if baseURL == "" {
		baseURL = defaultTelegramURL
	}
	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("telegram"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(10*time.Second),
		httpclient.WithHeaders(map[string]string{"Content-Type": "application/json"}),
	)
	if err != nil {
		return nil, err
	}
	return &TelegramSender{token: token, chatID: chatID, client: client}, nil
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts a Markdown message with a bold title.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	var out telegramResponse
	_, err := t.client.NewRequest(httpclient.WithLabels(httpclient.NewLabel("method", "sendMessage"))).
		SetBody(map[string]string{
			"chat_id":    t.chatID,
			"text":       fmt.Sprintf("*%s*\n%s", title, message),
			"parse_mode": "Markdown",
		}).
		SetResult(&out).
		Post(ctx, fmt.Sprintf("/bot%s/sendMessage", t.token))
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("telegram: %s", out.Description)
	}
	return nil
}

// Name returns "telegram".
func (t *TelegramSender) Name() string {
	return "telegram"
}
