package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GustavoLR548/news-relay-bot/internal/logger"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultTelegramAPIURL is the public Bot API root.
const DefaultTelegramAPIURL = "https://api.telegram.org"

const telegramTimeout = 30 * time.Second

// TelegramConfig configures a TelegramPublisher.
type TelegramConfig struct {
	Token  string
	ChatID string
	APIURL string
	Log    *zap.SugaredLogger
}

// APIError is a Bot API rejection (ok=false).
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed (%d): %s", e.Method, e.Code, e.Description)
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

type sendPhotoRequest struct {
	ChatID    string `json:"chat_id"`
	Photo     string `json:"photo"`
	Caption   string `json:"caption"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// TelegramPublisher implements Publisher over the Telegram Bot API.
type TelegramPublisher struct {
	client *resty.Client
	chatID string
	log    *zap.SugaredLogger
}

// NewTelegramPublisher creates a publisher. Token and chat ID are required.
func NewTelegramPublisher(cfg TelegramConfig) (*TelegramPublisher, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram chat ID is required")
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultTelegramAPIURL
	}

	client := resty.New().
		SetBaseURL(apiURL+"/bot"+cfg.Token).
		SetTimeout(telegramTimeout).
		SetHeader("Content-Type", "application/json")

	return &TelegramPublisher{
		client: client,
		chatID: cfg.ChatID,
		log:    logger.OrNop(cfg.Log),
	}, nil
}

// Publish sends a photo with caption, or a text message when there is no image.
// A photo Telegram refuses to fetch is retried once as a text message.
func (p *TelegramPublisher) Publish(ctx context.Context, caption, imageURL string) error {
	if imageURL == "" {
		return p.sendMessage(ctx, caption, "HTML")
	}

	err := p.call(ctx, "sendPhoto", sendPhotoRequest{
		ChatID:    p.chatID,
		Photo:     imageURL,
		Caption:   caption,
		ParseMode: "HTML",
	})
	if err == nil {
		p.log.Infof("Published photo post to %s", p.chatID)
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == 400 {
		p.log.Warnf("Photo rejected, sending text instead: %v", err)
		return p.sendMessage(ctx, caption, "HTML")
	}
	return err
}

// NotifyError sends message without parse mode.
func (p *TelegramPublisher) NotifyError(ctx context.Context, message string) error {
	return p.sendMessage(ctx, message, "")
}

func (p *TelegramPublisher) sendMessage(ctx context.Context, text, parseMode string) error {
	err := p.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:                p.chatID,
		Text:                  text,
		ParseMode:             parseMode,
		DisableWebPagePreview: true,
	})
	if err == nil {
		p.log.Infof("Published text post to %s", p.chatID)
	}
	return err
}

func (p *TelegramPublisher) call(ctx context.Context, method string, body any) error {
	var result telegramResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&result).
		Post("/" + method)
	if err != nil {
		return fmt.Errorf("telegram %s request failed: %w", method, err)
	}

	if !result.OK {
		code := result.ErrorCode
		if code == 0 {
			code = resp.StatusCode()
		}
		return &APIError{Method: method, Code: code, Description: result.Description}
	}
	return nil
}
