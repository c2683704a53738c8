package notify

import (
	"context"
	"fmt"
	"time"

	"babycare-backend/internal/metrics"
	"babycare-backend/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	// DefaultExpoURL Expo 推送服务地址
	DefaultExpoURL = "https://exp.host"
	sendPath       = "/--/api/v2/push/send"
	// 单次请求最多 100 条消息
	maxBatch = 100
)

// TokenStore 推送令牌存储
type TokenStore interface {
	TokensForDevice(ctx context.Context, deviceID string) ([]string, error)
	DeleteTokens(ctx context.Context, tokens ...string) error
}

// ExpoMessage Expo 推送消息
type ExpoMessage struct {
	To        string            `json:"to"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Sound     string            `json:"sound,omitempty"`
	Priority  string            `json:"priority,omitempty"`
	ChannelID string            `json:"channelId,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// ExpoTicket 单条消息的发送回执
type ExpoTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details,omitempty"`
}

// ExpoResponse 发送接口响应
type ExpoResponse struct {
	Data   []ExpoTicket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// ExpoNotifier 告警事件推送
type ExpoNotifier struct {
	httpClient *resty.Client
	tokens     TokenStore
	logger     *zap.Logger
}

// NewExpoNotifier 创建推送客户端，accessToken 可为空
func NewExpoNotifier(baseURL, accessToken string, tokens TokenStore, logger *zap.Logger) *ExpoNotifier {
	if baseURL == "" {
		baseURL = DefaultExpoURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(3*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if accessToken != "" {
		client.SetAuthToken(accessToken)
	}

	return &ExpoNotifier{httpClient: client, tokens: tokens, logger: logger}
}

// NotifyEvent 对告警类事件向所有已配对用户推送；非告警事件直接返回
func (n *ExpoNotifier) NotifyEvent(ctx context.Context, ev models.Event) error {
	if !ev.Type.IsAlert() {
		return nil
	}

	tokens, err := n.tokens.TokensForDevice(ctx, ev.DeviceID)
	if err != nil {
		return fmt.Errorf("failed to load push tokens: %w", err)
	}
	if len(tokens) == 0 {
		n.logger.Debug("No push tokens for device", zap.String("device_id", ev.DeviceID))
		return nil
	}

	title, body := MessageFor(ev.Type)
	messages := make([]ExpoMessage, 0, len(tokens))
	for _, token := range tokens {
		messages = append(messages, ExpoMessage{
			To:        token,
			Title:     title,
			Body:      body,
			Sound:     "default",
			Priority:  "high",
			ChannelID: "alerts",
			Data: map[string]string{
				"device_id":  ev.DeviceID,
				"event_id":   ev.ID,
				"event_type": string(ev.Type),
			},
		})
	}

	var firstErr error
	for start := 0; start < len(messages); start += maxBatch {
		end := start + maxBatch
		if end > len(messages) {
			end = len(messages)
		}
		if err := n.send(ctx, messages[start:end]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (n *ExpoNotifier) send(ctx context.Context, batch []ExpoMessage) error {
	var response ExpoResponse
	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(batch).
		SetResult(&response).
		Post(sendPath)
	if err != nil {
		metrics.AddPushNotifications(metrics.ResultError, len(batch))
		return fmt.Errorf("failed to call push API: %w", err)
	}
	if resp.IsError() {
		metrics.AddPushNotifications(metrics.ResultError, len(batch))
		return fmt.Errorf("push API returned status %d", resp.StatusCode())
	}
	if len(response.Errors) > 0 {
		metrics.AddPushNotifications(metrics.ResultError, len(batch))
		return fmt.Errorf("push API error: %s (%s)", response.Errors[0].Message, response.Errors[0].Code)
	}

	var stale []string
	ok := 0
	for i, ticket := range response.Data {
		if ticket.Status == "ok" {
			ok++
			continue
		}
		n.logger.Warn("Push ticket error",
			zap.String("message", ticket.Message),
			zap.String("error", ticket.Details.Error),
		)
		if ticket.Details.Error == "DeviceNotRegistered" && i < len(batch) {
			stale = append(stale, batch[i].To)
		}
	}
	metrics.AddPushNotifications(metrics.ResultSuccess, ok)
	metrics.AddPushNotifications(metrics.ResultError, len(response.Data)-ok)

	if len(stale) > 0 {
		if err := n.tokens.DeleteTokens(ctx, stale...); err != nil {
			n.logger.Error("Failed to delete stale push tokens", zap.Error(err))
		}
	}

	n.logger.Info("Push notifications sent",
		zap.Int("requested", len(batch)),
		zap.Int("accepted", ok),
		zap.Int("stale_tokens", len(stale)),
	)
	return nil
}

// MessageFor 告警事件对应的通知文案
func MessageFor(t models.EventType) (title, body string) {
	switch t {
	case models.EventCrying:
		return "Baby is crying", "Crying has been detected by the monitor."
	case models.EventProne:
		return "Check sleeping position", "Your baby is lying face down."
	case models.EventSide:
		return "Check sleeping position", "Your baby has rolled onto their side."
	case models.EventNoBlanket:
		return "Blanket uncovered", "Your baby's blanket is no longer covering them."
	default:
		return "Baby monitor", string(t)
	}
}
