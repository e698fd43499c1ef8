package alerting

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"guardian/src/model"
)

// WebhookNotifier pushes alerts to an external HTTP endpoint. Delivery is
// best effort: a failed push is logged and dropped, the persisted alert
// row remains the source of truth.
type WebhookNotifier struct {
	url    string
	secret string
	http   *resty.Client
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 || code == 408 {
		return true
	}
	return false
}

// NewWebhookNotifier builds a notifier from the package config. Returns
// nil when no webhook URL is configured.
func NewWebhookNotifier() *WebhookNotifier {
	config := GetConfig()
	if config.WebhookURL == "" {
		return nil
	}

	client := resty.New().
		SetTimeout(time.Duration(config.WebhookTimeoutSeconds) * time.Second).
		SetRetryCount(config.WebhookRetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(4 * time.Second).
		AddRetryCondition(isRetryableResp)

	return &WebhookNotifier{
		url:    config.WebhookURL,
		secret: config.WebhookSecret,
		http:   client,
	}
}

// WithClient overrides the resty client, for tests.
func (n *WebhookNotifier) WithClient(client *resty.Client) *WebhookNotifier {
	return &WebhookNotifier{url: n.url, secret: n.secret, http: client}
}

// NewWebhookNotifierFor builds a notifier for an explicit endpoint,
// bypassing env config. Used by tests and the simulation command.
func NewWebhookNotifierFor(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		http:   resty.New().SetTimeout(5 * time.Second),
	}
}

func (n *WebhookNotifier) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(n.secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Deliver pushes one alert to the webhook endpoint, signing the payload
// with HMAC-SHA256 so the receiver can authenticate it.
func (n *WebhookNotifier) Deliver(ctx context.Context, alert *model.GuardianAlert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	req := n.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if n.secret != "" {
		req.SetHeader("X-Guardian-Signature", n.sign(body))
	}

	resp, err := req.Post(n.url)
	if err != nil {
		return err
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}

	logger.WithFields(map[string]interface{}{
		"component": "WebhookNotifier",
		"tenant":    alert.TenantID,
		"type":      alert.AlertType,
	}).Debug("Alert delivered to webhook")

	return nil
}
