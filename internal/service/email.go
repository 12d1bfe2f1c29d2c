// Package service contains thin clients for collaborating services.  The
// notification service owns template rendering and delivery; this module
// only validates and forwards the payload.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

// EmailPayload is the request body accepted by the notification service.
type EmailPayload struct {
	Type                string         `json:"type" validate:"required"`
	ToEmail             string         `json:"to_email" validate:"required,email"`
	Payload             map[string]any `json:"payload" validate:"required"`
	ActionTriggeredUser map[string]any `json:"action_triggered_user" validate:"required"`
	Module              string         `json:"module" validate:"required"`
	ModuleIdentifier    string         `json:"module_identifier" validate:"required"`
}

// Email types supported by the notification service.
const (
	EmailWelcome       = "welcome-email"
	EmailSignupOTP     = "signup_otp-email"
	EmailInvite        = "invite-email"
	EmailPasswordReset = "password_reset-email"
)

var emailValidate = validator.New()

// EmailClient posts validated email payloads to the notification service.
type EmailClient struct {
	URL    string
	Client *http.Client
}

func NewEmailClient(url string) *EmailClient {
	return &EmailClient{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

// SendEmail validates the payload and forwards it.  The decoded
// acknowledgment body is returned on 2xx; anything else is an error.
func (c *EmailClient) SendEmail(ctx context.Context, emailType, toEmail string, payload, actor map[string]any, module, moduleIdentifier string) (map[string]any, error) {
	data := EmailPayload{
		Type:                emailType,
		ToEmail:             toEmail,
		Payload:             payload,
		ActionTriggeredUser: actor,
		Module:              module,
		ModuleIdentifier:    moduleIdentifier,
	}
	if err := emailValidate.Struct(data); err != nil {
		return nil, fmt.Errorf("invalid email payload: %w", err)
	}

	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("email service returned %d: %s", resp.StatusCode, raw)
	}
	var ack map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &ack); err != nil {
			return nil, fmt.Errorf("email service ack: %w", err)
		}
	}
	return ack, nil
}
