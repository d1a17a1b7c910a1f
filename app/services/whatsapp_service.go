package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/amirphl/wilaya-connect/config"
)

// WhatsAppProvider sends one text body to many WhatsApp recipients
type WhatsAppProvider interface {
	Send(ctx context.Context, msg OutboundMessage) (*DeliveryReport, error)
}

// CloudWhatsAppProvider uses the WhatsApp Business Cloud API, one request per recipient
type CloudWhatsAppProvider struct {
	config *config.WhatsAppConfig
	client HTTPDoer
}

type whatsAppTextRequest struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body       string `json:"body"`
		PreviewURL bool   `json:"preview_url"`
	} `json:"text"`
}

type whatsAppTextResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// NewCloudWhatsAppProvider creates a WhatsApp Cloud API client
func NewCloudWhatsAppProvider(cfg *config.WhatsAppConfig, logger *log.Logger) WhatsAppProvider {
	return &CloudWhatsAppProvider{
		config: cfg,
		client: NewRetryClient(&http.Client{Timeout: cfg.Timeout}, cfg.MaxRetries, logger),
	}
}

func (p *CloudWhatsAppProvider) Send(ctx context.Context, msg OutboundMessage) (*DeliveryReport, error) {
	if len(msg.Recipients) == 0 {
		return nil, fmt.Errorf("WhatsApp Cloud API requires resolved recipients")
	}

	url := fmt.Sprintf("%s/%s/messages", strings.TrimRight(p.config.APIBaseURL, "/"), p.config.PhoneNumberID)
	report := &DeliveryReport{Results: make([]RecipientResult, 0, len(msg.Recipients))}

	for _, recipient := range msg.Recipients {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report.Results = append(report.Results, p.sendOne(ctx, url, recipient, msg.Body))
	}
	return report, nil
}

func (p *CloudWhatsAppProvider) sendOne(ctx context.Context, url, recipient, body string) RecipientResult {
	result := RecipientResult{Recipient: recipient}

	payload := whatsAppTextRequest{MessagingProduct: "whatsapp", To: strings.TrimPrefix(recipient, "+"), Type: "text"}
	payload.Text.Body = body

	b, err := json.Marshal(payload)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		result.Error = err.Error()
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.AccessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()

	var out whatsAppTextResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	_ = json.Unmarshal(raw, &out)

	switch {
	case out.Error != nil:
		result.Error = fmt.Sprintf("%s (%d)", out.Error.Message, out.Error.Code)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		result.Error = fmt.Sprintf("http status %d", resp.StatusCode)
	case len(out.Messages) == 0 || out.Messages[0].ID == "":
		result.Error = "no message id returned"
	default:
		result.MessageID = out.Messages[0].ID
	}
	return result
}

// SimulatedWhatsAppProvider logs messages instead of sending them
type SimulatedWhatsAppProvider struct {
	mu     sync.Mutex
	logger *log.Logger
	Sent   []OutboundMessage
}

// NewSimulatedWhatsAppProvider creates a logging-only WhatsApp provider
func NewSimulatedWhatsAppProvider(logger *log.Logger) *SimulatedWhatsAppProvider {
	if logger == nil {
		logger = log.Default()
	}
	return &SimulatedWhatsAppProvider{logger: logger}
}

func (p *SimulatedWhatsAppProvider) Send(ctx context.Context, msg OutboundMessage) (*DeliveryReport, error) {
	p.mu.Lock()
	p.Sent = append(p.Sent, msg)
	p.mu.Unlock()

	return simulateDelivery(p.logger, "WhatsApp", msg), nil
}
