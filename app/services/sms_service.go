// Package services provides external service integrations such as push, SMS and WhatsApp providers and tokens
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/amirphl/wilaya-connect/config"
	"github.com/google/uuid"
)

// SMSProvider sends one SMS body to many recipients
type SMSProvider interface {
	Send(ctx context.Context, msg OutboundMessage) (*DeliveryReport, error)
}

// HTTPSMSProvider posts batches to the SMS gateway's bulk endpoint
type HTTPSMSProvider struct {
	config *config.SMSConfig
	client HTTPDoer
}

// SMSRequest represents the request payload for SMS API
type SMSRequest struct {
	SrcNum         string `json:"srcNum"`
	Recipient      string `json:"recipient"`
	Body           string `json:"body"`
	Type           int    `json:"type"` // always 1
	ValidityPeriod int    `json:"validityPeriod"`
}

// SMSResponse represents individual message result from SMS API
type SMSResponse struct {
	MessageID  int64  `json:"messageId"`
	Recipient  string `json:"recipient"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
}

// NewHTTPSMSProvider creates a new SMS gateway client
func NewHTTPSMSProvider(cfg *config.SMSConfig, logger *log.Logger) SMSProvider {
	return &HTTPSMSProvider{
		config: cfg,
		client: NewRetryClient(&http.Client{Timeout: cfg.Timeout}, cfg.MaxRetries, logger),
	}
}

// Send submits the batch. The gateway only addresses phone numbers, so
// category broadcasts are rejected.
func (s *HTTPSMSProvider) Send(ctx context.Context, msg OutboundMessage) (*DeliveryReport, error) {
	if len(msg.Recipients) == 0 {
		return nil, fmt.Errorf("SMS gateway requires resolved recipients")
	}

	requests := make([]SMSRequest, 0, len(msg.Recipients))
	for _, r := range msg.Recipients {
		requests = append(requests, SMSRequest{
			SrcNum:         s.config.SourceNumber,
			Recipient:      r,
			Body:           msg.Body,
			Type:           1,
			ValidityPeriod: s.config.ValidityPeriod,
		})
	}

	requestBody, err := json.Marshal(requests)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SMS bulk request: %w", err)
	}

	url := fmt.Sprintf("https://%s/api/v3/send", s.config.ProviderDomain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send SMS bulk request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("SMS gateway http status: %d", resp.StatusCode)
	}

	var results []SMSResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode SMS bulk response: %w", err)
	}

	byRecipient := make(map[string]SMSResponse, len(results))
	for _, r := range results {
		byRecipient[r.Recipient] = r
	}

	report := &DeliveryReport{Results: make([]RecipientResult, 0, len(msg.Recipients))}
	for _, recipient := range msg.Recipients {
		r, ok := byRecipient[recipient]
		switch {
		case !ok:
			report.Results = append(report.Results, RecipientResult{Recipient: recipient, Error: "missing from gateway response"})
		case r.StatusCode != http.StatusOK || r.Status != "ACCEPTED":
			report.Results = append(report.Results, RecipientResult{Recipient: recipient, Error: fmt.Sprintf("%s (%d)", r.Status, r.StatusCode)})
		default:
			report.Results = append(report.Results, RecipientResult{Recipient: recipient, MessageID: strconv.FormatInt(r.MessageID, 10)})
		}
	}
	return report, nil
}

// SimulatedSMSProvider logs messages instead of sending them. A category
// broadcast is reported as a single accepted message.
type SimulatedSMSProvider struct {
	mu     sync.Mutex
	logger *log.Logger
	Sent   []OutboundMessage
}

// NewSimulatedSMSProvider creates a logging-only SMS provider
func NewSimulatedSMSProvider(logger *log.Logger) *SimulatedSMSProvider {
	if logger == nil {
		logger = log.Default()
	}
	return &SimulatedSMSProvider{logger: logger}
}

func (p *SimulatedSMSProvider) Send(ctx context.Context, msg OutboundMessage) (*DeliveryReport, error) {
	p.mu.Lock()
	p.Sent = append(p.Sent, msg)
	p.mu.Unlock()

	return simulateDelivery(p.logger, "SMS", msg), nil
}

// simulateDelivery logs msg and builds a fully successful report
func simulateDelivery(logger *log.Logger, channel string, msg OutboundMessage) *DeliveryReport {
	if len(msg.Recipients) == 0 {
		logger.Printf("SIMULATED %s: Targeting categories [%s]. Message: %q", channel, strings.Join(msg.Categories, ", "), msg.Body)
		return &DeliveryReport{Results: []RecipientResult{{
			Recipient: "categories:" + strings.Join(msg.Categories, ","),
			MessageID: "sim-" + uuid.NewString(),
		}}}
	}

	logger.Printf("SIMULATED %s: %d recipients. Message: %q", channel, len(msg.Recipients), msg.Body)
	report := &DeliveryReport{Results: make([]RecipientResult, 0, len(msg.Recipients))}
	for _, r := range msg.Recipients {
		report.Results = append(report.Results, RecipientResult{Recipient: r, MessageID: "sim-" + uuid.NewString()})
	}
	return report
}
