package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/amirphl/wilaya-connect/config"
	"github.com/amirphl/wilaya-connect/utils"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const fcmScope = "https://www.googleapis.com/auth/firebase.messaging"

// PushNotification is the banner shown on the device
type PushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// PushTokenResult carries either a MessageID or an ErrorCode for one token
type PushTokenResult struct {
	Token     string
	MessageID string
	ErrorCode string
}

// PushBatchResponse holds one result per token, in request order
type PushBatchResponse struct {
	Results []PushTokenResult
}

// PushProvider sends one notification to many device tokens. A returned error
// means no per-token results are available.
type PushProvider interface {
	SendBatch(ctx context.Context, tokens []string, notification PushNotification) (*PushBatchResponse, error)
}

// FCMPushProvider talks to the FCM HTTP v1 API, one request per token
type FCMPushProvider struct {
	projectID   string
	endpoint    string
	tokens      oauth2.TokenSource
	client      HTTPDoer
	concurrency int
	logger      *log.Logger
}

// NewFCMPushProvider builds a provider authenticated with the service account file in cfg
func NewFCMPushProvider(ctx context.Context, cfg config.PushConfig, logger *log.Logger) (*FCMPushProvider, error) {
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read FCM credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse FCM credentials: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	return NewFCMPushProviderWithTokenSource(
		cfg.ProjectID,
		cfg.Endpoint,
		oauth2.ReuseTokenSource(nil, creds.TokenSource),
		NewRetryClient(httpClient, cfg.MaxRetries, logger),
		cfg.Concurrency,
		logger,
	), nil
}

// NewFCMPushProviderWithTokenSource wires a provider from explicit parts
func NewFCMPushProviderWithTokenSource(projectID, endpoint string, ts oauth2.TokenSource, client HTTPDoer, concurrency int, logger *log.Logger) *FCMPushProvider {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &FCMPushProvider{
		projectID:   projectID,
		endpoint:    strings.TrimRight(endpoint, "/"),
		tokens:      ts,
		client:      client,
		concurrency: concurrency,
		logger:      logger,
	}
}

type fcmSendRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string           `json:"token"`
	Notification PushNotification `json:"notification"`
}

type fcmSendResponse struct {
	Name string `json:"name"`
}

type fcmErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type            string `json:"@type"`
			ErrorCode       string `json:"errorCode"`
			FieldViolations []struct {
				Field       string `json:"field"`
				Description string `json:"description"`
			} `json:"fieldViolations"`
		} `json:"details"`
	} `json:"error"`
}

const (
	fcmErrorType      = "type.googleapis.com/google.firebase.fcm.v1.FcmError"
	badRequestType    = "type.googleapis.com/google.rpc.BadRequest"
	fcmTokenFieldPath = "message.token"
)

// SendBatch fans the notification out with bounded concurrency. Failing to
// obtain an access token, or reaching FCM for no token at all, fails the whole batch.
func (p *FCMPushProvider) SendBatch(ctx context.Context, tokens []string, notification PushNotification) (*PushBatchResponse, error) {
	resp := &PushBatchResponse{Results: make([]PushTokenResult, len(tokens))}
	if len(tokens) == 0 {
		return resp, nil
	}

	accessToken, err := p.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain FCM access token: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", p.endpoint, p.projectID)
	sem := make(chan struct{}, p.concurrency)
	transportErrs := make([]error, len(tokens))
	var wg sync.WaitGroup

	for i, token := range tokens {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, token string) {
			defer wg.Done()
			defer func() { <-sem }()
			resp.Results[i], transportErrs[i] = p.sendOne(ctx, url, accessToken, token, notification)
		}(i, token)
	}
	wg.Wait()

	if err := allUnreachable(transportErrs); err != nil {
		return nil, fmt.Errorf("FCM unreachable: %w", err)
	}
	return resp, nil
}

// allUnreachable returns the first error when every attempt failed before FCM answered
func allUnreachable(errs []error) error {
	for _, err := range errs {
		if err == nil {
			return nil
		}
	}
	return errs[0]
}

// sendOne returns a non-nil error only when the request never got an answer from FCM
func (p *FCMPushProvider) sendOne(ctx context.Context, url string, accessToken *oauth2.Token, token string, notification PushNotification) (PushTokenResult, error) {
	result := PushTokenResult{Token: token}

	body, err := json.Marshal(fcmSendRequest{Message: fcmMessage{Token: token, Notification: notification}})
	if err != nil {
		result.ErrorCode = "messaging/invalid-payload"
		return result, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		result.ErrorCode = "messaging/internal-error"
		return result, nil
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	accessToken.SetAuthHeader(req)

	httpResp, err := p.client.Do(req)
	if err != nil {
		p.logger.Printf("fcm send failed for token %s: %v", maskToken(token), err)
		result.ErrorCode = "messaging/unavailable"
		return result, err
	}
	defer httpResp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64*1024))
	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		var ok fcmSendResponse
		if err := json.Unmarshal(raw, &ok); err != nil || ok.Name == "" {
			result.ErrorCode = "messaging/internal-error"
			return result, nil
		}
		result.MessageID = ok.Name
		return result, nil
	}

	var fcmErr fcmErrorResponse
	_ = json.Unmarshal(raw, &fcmErr)
	result.ErrorCode = classifyFCMError(fcmErr, httpResp.StatusCode)
	if result.ErrorCode != utils.PushErrorTokenNotRegistered && result.ErrorCode != utils.PushErrorInvalidToken {
		p.logger.Printf("fcm rejected token %s with %d %s: %s", maskToken(token), httpResp.StatusCode, fcmErr.Error.Status, fcmErr.Error.Message)
	}
	return result, nil
}

// classifyFCMError only reports a token error when FCM blames the token itself.
// Project, auth and payload errors map to retryable messaging/* codes.
func classifyFCMError(e fcmErrorResponse, status int) string {
	fcmCode := ""
	for _, d := range e.Error.Details {
		switch d.Type {
		case fcmErrorType:
			if fcmCode == "" {
				fcmCode = d.ErrorCode
			}
		case badRequestType:
			if e.Error.Status != "INVALID_ARGUMENT" {
				continue
			}
			for _, v := range d.FieldViolations {
				if v.Field == fcmTokenFieldPath {
					return utils.PushErrorInvalidToken
				}
			}
		}
	}
	if fcmCode == "UNREGISTERED" {
		return utils.PushErrorTokenNotRegistered
	}
	if fcmCode == "" {
		fcmCode = e.Error.Status
	}
	return mapFCMErrorCode(fcmCode, status)
}

// mapFCMErrorCode converts a non-token FCM v1 code into the messaging/* vocabulary
func mapFCMErrorCode(code string, status int) string {
	if code == "" {
		return fmt.Sprintf("messaging/http-%d", status)
	}
	return "messaging/" + strings.ToLower(strings.ReplaceAll(code, "_", "-"))
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// MockPushProvider accepts every token unless told otherwise
type MockPushProvider struct {
	mu       sync.Mutex
	failures map[string]string
	err      error
	Calls    [][]string
	Sent     []PushNotification
}

// NewMockPushProvider creates a mock push provider
func NewMockPushProvider() *MockPushProvider {
	return &MockPushProvider{failures: map[string]string{}}
}

// FailToken makes token fail with errorCode
func (m *MockPushProvider) FailToken(token, errorCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[token] = errorCode
}

// FailBatch makes every subsequent SendBatch fail wholesale with err
func (m *MockPushProvider) FailBatch(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// CallCount returns the number of SendBatch invocations
func (m *MockPushProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *MockPushProvider) SendBatch(ctx context.Context, tokens []string, notification PushNotification) (*PushBatchResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, append([]string(nil), tokens...))
	m.Sent = append(m.Sent, notification)
	if m.err != nil {
		return nil, m.err
	}

	resp := &PushBatchResponse{Results: make([]PushTokenResult, 0, len(tokens))}
	for _, token := range tokens {
		if code, ok := m.failures[token]; ok {
			resp.Results = append(resp.Results, PushTokenResult{Token: token, ErrorCode: code})
			continue
		}
		resp.Results = append(resp.Results, PushTokenResult{Token: token, MessageID: "mock-" + uuid.NewString()})
	}
	return resp, nil
}
