package businessflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/wilaya-connect/app/services"
	"github.com/amirphl/wilaya-connect/models"
	"github.com/amirphl/wilaya-connect/repository"
	"github.com/amirphl/wilaya-connect/utils"
)

// Push failure reasons recorded on the communication log
const (
	pushReasonNoTokens      = "No valid push tokens for targeted citizens."
	pushReasonAllFailed     = "All FCM notifications failed."
	pushReasonSomeFailedFmt = "%d FCM notifications failed."
	pushReasonGeneric       = "General FCM sending error."
	pushReasonAudience      = "Database error fetching target citizens for FCM."
)

// PushDispatcher fans one message out to the push tokens of resolved citizens
type PushDispatcher interface {
	Dispatch(ctx context.Context, targets []repository.CitizenPushTarget, message string) DeliveryOutcome
}

type PushDispatcherImpl struct {
	provider services.PushProvider
	pruner   TokenPruneQueue
	timeout  time.Duration
	logger   *log.Logger
}

func NewPushDispatcher(provider services.PushProvider, pruner TokenPruneQueue, timeout time.Duration, logger *log.Logger) PushDispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &PushDispatcherImpl{
		provider: provider,
		pruner:   pruner,
		timeout:  timeout,
		logger:   logger,
	}
}

// collectTokens returns the de-duplicated tokens in first-seen order and every owner of each token
func collectTokens(targets []repository.CitizenPushTarget) ([]string, map[string][]uint) {
	tokens := make([]string, 0, len(targets))
	owners := make(map[string][]uint, len(targets))
	for _, t := range targets {
		for _, token := range t.PushTokens {
			if token == "" {
				continue
			}
			ids, seen := owners[token]
			if !seen {
				tokens = append(tokens, token)
			}
			if !containsID(ids, t.ID) {
				owners[token] = append(ids, t.ID)
			}
		}
	}
	return tokens, owners
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// isPermanentTokenError reports provider codes that mean the token will never work again
func isPermanentTokenError(code string) bool {
	return code == utils.PushErrorTokenNotRegistered || code == utils.PushErrorInvalidToken
}

func (d *PushDispatcherImpl) Dispatch(ctx context.Context, targets []repository.CitizenPushTarget, message string) DeliveryOutcome {
	outcome := DeliveryOutcome{Channel: models.ChannelPush, MessageIDs: []string{}}

	tokens, owners := collectTokens(targets)
	if len(tokens) == 0 {
		outcome.FailureReason = utils.ToPtr(pushReasonNoTokens)
		return outcome
	}

	notification := services.PushNotification{
		Title: utils.PushNotificationTitle,
		Body:  utils.TruncateRunes(message, utils.PushBodyMaxLength),
	}

	sendCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	resp, err := d.provider.SendBatch(sendCtx, tokens, notification)
	if err != nil || resp == nil {
		reason := pushReasonGeneric
		if err != nil && err.Error() != "" {
			reason = err.Error()
		}
		d.logger.Printf("push dispatch failed wholesale for %d tokens: %s", len(tokens), reason)
		outcome.FailureCount = len(tokens)
		outcome.FailureReason = &reason
		return outcome
	}

	answered := make(map[string]struct{}, len(tokens))
	for _, r := range resp.Results {
		if _, requested := owners[r.Token]; !requested {
			d.logger.Printf("ignoring FCM result for unrequested token")
			continue
		}
		if _, dup := answered[r.Token]; dup {
			continue
		}
		answered[r.Token] = struct{}{}
		if r.MessageID != "" && r.ErrorCode == "" {
			outcome.SuccessCount++
			outcome.MessageIDs = append(outcome.MessageIDs, r.MessageID)
			continue
		}
		outcome.FailureCount++
		if isPermanentTokenError(r.ErrorCode) {
			d.prune(r.Token, owners[r.Token])
		}
	}
	for _, token := range tokens {
		if _, ok := answered[token]; !ok {
			outcome.FailureCount++
		}
	}

	switch {
	case outcome.FailureCount > 0 && outcome.SuccessCount > 0:
		outcome.FailureReason = utils.ToPtr(fmt.Sprintf(pushReasonSomeFailedFmt, outcome.FailureCount))
	case outcome.FailureCount > 0:
		outcome.FailureReason = utils.ToPtr(pushReasonAllFailed)
	}

	d.logger.Printf("FCM results: %d sent, %d failed", outcome.SuccessCount, outcome.FailureCount)
	return outcome
}

func (d *PushDispatcherImpl) prune(token string, citizenIDs []uint) {
	if d.pruner == nil {
		return
	}
	for _, id := range citizenIDs {
		if !d.pruner.Enqueue(id, token) {
			d.logger.Printf("token prune queue full, dropped cleanup for citizen %d", id)
		}
	}
}

// audienceFailureOutcome is the push outcome when the audience lookup itself failed.
// It counts as a single failed attempt so the channel is never mistaken for "nothing attempted".
func audienceFailureOutcome() DeliveryOutcome {
	return DeliveryOutcome{
		Channel:       models.ChannelPush,
		FailureCount:  1,
		MessageIDs:    []string{},
		FailureReason: utils.ToPtr(pushReasonAudience),
	}
}
