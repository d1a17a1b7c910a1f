package businessflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/wilaya-connect/app/services"
	"github.com/amirphl/wilaya-connect/models"
	"github.com/amirphl/wilaya-connect/utils"
)

// ChannelDispatcher delivers one message to the audience of the target categories
type ChannelDispatcher interface {
	Dispatch(ctx context.Context, message string, categories []string) DeliveryOutcome
}

// outboundSender is what SMS and WhatsApp providers have in common
type outboundSender interface {
	Send(ctx context.Context, msg services.OutboundMessage) (*services.DeliveryReport, error)
}

// outboundDispatcher is the shared SMS/WhatsApp delivery path. With
// resolveRecipients unset the provider receives a category broadcast.
type outboundDispatcher struct {
	channel           string
	label             string
	sender            outboundSender
	resolver          AudienceResolver
	resolveRecipients bool
	timeout           time.Duration
	logger            *log.Logger
}

func (d *outboundDispatcher) dispatch(ctx context.Context, body string, categories []string) DeliveryOutcome {
	outcome := DeliveryOutcome{Channel: d.channel, MessageIDs: []string{}}
	msg := services.OutboundMessage{Categories: categories, Body: body}

	if d.resolveRecipients {
		recipients, err := d.resolver.ResolvePhoneRecipients(ctx, categories)
		if err != nil {
			d.logger.Printf("%s recipient lookup failed: %v", d.label, err)
			outcome.FailureCount = 1
			outcome.FailureReason = utils.ToPtr(fmt.Sprintf("Database error fetching target citizens for %s.", d.label))
			return outcome
		}
		if len(recipients) == 0 {
			outcome.FailureReason = utils.ToPtr(fmt.Sprintf("No reachable phone numbers for %s.", d.label))
			return outcome
		}
		msg.Recipients = recipients
	}

	sendCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	report, err := d.sender.Send(sendCtx, msg)
	if err != nil {
		attempted := len(msg.Recipients)
		if attempted == 0 {
			attempted = 1
		}
		d.logger.Printf("%s dispatch failed wholesale: %v", d.label, err)
		outcome.FailureCount = attempted
		outcome.FailureReason = utils.ToPtr(err.Error())
		return outcome
	}

	outcome.SuccessCount, outcome.FailureCount, outcome.MessageIDs = report.Tally()
	switch {
	case outcome.FailureCount > 0 && outcome.SuccessCount > 0:
		outcome.FailureReason = utils.ToPtr(fmt.Sprintf("%d %s messages failed.", outcome.FailureCount, d.label))
	case outcome.FailureCount > 0:
		outcome.FailureReason = utils.ToPtr(fmt.Sprintf("All %s messages failed.", d.label))
	}
	return outcome
}

// SMSDispatcherImpl sends segment-limited SMS bodies
type SMSDispatcherImpl struct {
	outboundDispatcher
	maxSegments int
}

func NewSMSDispatcher(provider services.SMSProvider, resolver AudienceResolver, resolveRecipients bool, maxSegments int, timeout time.Duration, logger *log.Logger) ChannelDispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &SMSDispatcherImpl{
		outboundDispatcher: outboundDispatcher{
			channel:           models.ChannelSMS,
			label:             "SMS",
			sender:            provider,
			resolver:          resolver,
			resolveRecipients: resolveRecipients,
			timeout:           timeout,
			logger:            logger,
		},
		maxSegments: maxSegments,
	}
}

func (d *SMSDispatcherImpl) Dispatch(ctx context.Context, message string, categories []string) DeliveryOutcome {
	return d.dispatch(ctx, utils.TruncateSMS(message, d.maxSegments), categories)
}
