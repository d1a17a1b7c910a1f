package businessflow

import (
	"strings"

	"github.com/amirphl/wilaya-connect/models"
)

// DeliveryOutcome is the transient per-channel result of one dispatch
type DeliveryOutcome struct {
	Channel       string
	SuccessCount  int
	FailureCount  int
	MessageIDs    []string
	FailureReason *string
}

// Attempted is the number of sends the channel tried
func (o DeliveryOutcome) Attempted() int {
	return o.SuccessCount + o.FailureCount
}

// Tally converts the outcome to its persisted form
func (o DeliveryOutcome) Tally() models.ChannelTally {
	return models.ChannelTally{
		SuccessCount:  o.SuccessCount,
		FailureCount:  o.FailureCount,
		FailureReason: o.FailureReason,
	}
}

// AggregateStatus folds the outcomes of the requested channels into one
// communication status. Only requested channels may be passed in.
//
// Precedence: nothing attempted is PENDING, every attempt succeeded is SENT,
// mixed results are PARTIALLY_FAILED and all attempts failed is FAILED.
func AggregateStatus(outcomes ...DeliveryOutcome) string {
	var success, failure int
	for _, o := range outcomes {
		success += o.SuccessCount
		failure += o.FailureCount
	}

	switch {
	case success+failure == 0:
		return models.CommunicationStatusPending
	case failure == 0:
		return models.CommunicationStatusSent
	case success > 0:
		return models.CommunicationStatusPartiallyFailed
	default:
		return models.CommunicationStatusFailed
	}
}

// combinedFailureReason joins the reasons of channels that actually failed.
// Notes of channels that attempted nothing are only surfaced when no channel
// attempted anything; otherwise they stay in the per-channel outcome.
func combinedFailureReason(outcomes ...DeliveryOutcome) *string {
	reasons := make([]string, 0, len(outcomes))
	attempted := 0
	for _, o := range outcomes {
		attempted += o.Attempted()
		if o.FailureCount > 0 && o.FailureReason != nil && *o.FailureReason != "" {
			reasons = append(reasons, *o.FailureReason)
		}
	}
	if attempted == 0 {
		for _, o := range outcomes {
			if o.FailureReason != nil && *o.FailureReason != "" {
				reasons = append(reasons, *o.FailureReason)
			}
		}
	}
	if len(reasons) == 0 {
		return nil
	}
	joined := strings.Join(reasons, " ")
	return &joined
}

// outcomeByChannel finds the outcome for channel, zero-valued when absent
func outcomeByChannel(outcomes []DeliveryOutcome, channel string) DeliveryOutcome {
	for _, o := range outcomes {
		if o.Channel == channel {
			return o
		}
	}
	return DeliveryOutcome{Channel: channel}
}
