package businessflow

import (
	"testing"

	"github.com/amirphl/wilaya-connect/models"
	"github.com/amirphl/wilaya-connect/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outcome(channel string, success, failure int, reason string) DeliveryOutcome {
	o := DeliveryOutcome{Channel: channel, SuccessCount: success, FailureCount: failure}
	if reason != "" {
		o.FailureReason = utils.ToPtr(reason)
	}
	return o
}

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []DeliveryOutcome
		want     string
	}{
		{"NoOutcomes", nil, models.CommunicationStatusPending},
		{"NothingAttempted", []DeliveryOutcome{outcome(models.ChannelPush, 0, 0, pushReasonNoTokens)}, models.CommunicationStatusPending},
		{"AllSucceeded", []DeliveryOutcome{outcome(models.ChannelPush, 3, 0, "")}, models.CommunicationStatusSent},
		{"Mixed", []DeliveryOutcome{outcome(models.ChannelPush, 2, 1, "")}, models.CommunicationStatusPartiallyFailed},
		{"AllFailed", []DeliveryOutcome{outcome(models.ChannelPush, 0, 3, "")}, models.CommunicationStatusFailed},
		{"EmptyPushWithSMSSuccess", []DeliveryOutcome{outcome(models.ChannelPush, 0, 0, ""), outcome(models.ChannelSMS, 1, 0, "")}, models.CommunicationStatusSent},
		{"FailuresAcrossChannels", []DeliveryOutcome{outcome(models.ChannelPush, 0, 2, ""), outcome(models.ChannelWhatsApp, 5, 0, "")}, models.CommunicationStatusPartiallyFailed},
		{"EveryChannelFailed", []DeliveryOutcome{outcome(models.ChannelSMS, 0, 1, ""), outcome(models.ChannelWhatsApp, 0, 1, "")}, models.CommunicationStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AggregateStatus(tt.outcomes...))
		})
	}
}

func TestCombinedFailureReason(t *testing.T) {
	t.Run("NoFailures", func(t *testing.T) {
		assert.Nil(t, combinedFailureReason(outcome(models.ChannelPush, 2, 0, "")))
	})

	t.Run("OnlyFailingChannels", func(t *testing.T) {
		got := combinedFailureReason(
			outcome(models.ChannelPush, 1, 1, "1 FCM notifications failed."),
			outcome(models.ChannelSMS, 0, 0, "No reachable phone numbers for SMS."),
			outcome(models.ChannelWhatsApp, 0, 1, "All WhatsApp messages failed."),
		)
		require.NotNil(t, got)
		assert.Equal(t, "1 FCM notifications failed. All WhatsApp messages failed.", *got)
	})

	t.Run("NotesSurfaceWhenNothingAttempted", func(t *testing.T) {
		got := combinedFailureReason(outcome(models.ChannelPush, 0, 0, pushReasonNoTokens))
		require.NotNil(t, got)
		assert.Equal(t, pushReasonNoTokens, *got)
	})

	t.Run("NotesHiddenWhenSomethingSucceeded", func(t *testing.T) {
		assert.Nil(t, combinedFailureReason(
			outcome(models.ChannelPush, 0, 0, pushReasonNoTokens),
			outcome(models.ChannelSMS, 1, 0, ""),
		))
	})
}

func TestDeliveryOutcomeTally(t *testing.T) {
	o := outcome(models.ChannelSMS, 4, 1, "1 SMS messages failed.")
	assert.Equal(t, 5, o.Attempted())

	tally := o.Tally()
	assert.Equal(t, 4, tally.SuccessCount)
	assert.Equal(t, 1, tally.FailureCount)
	require.NotNil(t, tally.FailureReason)
	assert.Equal(t, "1 SMS messages failed.", *tally.FailureReason)

	missing := outcomeByChannel([]DeliveryOutcome{o}, models.ChannelPush)
	assert.Equal(t, models.ChannelPush, missing.Channel)
	assert.Zero(t, missing.Attempted())
}
