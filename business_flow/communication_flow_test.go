package businessflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/amirphl/wilaya-connect/app/dto"
	"github.com/amirphl/wilaya-connect/app/services"
	"github.com/amirphl/wilaya-connect/models"
	"github.com/amirphl/wilaya-connect/utils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const travauxPublics = "Travaux Publics"

type flowFixture struct {
	flow      CommunicationFlow
	citizens  *fakeCitizenRepo
	logs      *fakeLogRepo
	push      *services.MockPushProvider
	sms       *services.SimulatedSMSProvider
	whatsapp  *services.SimulatedWhatsAppProvider
	pruner    *recordingPruner
	redis     *miniredis.Miniredis
	rdbClient *redis.Client
}

func newFlowFixture(t *testing.T, withRedis bool) *flowFixture {
	t.Helper()

	fx := &flowFixture{
		citizens: newFakeCitizenRepo(),
		logs:     &fakeLogRepo{},
		push:     services.NewMockPushProvider(),
		sms:      services.NewSimulatedSMSProvider(quietLogger()),
		whatsapp: services.NewSimulatedWhatsAppProvider(quietLogger()),
		pruner:   &recordingPruner{},
	}
	if withRedis {
		fx.redis = miniredis.RunT(t)
		fx.rdbClient = redis.NewClient(&redis.Options{Addr: fx.redis.Addr()})
		t.Cleanup(func() { _ = fx.rdbClient.Close() })
	}

	resolver := NewAudienceResolver(fx.citizens)
	fx.flow = NewCommunicationFlow(
		fx.logs,
		resolver,
		NewPushDispatcher(fx.push, fx.pruner, time.Second, quietLogger()),
		NewSMSDispatcher(fx.sms, resolver, false, utils.SMSDefaultMaxSegments, time.Second, quietLogger()),
		NewWhatsAppDispatcher(fx.whatsapp, resolver, false, true, time.Second, quietLogger()),
		fx.rdbClient,
		CommunicationFlowOptions{RedisPrefix: "test:", IdempotencyTTL: time.Minute},
		quietLogger(),
	)
	return fx
}

// seedTravauxPublics registers three subscribed citizens holding t1, t2 and t3
func (fx *flowFixture) seedTravauxPublics() {
	for i, token := range []string{"t1", "t2", "t3"} {
		id := uint(i + 1)
		fx.citizens.addCitizen(id, "+21355000000"+string(rune('1'+i)), token)
		fx.citizens.subscribe(id, travauxPublics, true)
	}
}

func pushRequest(message string, categories ...string) *dto.SendCommunicationRequest {
	return &dto.SendCommunicationRequest{
		MessageContent:   message,
		Channels:         dto.ChannelsDTO{Push: true},
		TargetCategories: categories,
	}
}

func TestProcessAndSendCommunication_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     *dto.SendCommunicationRequest
		isErr   func(error) bool
		message string
	}{
		{
			name:    "EmptyCategories",
			req:     &dto.SendCommunicationRequest{MessageContent: "Bonjour", Channels: dto.ChannelsDTO{Push: true, SMS: true}, TargetCategories: []string{}},
			isErr:   IsTargetCategoriesRequired,
			message: msgNoCategories,
		},
		{
			name:    "BlankCategoriesOnly",
			req:     &dto.SendCommunicationRequest{MessageContent: "Bonjour", Channels: dto.ChannelsDTO{Push: true}, TargetCategories: []string{"  ", ""}},
			isErr:   IsTargetCategoriesRequired,
			message: msgNoCategories,
		},
		{
			name:    "WhitespaceMessage",
			req:     &dto.SendCommunicationRequest{MessageContent: " \n\t ", Channels: dto.ChannelsDTO{SMS: true}, TargetCategories: []string{travauxPublics}},
			isErr:   IsMessageContentRequired,
			message: msgEmptyMessage,
		},
		{
			name:    "NoChannel",
			req:     &dto.SendCommunicationRequest{MessageContent: "Bonjour", TargetCategories: []string{travauxPublics}},
			isErr:   IsChannelRequired,
			message: msgNoChannel,
		},
		{
			name:    "NilRequest",
			req:     nil,
			isErr:   IsDispatchValidationError,
			message: msgInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFlowFixture(t, false)
			fx.seedTravauxPublics()

			resp, err := fx.flow.ProcessAndSendCommunication(context.Background(), tt.req, 1)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.True(t, tt.isErr(err))
			assert.True(t, IsDispatchValidationError(err))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.message, resp.Message)

			var bizErr *BusinessError
			require.True(t, errors.As(err, &bizErr))

			assert.Zero(t, fx.push.CallCount())
			assert.Empty(t, fx.sms.Sent)
			assert.Empty(t, fx.whatsapp.Sent)
			assert.Zero(t, fx.logs.count())
			assert.Zero(t, fx.citizens.findCalls)
		})
	}
}

func TestProcessAndSendCommunication_Scheduled(t *testing.T) {
	fx := newFlowFixture(t, false)
	fx.seedTravauxPublics()

	at := time.Now().Add(time.Hour)
	req := &dto.SendCommunicationRequest{
		MessageContent:   "Réunion du conseil municipal",
		Channels:         dto.ChannelsDTO{Push: true, SMS: true, WhatsApp: true},
		TargetCategories: []string{travauxPublics},
		ScheduledAt:      &at,
	}

	before := testutil.ToFloat64(communicationDispatchTotal.WithLabelValues(models.CommunicationStatusScheduled))

	resp, err := fx.flow.ProcessAndSendCommunication(context.Background(), req, 4)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, msgScheduled, resp.Message)
	require.NotNil(t, resp.LogID)
	assert.NotEmpty(t, resp.LogUUID)
	assert.Nil(t, resp.Details)

	require.Equal(t, 1, fx.logs.count())
	entry := fx.logs.last()
	assert.Equal(t, models.CommunicationStatusScheduled, entry.Status)
	assert.Empty(t, entry.TargetCitizenIDs)
	require.NotNil(t, entry.ScheduledAt)
	assert.Equal(t, time.UTC, entry.ScheduledAt.Location())
	assert.Nil(t, entry.SentAt)
	assert.Equal(t, uint(4), entry.AdminID)
	assert.Equal(t, models.ChannelSet{Push: true, SMS: true, WhatsApp: true}, entry.Channels.Data())

	assert.Zero(t, fx.push.CallCount())
	assert.Empty(t, fx.sms.Sent)
	assert.Empty(t, fx.whatsapp.Sent)
	assert.Zero(t, fx.citizens.findCalls)

	after := testutil.ToFloat64(communicationDispatchTotal.WithLabelValues(models.CommunicationStatusScheduled))
	assert.Equal(t, before+1, after)

	t.Run("LogWriteFailure", func(t *testing.T) {
		fx.logs.saveErr = errors.New("connection refused")
		resp, err := fx.flow.ProcessAndSendCommunication(context.Background(), req, 4)
		require.Error(t, err)
		assert.True(t, IsCommunicationNotScheduled(err))
		assert.False(t, resp.Success)
		assert.Equal(t, msgScheduleFailed, resp.Message)
		assert.Zero(t, fx.push.CallCount())
	})
}

func TestProcessAndSendCommunication_PastScheduleDispatchesNow(t *testing.T) {
	fx := newFlowFixture(t, false)
	fx.seedTravauxPublics()

	past := time.Now().Add(-time.Minute)
	req := pushRequest("Coupure d'eau prévue demain", travauxPublics)
	req.ScheduledAt = &past

	resp, err := fx.flow.ProcessAndSendCommunication(context.Background(), req, 1)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, fx.push.CallCount())
	assert.Equal(t, models.CommunicationStatusSent, fx.logs.last().Status)
}

func TestProcessAndSendCommunication_PushAllSent(t *testing.T) {
	fx := newFlowFixture(t, false)
	fx.seedTravauxPublics()

	resp, err := fx.flow.ProcessAndSendCommunication(context.Background(), pushRequest("Coupure d'eau prévue demain", travauxPublics), 1)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Communication processed. Status: SENT. FCM: 3 sent, 0 failed.", resp.Message)

	require.Equal(t, 1, fx.logs.count())
	entry := fx.logs.last()
	assert.Equal(t, models.CommunicationStatusSent, entry.Status)
	assert.Equal(t, 3, entry.FCMSuccessCount)
	assert.Equal(t, 0, entry.FCMFailureCount)
	assert.Len(t, entry.FCMMessageIDs, 3)
	assert.ElementsMatch(t, []string{"1", "2", "3"}, []string(entry.TargetCitizenIDs))
	assert.Equal(t, []string{travauxPublics}, []string(entry.TargetAudienceCategories))
	assert.NotNil(t, entry.SentAt)
	assert.Nil(t, entry.FailureReason)

	require.Equal(t, 1, fx.push.CallCount())
	assert.Equal(t, []string{"t1", "t2", "t3"}, fx.push.Calls[0])
	assert.Equal(t, utils.PushNotificationTitle, fx.push.Sent[0].Title)
	assert.Equal(t, "Coupure d'eau prévue demain", fx.push.Sent[0].Body)
	assert.Empty(t, fx.pruner.Calls())

	require.NotNil(t, resp.Details)
	assert.Equal(t, 3, resp.Details.TargetCitizenCount)
	assert.Equal(t, 3, resp.Details.SuccessCount)
}

func TestProcessAndSendCommunication_PushPartialWithCleanup(t *testing.T) {
	fx := newFlowFixture(t, false)
	fx.seedTravauxPublics()
	fx.push.FailToken("t2", utils.PushErrorTokenNotRegistered)

	resp, err := fx.flow.ProcessAndSendCommunication(context.Background(), pushRequest("Coupure d'eau prévue demain", travauxPublics), 1)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Communication processed. Status: PARTIALLY_FAILED. FCM: 2 sent, 1 failed.", resp.Message)

	entry := fx.logs.last()
	assert.Equal(t, models.CommunicationStatusPartiallyFailed, entry.Status)
	assert.Equal(t, 2, entry.FCMSuccessCount)
	assert.Equal(t, 1, entry.FCMFailureCount)
	require.NotNil(t, entry.FailureReason)
	assert.Equal(t, "1 FCM notifications failed.", *entry.FailureReason)
	assert.NotNil(t, entry.SentAt)

	assert.Equal(t, []pruneCall{{CitizenID: 2, Token: "t2"}}, fx.pruner.Calls())
}

func TestProcessAndSendCommunication_CleanupDoesNotAlterStatus(t *testing.T) {
	fx := newFlowFixture(t, false)
	fx.seedTravauxPublics()
	fx.push.FailToken("t2", utils.PushErrorInvalidToken)
	fx.pruner.reject = true

	resp, err := fx.flow.ProcessAndSendCommunication(context.Background(), pushRequest("Bonjour", travauxPublics), 1)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, models.CommunicationStatusPartiallyFailed, fx.logs.last().Status)
}

func TestProcessAndSendCommunication_EmptyPushAudienceWithSMS(t *testing.T) {
	fx := newFlowFixture(t, false)
	fx.seedTravauxPublics()

	req := &dto.SendCommunicationRequest{
		MessageContent:   "Campagne de vaccination",
		Channels:         dto.ChannelsDTO{Push: true, SMS: true},
		TargetCategories: []string{"Santé Publique"},
	}
	resp, err := fx.flow.ProcessAndSendCommunication(context.Background(), req, 1)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Communication processed. Status: SENT. FCM: 0 sent, 0 failed.", resp.Message)

	entry := fx.logs.last()
	assert.Equal(t, models.CommunicationStatusSent, entry.Status)
	assert.Equal(t, 0, entry.FCMSuccessCount)
	assert.Equal(t, 0, entry.FCMFailureCount)
	assert.Empty(t, entry.TargetCitizenIDs)
	assert.Nil(t, entry.FailureReason)

	outcomes := entry.ChannelOutcomes.Data()
	assert.Equal(t, 1, outcomes[models.ChannelSMS].SuccessCount)
	require.NotNil(t, outcomes[models.ChannelPush].FailureReason)
	assert.Equal(t, pushReasonNoTokens, *outcomes[models.ChannelPush].FailureReason)

	assert.Zero(t, fx.push.CallCount())
	require.Len(t, fx.sms.Sent, 1)
	assert.Equal(t, []string{"Santé Publique"}, fx.sms.Sent[0].Categories)
}

func TestProcessAndSendCommunication_PushOnlyNothingAttempted(t *testing.T) {
	fx := newFlowFixture(t, false)

	resp, err := fx.flow.ProcessAndSendCommunication(context.Background(), pushRequest("Bonjour", "Culture et Loisirs"), 1)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Communication processed. Status: PENDING. FCM: 0 sent, 0 failed.", resp.Message)

	entry := fx.logs.last()
	assert.Equal(t, models.CommunicationStatusPending, entry.Status)
	assert.Nil(t, entry.SentAt)
	require.NotNil(t, entry.FailureReason)
	assert.Equal(t, pushReasonNoTokens, *entry.FailureReason)
}

func TestProcessAndSendCommunication_SharedTokenSentOnce(t *testing.T) {
	fx := newFlowFixture(t, false)
	fx.citizens.addCitizen(1, "+213550000001", "shared", "own-1")
	fx.citizens.addCitizen(2, "+213550000002", "shared")
	fx.citizens.subscribe(1, travauxPublics, true)
	fx.citizens.subscribe(2, "Urbanisme", true)
	fx.push.FailToken("shared", utils.PushErrorTokenNotRegistered)

	_, err := fx.flow.ProcessAndSendCommunication(context.Background(), pushRequest("Bonjour", travauxPublics, "Urbanisme"), 1)
	require.NoError(t, err)

	require.Equal(t, 1, fx.push.CallCount())
	assert.Equal(t, []string{"shared", "own-1"}, fx.push.Calls[0])
	assert.ElementsMatch(t, []pruneCall{{CitizenID: 1, Token: "shared"}, {CitizenID: 2, Token: "shared"}}, fx.pruner.Calls())

	entry := fx.logs.last()
	assert.Equal(t, 1, entry.FCMSuccessCount)
	assert.Equal(t, 1, entry.FCMFailureCount)
}

func TestProcessAndSendCommunication_AudienceLookupFailure(t *testing.T) {
	fx := newFlowFixture(t, false)
	fx.seedTravauxPublics()
	fx.citizens.findErr = errors.New("relation \"citizens\" does not exist")

	req := &dto.SendCommunicationRequest{
		MessageContent:   "Bonjour",
		Channels:         dto.ChannelsDTO{Push: true, WhatsApp: true},
		TargetCategories: []string{travauxPublics},
	}
	resp, err := fx.flow.ProcessAndSendCommunication(context.Background(), req, 1)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	entry := fx.logs.last()
	assert.Equal(t, models.CommunicationStatusPartiallyFailed, entry.Status)
	require.NotNil(t, entry.FailureReason)
	assert.Equal(t, pushReasonAudience, *entry.FailureReason)
	assert.Zero(t, fx.push.CallCount())
	assert.Len(t, fx.whatsapp.Sent, 1, "other channels still run")
}

func TestProcessAndSendCommunication_ProviderWholesaleFailure(t *testing.T) {
	fx := newFlowFixture(t, false)
	fx.seedTravauxPublics()
	fx.push.FailBatch(errors.New("oauth2: cannot fetch token"))

	resp, err := fx.flow.ProcessAndSendCommunication(context.Background(), pushRequest("Bonjour", travauxPublics), 1)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Communication processed. Status: FAILED. FCM: 0 sent, 3 failed.", resp.Message)

	entry := fx.logs.last()
	assert.Equal(t, models.CommunicationStatusFailed, entry.Status)
	assert.Equal(t, 3, entry.FCMFailureCount)
	require.NotNil(t, entry.FailureReason)
	assert.Equal(t, "oauth2: cannot fetch token", *entry.FailureReason)
	assert.Nil(t, entry.SentAt)
	assert.Empty(t, fx.pruner.Calls())
}

func TestProcessAndSendCommunication_LogWriteFailure(t *testing.T) {
	fx := newFlowFixture(t, false)
	fx.seedTravauxPublics()
	fx.logs.saveErr = errors.New("disk full")

	resp, err := fx.flow.ProcessAndSendCommunication(context.Background(), pushRequest("Bonjour", travauxPublics), 1)
	require.Error(t, err)
	assert.True(t, IsCommunicationNotLogged(err))
	assert.False(t, IsDispatchValidationError(err))
	assert.False(t, resp.Success)
	assert.Equal(t, msgNotLogged, resp.Message)
	assert.Nil(t, resp.LogID)

	require.NotNil(t, resp.Details)
	assert.Equal(t, models.CommunicationStatusSent, resp.Details.Status)
	assert.Equal(t, 3, resp.Details.SuccessCount)
	assert.Equal(t, 1, fx.push.CallCount())
}

func TestProcessAndSendCommunication_RunsToCompletionAfterCancel(t *testing.T) {
	fx := newFlowFixture(t, false)
	fx.seedTravauxPublics()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := fx.flow.ProcessAndSendCommunication(ctx, pushRequest("Bonjour", travauxPublics), 1)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.NoError(t, fx.logs.saveCtxErr)
	assert.Equal(t, 1, fx.logs.count())
}

func TestProcessAndSendCommunication_AllChannels(t *testing.T) {
	fx := newFlowFixture(t, false)
	fx.seedTravauxPublics()

	long := strings.Repeat("é", 300)
	req := &dto.SendCommunicationRequest{
		MessageContent:   long,
		Channels:         dto.ChannelsDTO{Push: true, SMS: true, WhatsApp: true},
		TargetCategories: []string{travauxPublics, travauxPublics},
	}
	resp, err := fx.flow.ProcessAndSendCommunication(context.Background(), req, 1)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	entry := fx.logs.last()
	assert.Equal(t, models.CommunicationStatusSent, entry.Status)
	assert.Equal(t, []string{travauxPublics}, []string(entry.TargetAudienceCategories))
	assert.Equal(t, []string{models.ChannelPush, models.ChannelSMS, models.ChannelWhatsApp}, entry.Channels.Data().Names())
	assert.Len(t, entry.ChannelOutcomes.Data(), 3)
	assert.Equal(t, long, entry.MessageContent)

	assert.Equal(t, strings.Repeat("é", utils.PushBodyMaxLength)+"...", fx.push.Sent[0].Body)
	require.Len(t, fx.sms.Sent, 1)
	assert.LessOrEqual(t, utils.SMSSegments(fx.sms.Sent[0].Body), utils.SMSDefaultMaxSegments)
	require.Len(t, fx.whatsapp.Sent, 1)
	assert.True(t, strings.HasPrefix(fx.whatsapp.Sent[0].Body, utils.WhatsAppHeader+"\n\n"))
}

func TestProcessAndSendCommunication_Idempotency(t *testing.T) {
	fx := newFlowFixture(t, true)
	fx.seedTravauxPublics()

	req := pushRequest("Bonjour", travauxPublics)
	req.IdempotencyKey = "abc-123"

	resp, err := fx.flow.ProcessAndSendCommunication(context.Background(), req, 1)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.True(t, fx.redis.Exists("test:"+utils.DispatchIdempotencyKey+"1:abc-123"))

	resp, err = fx.flow.ProcessAndSendCommunication(context.Background(), req, 1)
	require.Error(t, err)
	assert.True(t, IsDuplicateDispatch(err))
	assert.False(t, resp.Success)
	assert.Equal(t, 1, fx.push.CallCount())
	assert.Equal(t, 1, fx.logs.count())

	// keys are scoped per admin
	resp, err = fx.flow.ProcessAndSendCommunication(context.Background(), req, 2)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	t.Run("ScheduleFailureReleasesKey", func(t *testing.T) {
		at := time.Now().Add(time.Hour)
		scheduled := pushRequest("Plus tard", travauxPublics)
		scheduled.ScheduledAt = &at
		scheduled.IdempotencyKey = "sched-1"

		fx.logs.saveErr = errors.New("connection refused")
		resp, err := fx.flow.ProcessAndSendCommunication(context.Background(), scheduled, 1)
		require.Error(t, err)
		assert.False(t, resp.Success)
		assert.False(t, fx.redis.Exists("test:"+utils.DispatchIdempotencyKey+"1:sched-1"))

		fx.logs.saveErr = nil
		before := fx.logs.count()
		resp, err = fx.flow.ProcessAndSendCommunication(context.Background(), scheduled, 1)
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, msgScheduled, resp.Message)
		assert.Equal(t, before+1, fx.logs.count())

		_, err = fx.flow.ProcessAndSendCommunication(context.Background(), scheduled, 1)
		assert.True(t, IsDuplicateDispatch(err))
	})

	t.Run("RedisDownFailsOpen", func(t *testing.T) {
		fx.redis.Close()
		req.IdempotencyKey = "other"
		resp, err := fx.flow.ProcessAndSendCommunication(context.Background(), req, 1)
		require.NoError(t, err)
		assert.True(t, resp.Success)
	})
}

func TestProcessAndSendCommunication_OtherCategorySubscriberExcluded(t *testing.T) {
	fx := newFlowFixture(t, false)
	fx.seedTravauxPublics()
	fx.citizens.addCitizen(9, "+213550000099", "urbanisme-token")
	fx.citizens.subscribe(9, "Urbanisme", true)

	resp, err := fx.flow.ProcessAndSendCommunication(context.Background(), pushRequest("Bonjour", travauxPublics), 1)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Details.TargetCitizenCount)

	require.Equal(t, 1, fx.push.CallCount())
	assert.ElementsMatch(t, []string{"t1", "t2", "t3"}, fx.push.Calls[0])
	assert.NotContains(t, fx.push.Calls[0], "urbanisme-token")
	assert.NotContains(t, []string(fx.logs.last().TargetCitizenIDs), "9")
}

func TestListAndGetCommunications(t *testing.T) {
	fx := newFlowFixture(t, false)
	fx.seedTravauxPublics()

	at := time.Now().Add(time.Hour)
	scheduled := pushRequest("Plus tard", travauxPublics)
	scheduled.ScheduledAt = &at
	_, err := fx.flow.ProcessAndSendCommunication(context.Background(), scheduled, 1)
	require.NoError(t, err)
	sent, err := fx.flow.ProcessAndSendCommunication(context.Background(), pushRequest("Maintenant", travauxPublics), 1)
	require.NoError(t, err)

	list, err := fx.flow.ListCommunications(context.Background(), &dto.ListCommunicationsRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.Pagination.Total)
	assert.Equal(t, 1, list.Pagination.TotalPages)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "Maintenant", list.Items[0].MessageContent)
	assert.Equal(t, map[string]int64{models.CommunicationStatusSent: 1, models.CommunicationStatusScheduled: 1}, list.StatusCounts)

	status := "sent"
	filtered, err := fx.flow.ListCommunications(context.Background(), &dto.ListCommunicationsRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, int64(1), filtered.Pagination.Total)

	bad := "DELIVERED"
	_, err = fx.flow.ListCommunications(context.Background(), &dto.ListCommunicationsRequest{Status: &bad})
	assert.True(t, IsInvalidStatusFilter(err))

	_, err = fx.flow.ListCommunications(context.Background(), &dto.ListCommunicationsRequest{PageSize: 500})
	assert.True(t, IsInvalidPageSize(err))

	got, err := fx.flow.GetCommunication(context.Background(), sent.LogUUID)
	require.NoError(t, err)
	assert.Equal(t, models.CommunicationStatusSent, got.Status)
	assert.Equal(t, 3, got.FCMSuccessCount)
	require.NotNil(t, got.SentAt)

	_, err = fx.flow.GetCommunication(context.Background(), "not-a-uuid")
	assert.True(t, IsCommunicationNotFound(err))
	_, err = fx.flow.GetCommunication(context.Background(), "7b0e2f4c-4d0a-4a3e-9d51-0c7e0c9c2a11")
	assert.True(t, IsCommunicationNotFound(err))
}

func TestExportCommunications(t *testing.T) {
	fx := newFlowFixture(t, false)
	fx.seedTravauxPublics()

	_, err := fx.flow.ProcessAndSendCommunication(context.Background(), pushRequest("Bonjour", travauxPublics), 1)
	require.NoError(t, err)

	name, data, err := fx.flow.ExportCommunications(context.Background(), &dto.ListCommunicationsRequest{})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".xlsx"))
	require.NotEmpty(t, data)
	assert.Equal(t, "PK", string(data[:2]), "xlsx is a zip container")
}
