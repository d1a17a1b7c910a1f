package businessflow

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/wilaya-connect/app/dto"
	"github.com/amirphl/wilaya-connect/models"
	"github.com/amirphl/wilaya-connect/repository"
	"github.com/amirphl/wilaya-connect/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"
)

// Dispatch result messages
const (
	msgScheduled         = "Communication scheduled successfully."
	msgScheduleFailed    = "Failed to schedule communication."
	msgProcessedFmt      = "Communication processed. Status: %s."
	msgPushSummaryFmt    = " FCM: %d sent, %d failed."
	msgNotLogged         = "Communication processed but not durably logged."
	msgEmptyMessage      = "Message content cannot be empty."
	msgNoCategories      = "At least one target category must be selected."
	msgNoChannel         = "At least one communication channel must be selected."
	msgInvalidRequest    = "Invalid communication request."
	msgDuplicateDispatch = "This communication was already submitted."
)

const defaultExportMaxRows = 10000

// CommunicationFlow is the dispatch orchestrator plus the admin read side of the communication log
type CommunicationFlow interface {
	ProcessAndSendCommunication(ctx context.Context, req *dto.SendCommunicationRequest, adminID uint) (*dto.SendCommunicationResponse, error)
	ListCommunications(ctx context.Context, req *dto.ListCommunicationsRequest) (*dto.ListCommunicationsResponse, error)
	GetCommunication(ctx context.Context, uuid string) (*dto.CommunicationLogDTO, error)
	ExportCommunications(ctx context.Context, req *dto.ListCommunicationsRequest) (string, []byte, error)
}

// CommunicationFlowOptions tunes the orchestrator
type CommunicationFlowOptions struct {
	RedisPrefix    string
	IdempotencyTTL time.Duration
	ExportMaxRows  int
}

type CommunicationFlowImpl struct {
	logRepo  repository.CommunicationLogRepository
	resolver AudienceResolver
	push     PushDispatcher
	sms      ChannelDispatcher
	whatsapp ChannelDispatcher
	rdb      *redis.Client
	opts     CommunicationFlowOptions
	logger   *log.Logger
}

func NewCommunicationFlow(
	logRepo repository.CommunicationLogRepository,
	resolver AudienceResolver,
	push PushDispatcher,
	sms ChannelDispatcher,
	whatsapp ChannelDispatcher,
	rdb *redis.Client,
	opts CommunicationFlowOptions,
	logger *log.Logger,
) CommunicationFlow {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = utils.DispatchIdempotencyTTL
	}
	if opts.ExportMaxRows <= 0 {
		opts.ExportMaxRows = defaultExportMaxRows
	}
	if logger == nil {
		logger = log.Default()
	}
	return &CommunicationFlowImpl{
		logRepo:  logRepo,
		resolver: resolver,
		push:     push,
		sms:      sms,
		whatsapp: whatsapp,
		rdb:      rdb,
		opts:     opts,
		logger:   logger,
	}
}

// ProcessAndSendCommunication validates, then either schedules or dispatches the
// communication. The returned response is never nil; the error carries the
// machine-readable cause whenever Success is false.
func (f *CommunicationFlowImpl) ProcessAndSendCommunication(ctx context.Context, req *dto.SendCommunicationRequest, adminID uint) (*dto.SendCommunicationResponse, error) {
	if req == nil {
		return &dto.SendCommunicationResponse{Message: msgInvalidRequest},
			NewBusinessError("COMMUNICATION_VALIDATION_FAILED", msgInvalidRequest, ErrRequestRequired)
	}

	channels := models.ChannelSet{SMS: req.Channels.SMS, Push: req.Channels.Push, WhatsApp: req.Channels.WhatsApp}
	categories := uniqueStrings(utils.CleanStrings(req.TargetCategories))

	if strings.TrimSpace(req.MessageContent) == "" {
		return &dto.SendCommunicationResponse{Message: msgEmptyMessage},
			NewBusinessError("MESSAGE_CONTENT_REQUIRED", msgEmptyMessage, ErrMessageContentRequired)
	}
	if len(categories) == 0 {
		return &dto.SendCommunicationResponse{Message: msgNoCategories},
			NewBusinessError("TARGET_CATEGORIES_REQUIRED", msgNoCategories, ErrTargetCategoriesRequired)
	}
	if !channels.Any() {
		return &dto.SendCommunicationResponse{Message: msgNoChannel},
			NewBusinessError("CHANNEL_REQUIRED", msgNoChannel, ErrChannelRequired)
	}

	if dup, err := f.claimIdempotencyKey(ctx, adminID, req.IdempotencyKey); err != nil {
		f.logger.Printf("idempotency check skipped: %v", err)
	} else if dup {
		return &dto.SendCommunicationResponse{Message: msgDuplicateDispatch},
			NewBusinessError("DUPLICATE_DISPATCH", msgDuplicateDispatch, ErrDuplicateDispatch)
	}

	if req.ScheduledAt != nil && utils.IsFuture(*req.ScheduledAt) {
		return f.schedule(ctx, req, channels, categories, adminID)
	}

	// Providers may already have been called once dispatch starts; the
	// rest of the invocation must run to completion.
	dispatchCtx := context.WithoutCancel(ctx)

	outcomes, targets := f.dispatchChannels(dispatchCtx, req.MessageContent, categories, channels)
	status := AggregateStatus(outcomes...)
	pushOutcome := outcomeByChannel(outcomes, models.ChannelPush)

	citizenIDs := make([]uint, 0, len(targets))
	for _, t := range targets {
		citizenIDs = append(citizenIDs, t.ID)
	}

	tallies := make(map[string]models.ChannelTally, len(outcomes))
	for _, o := range outcomes {
		tallies[o.Channel] = o.Tally()
	}

	now := utils.UTCNow()
	entry := &models.CommunicationLog{
		UUID:                     uuid.New(),
		MessageContent:           req.MessageContent,
		Channels:                 datatypes.NewJSONType(channels),
		TargetAudienceCategories: pq.StringArray(categories),
		TargetCitizenIDs:         pq.StringArray(uintsToStrings(citizenIDs)),
		Status:                   status,
		FCMMessageIDs:            pq.StringArray(nonNilStrings(pushOutcome.MessageIDs)),
		FCMSuccessCount:          pushOutcome.SuccessCount,
		FCMFailureCount:          pushOutcome.FailureCount,
		FailureReason:            combinedFailureReason(outcomes...),
		ChannelOutcomes:          datatypes.NewJSONType(tallies),
		AdminID:                  adminID,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if status == models.CommunicationStatusSent || status == models.CommunicationStatusPartiallyFailed {
		entry.SentAt = &now
	}

	details := &dto.DispatchDetailsDTO{
		Status:             status,
		MessageIDs:         nonNilStrings(pushOutcome.MessageIDs),
		SuccessCount:       pushOutcome.SuccessCount,
		FailureCount:       pushOutcome.FailureCount,
		FailureReason:      entry.FailureReason,
		TargetCitizenCount: len(citizenIDs),
		Channels:           toChannelOutcomeDTOs(tallies),
	}

	recordDispatchMetrics(status, outcomes)

	if err := f.logRepo.Save(dispatchCtx, entry); err != nil {
		f.logger.Printf("failed to persist communication log (status %s, admin %d): %v", status, adminID, err)
		return &dto.SendCommunicationResponse{Message: msgNotLogged, Details: details},
			NewBusinessError("COMMUNICATION_LOG_FAILED", msgNotLogged, fmt.Errorf("%w: %v", ErrCommunicationNotLogged, err))
	}

	message := fmt.Sprintf(msgProcessedFmt, status)
	if channels.Push {
		message += fmt.Sprintf(msgPushSummaryFmt, pushOutcome.SuccessCount, pushOutcome.FailureCount)
	}

	return &dto.SendCommunicationResponse{
		Success: true,
		Message: message,
		LogID:   &entry.ID,
		LogUUID: entry.UUID.String(),
		Details: details,
	}, nil
}

func (f *CommunicationFlowImpl) schedule(ctx context.Context, req *dto.SendCommunicationRequest, channels models.ChannelSet, categories []string, adminID uint) (*dto.SendCommunicationResponse, error) {
	now := utils.UTCNow()
	entry := &models.CommunicationLog{
		UUID:                     uuid.New(),
		MessageContent:           req.MessageContent,
		Channels:                 datatypes.NewJSONType(channels),
		TargetAudienceCategories: pq.StringArray(categories),
		TargetCitizenIDs:         pq.StringArray{},
		Status:                   models.CommunicationStatusScheduled,
		ScheduledAt:              utils.TimeToUTCPtr(req.ScheduledAt),
		FCMMessageIDs:            pq.StringArray{},
		ChannelOutcomes:          datatypes.NewJSONType(map[string]models.ChannelTally{}),
		AdminID:                  adminID,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	if err := f.logRepo.Save(ctx, entry); err != nil {
		f.logger.Printf("failed to persist scheduled communication (admin %d): %v", adminID, err)
		f.releaseIdempotencyKey(ctx, adminID, req.IdempotencyKey)
		return &dto.SendCommunicationResponse{Message: msgScheduleFailed},
			NewBusinessError("COMMUNICATION_SCHEDULE_FAILED", msgScheduleFailed, fmt.Errorf("%w: %v", ErrCommunicationNotScheduled, err))
	}
	recordDispatchMetrics(models.CommunicationStatusScheduled, nil)

	return &dto.SendCommunicationResponse{
		Success: true,
		Message: msgScheduled,
		LogID:   &entry.ID,
		LogUUID: entry.UUID.String(),
	}, nil
}

// dispatchChannels runs every requested channel concurrently and waits for all of them.
// Outcomes come back in push, SMS, WhatsApp order, requested channels only.
func (f *CommunicationFlowImpl) dispatchChannels(ctx context.Context, message string, categories []string, channels models.ChannelSet) ([]DeliveryOutcome, []repository.CitizenPushTarget) {
	var (
		wg                                 sync.WaitGroup
		pushOutcome, smsOutcome, waOutcome DeliveryOutcome
		targets                            []repository.CitizenPushTarget
	)

	if channels.Push {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer f.recoverChannel(models.ChannelPush, &pushOutcome)

			resolved, err := f.resolver.ResolvePushAudience(ctx, categories)
			if err != nil {
				f.logger.Printf("push audience lookup failed: %v", err)
				pushOutcome = audienceFailureOutcome()
				return
			}
			targets = resolved
			pushOutcome = f.push.Dispatch(ctx, resolved, message)
		}()
	}
	if channels.SMS {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer f.recoverChannel(models.ChannelSMS, &smsOutcome)
			smsOutcome = f.sms.Dispatch(ctx, message, categories)
		}()
	}
	if channels.WhatsApp {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer f.recoverChannel(models.ChannelWhatsApp, &waOutcome)
			waOutcome = f.whatsapp.Dispatch(ctx, message, categories)
		}()
	}
	wg.Wait()

	outcomes := make([]DeliveryOutcome, 0, 3)
	if channels.Push {
		outcomes = append(outcomes, pushOutcome)
	}
	if channels.SMS {
		outcomes = append(outcomes, smsOutcome)
	}
	if channels.WhatsApp {
		outcomes = append(outcomes, waOutcome)
	}
	return outcomes, targets
}

// recoverChannel turns a dispatcher panic into a failed outcome for that channel only
func (f *CommunicationFlowImpl) recoverChannel(channel string, outcome *DeliveryOutcome) {
	if r := recover(); r != nil {
		f.logger.Printf("%s dispatcher panicked: %v", channel, r)
		reason := fmt.Sprintf("Internal error while sending %s.", channel)
		*outcome = DeliveryOutcome{Channel: channel, FailureCount: 1, MessageIDs: []string{}, FailureReason: &reason}
	}
}

// claimIdempotencyKey reports whether key was already claimed by this admin.
// Without Redis or a key every submission is treated as new.
func (f *CommunicationFlowImpl) claimIdempotencyKey(ctx context.Context, adminID uint, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if f.rdb == nil || key == "" {
		return false, nil
	}
	ok, err := f.rdb.SetNX(ctx, f.idempotencyRedisKey(adminID, key), utils.UTCNow().Unix(), f.opts.IdempotencyTTL).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// releaseIdempotencyKey frees a claim whose submission left nothing behind
func (f *CommunicationFlowImpl) releaseIdempotencyKey(ctx context.Context, adminID uint, key string) {
	key = strings.TrimSpace(key)
	if f.rdb == nil || key == "" {
		return
	}
	if err := f.rdb.Del(context.WithoutCancel(ctx), f.idempotencyRedisKey(adminID, key)).Err(); err != nil {
		f.logger.Printf("failed to release idempotency key for admin %d: %v", adminID, err)
	}
}

func (f *CommunicationFlowImpl) idempotencyRedisKey(adminID uint, key string) string {
	return fmt.Sprintf("%s%s%d:%s", f.opts.RedisPrefix, utils.DispatchIdempotencyKey, adminID, key)
}

func (f *CommunicationFlowImpl) buildFilter(req *dto.ListCommunicationsRequest) (models.CommunicationLogFilter, error) {
	filter := models.CommunicationLogFilter{}
	if req == nil {
		return filter, nil
	}
	if req.Status != nil && *req.Status != "" {
		status := strings.ToUpper(strings.TrimSpace(*req.Status))
		if !models.IsValidCommunicationStatus(status) {
			return filter, NewBusinessError("INVALID_STATUS_FILTER", "Unknown communication status", ErrInvalidStatusFilter)
		}
		filter.Status = &status
	}
	if req.StartDate != nil && req.EndDate != nil && req.StartDate.After(*req.EndDate) {
		return filter, NewBusinessError("INVALID_DATE_RANGE", "Start date cannot be after end date", ErrStartDateAfterEndDate)
	}
	if req.Category != nil && strings.TrimSpace(*req.Category) != "" {
		category := strings.TrimSpace(*req.Category)
		filter.Category = &category
	}
	filter.AdminID = req.AdminID
	filter.CreatedAfter = utils.TimeToUTCPtr(req.StartDate)
	filter.CreatedBefore = utils.TimeToUTCPtr(req.EndDate)
	return filter, nil
}

func (f *CommunicationFlowImpl) ListCommunications(ctx context.Context, req *dto.ListCommunicationsRequest) (*dto.ListCommunicationsResponse, error) {
	if req == nil {
		req = &dto.ListCommunicationsRequest{}
	}
	page, pageSize := req.Page, req.PageSize
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = 20
	}
	if page < 1 {
		return nil, NewBusinessError("INVALID_PAGE", "Invalid page", ErrInvalidPage)
	}
	if pageSize < 1 || pageSize > 100 {
		return nil, NewBusinessError("INVALID_PAGE_SIZE", "Invalid page size", ErrInvalidPageSize)
	}

	filter, err := f.buildFilter(req)
	if err != nil {
		return nil, err
	}

	total, err := f.logRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("COMMUNICATION_LIST_FAILED", "Failed to list communications", err)
	}
	rows, err := f.logRepo.ByFilter(ctx, filter, "id DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("COMMUNICATION_LIST_FAILED", "Failed to list communications", err)
	}

	// status breakdown ignores the status filter itself
	breakdownFilter := filter
	breakdownFilter.Status = nil
	counts, err := f.logRepo.CountByStatus(ctx, breakdownFilter)
	if err != nil {
		return nil, NewBusinessError("COMMUNICATION_LIST_FAILED", "Failed to count communications by status", err)
	}

	items := make([]dto.CommunicationLogDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, ToCommunicationLogDTO(*row))
	}

	return &dto.ListCommunicationsResponse{
		Items: items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
		StatusCounts: counts,
	}, nil
}

func (f *CommunicationFlowImpl) GetCommunication(ctx context.Context, id string) (*dto.CommunicationLogDTO, error) {
	if _, err := utils.ParseUUID(id); err != nil {
		return nil, NewBusinessError("COMMUNICATION_NOT_FOUND", "Communication not found", ErrCommunicationNotFound)
	}
	entry, err := f.logRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("COMMUNICATION_FETCH_FAILED", "Failed to fetch communication", err)
	}
	if entry == nil {
		return nil, NewBusinessError("COMMUNICATION_NOT_FOUND", "Communication not found", ErrCommunicationNotFound)
	}
	out := ToCommunicationLogDTO(*entry)
	return &out, nil
}

// ExportCommunications renders the filtered communication logs as an XLSX workbook
func (f *CommunicationFlowImpl) ExportCommunications(ctx context.Context, req *dto.ListCommunicationsRequest) (string, []byte, error) {
	filter, err := f.buildFilter(req)
	if err != nil {
		return "", nil, err
	}
	rows, err := f.logRepo.ByFilter(ctx, filter, "id DESC", f.opts.ExportMaxRows, 0)
	if err != nil {
		return "", nil, NewBusinessError("COMMUNICATION_EXPORT_FAILED", "Failed to fetch communications for export", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := "Communications"
	xl.SetSheetName(xl.GetSheetName(0), sheet)

	header := []string{"id", "uuid", "status", "channels", "target_categories", "target_citizens", "fcm_success", "fcm_failure", "failure_reason", "admin_id", "scheduled_at", "sent_at", "created_at", "message"}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	for ri, r := range rows {
		record := []any{
			r.ID,
			r.UUID.String(),
			r.Status,
			strings.Join(r.Channels.Data().Names(), ","),
			strings.Join(r.TargetAudienceCategories, ", "),
			len(r.TargetCitizenIDs),
			r.FCMSuccessCount,
			r.FCMFailureCount,
			utils.DerefString(r.FailureReason),
			r.AdminID,
			utils.FormatTimePtr(r.ScheduledAt),
			utils.FormatTimePtr(r.SentAt),
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.MessageContent,
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(sheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := "communications_" + strconv.FormatInt(utils.UTCNow().Unix(), 10) + ".xlsx"
	return filename, buf.Bytes(), nil
}
