package businessflow

import (
	"strconv"
	"time"

	"github.com/amirphl/wilaya-connect/app/dto"
	"github.com/amirphl/wilaya-connect/models"
)

// ToCommunicationLogDTO converts a communication log model to its API representation
func ToCommunicationLogDTO(l models.CommunicationLog) dto.CommunicationLogDTO {
	channels := l.Channels.Data()
	out := dto.CommunicationLogDTO{
		ID:                       l.ID,
		UUID:                     l.UUID.String(),
		MessageContent:           l.MessageContent,
		Channels:                 dto.ChannelsDTO{SMS: channels.SMS, Push: channels.Push, WhatsApp: channels.WhatsApp},
		TargetAudienceCategories: nonNilStrings(l.TargetAudienceCategories),
		TargetCitizenIDs:         nonNilStrings(l.TargetCitizenIDs),
		Status:                   l.Status,
		FCMMessageIDs:            nonNilStrings(l.FCMMessageIDs),
		FCMSuccessCount:          l.FCMSuccessCount,
		FCMFailureCount:          l.FCMFailureCount,
		FailureReason:            l.FailureReason,
		ChannelOutcomes:          toChannelOutcomeDTOs(l.ChannelOutcomes.Data()),
		AdminID:                  l.AdminID,
		CreatedAt:                l.CreatedAt.UTC().Format(time.RFC3339),
	}
	if l.ScheduledAt != nil {
		s := l.ScheduledAt.UTC().Format(time.RFC3339)
		out.ScheduledAt = &s
	}
	if l.SentAt != nil {
		s := l.SentAt.UTC().Format(time.RFC3339)
		out.SentAt = &s
	}
	return out
}

// ToCategoryDTO converts a catalog entry, filling in the default description
func ToCategoryDTO(c models.Category) dto.CategoryDTO {
	c = c.WithDefaultDescription()
	return dto.CategoryDTO{ID: c.ID, Name: c.Name, Description: c.Description}
}

func toChannelOutcomeDTOs(tallies map[string]models.ChannelTally) map[string]dto.ChannelOutcomeDTO {
	if len(tallies) == 0 {
		return nil
	}
	out := make(map[string]dto.ChannelOutcomeDTO, len(tallies))
	for channel, t := range tallies {
		out[channel] = dto.ChannelOutcomeDTO{
			SuccessCount:  t.SuccessCount,
			FailureCount:  t.FailureCount,
			FailureReason: t.FailureReason,
		}
	}
	return out
}

func nonNilStrings(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func uintsToStrings(ids []uint) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, strconv.FormatUint(uint64(id), 10))
	}
	return out
}
