package businessflow

import (
	"context"
	"log"
	"time"
	"unicode/utf8"

	"github.com/amirphl/wilaya-connect/app/services"
	"github.com/amirphl/wilaya-connect/models"
	"github.com/amirphl/wilaya-connect/utils"
)

// WhatsAppDispatcherImpl sends long-form bodies with optional emphasis header
type WhatsAppDispatcherImpl struct {
	outboundDispatcher
	emphasisHeader bool
}

func NewWhatsAppDispatcher(provider services.WhatsAppProvider, resolver AudienceResolver, resolveRecipients, emphasisHeader bool, timeout time.Duration, logger *log.Logger) ChannelDispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &WhatsAppDispatcherImpl{
		outboundDispatcher: outboundDispatcher{
			channel:           models.ChannelWhatsApp,
			label:             "WhatsApp",
			sender:            provider,
			resolver:          resolver,
			resolveRecipients: resolveRecipients,
			timeout:           timeout,
			logger:            logger,
		},
		emphasisHeader: emphasisHeader,
	}
}

func (d *WhatsAppDispatcherImpl) Dispatch(ctx context.Context, message string, categories []string) DeliveryOutcome {
	return d.dispatch(ctx, formatWhatsAppBody(message, d.emphasisHeader), categories)
}

// formatWhatsAppBody prefixes the bold header when enabled and caps the total length
func formatWhatsAppBody(message string, emphasisHeader bool) string {
	prefix := ""
	if emphasisHeader {
		prefix = utils.WhatsAppHeader + "\n\n"
	}
	budget := utils.WhatsAppBodyMaxLength - utf8.RuneCountInString(prefix)
	if utf8.RuneCountInString(message) > budget {
		message = utils.TruncateRunes(message, budget-utf8.RuneCountInString(utils.TruncationIndicator))
	}
	return prefix + message
}
