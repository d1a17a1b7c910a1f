package services

// OutboundMessage is one logical message sent by an SMS or WhatsApp provider.
// Recipients is empty for a category broadcast that the provider fans out itself.
type OutboundMessage struct {
	Recipients []string
	Categories []string
	Body       string
}

// RecipientResult is the provider verdict for one recipient
type RecipientResult struct {
	Recipient string
	MessageID string
	Error     string
}

// Succeeded reports whether the provider accepted the message for this recipient
func (r RecipientResult) Succeeded() bool {
	return r.Error == "" && r.MessageID != ""
}

// DeliveryReport is the per-recipient outcome of one provider call
type DeliveryReport struct {
	Results []RecipientResult
}

// Tally counts successes and failures and collects provider message ids
func (r *DeliveryReport) Tally() (success, failure int, messageIDs []string) {
	if r == nil {
		return 0, 0, nil
	}
	messageIDs = make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Succeeded() {
			success++
			messageIDs = append(messageIDs, res.MessageID)
		} else {
			failure++
		}
	}
	return success, failure, messageIDs
}
