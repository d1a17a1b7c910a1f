package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/wilaya-connect/repository"
	"github.com/amirphl/wilaya-connect/utils"
)

// AudienceResolver turns target category names into concrete recipients
type AudienceResolver interface {
	// ResolvePushAudience returns citizens with at least one push token and an
	// active subscription to any of categoryNames. An empty list resolves to nothing.
	ResolvePushAudience(ctx context.Context, categoryNames []string) ([]repository.CitizenPushTarget, error)
	// ResolvePhoneRecipients is the SMS/WhatsApp analogue keyed by phone number.
	ResolvePhoneRecipients(ctx context.Context, categoryNames []string) ([]string, error)
}

type AudienceResolverImpl struct {
	citizenRepo repository.CitizenRepository
}

func NewAudienceResolver(citizenRepo repository.CitizenRepository) AudienceResolver {
	return &AudienceResolverImpl{citizenRepo: citizenRepo}
}

func (r *AudienceResolverImpl) ResolvePushAudience(ctx context.Context, categoryNames []string) ([]repository.CitizenPushTarget, error) {
	names := uniqueStrings(utils.CleanStrings(categoryNames))
	if len(names) == 0 {
		return []repository.CitizenPushTarget{}, nil
	}

	targets, err := r.citizenRepo.FindBySubscribedCategories(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve push audience: %w", err)
	}

	out := make([]repository.CitizenPushTarget, 0, len(targets))
	for _, t := range targets {
		tokens := utils.CleanStrings(t.PushTokens)
		if len(tokens) == 0 {
			continue
		}
		t.PushTokens = tokens
		out = append(out, t)
	}
	return out, nil
}

func (r *AudienceResolverImpl) ResolvePhoneRecipients(ctx context.Context, categoryNames []string) ([]string, error) {
	names := uniqueStrings(utils.CleanStrings(categoryNames))
	if len(names) == 0 {
		return []string{}, nil
	}

	phones, err := r.citizenRepo.FindPhoneNumbersBySubscribedCategories(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve phone recipients: %w", err)
	}
	return uniqueStrings(utils.CleanStrings(phones)), nil
}

// uniqueStrings drops repeated items, keeping first-seen order
func uniqueStrings(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
