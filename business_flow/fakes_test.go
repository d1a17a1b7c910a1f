package businessflow

import (
	"context"
	"errors"
	"io"
	"log"
	"sort"
	"sync"

	"github.com/amirphl/wilaya-connect/models"
	"github.com/amirphl/wilaya-connect/repository"
	"github.com/amirphl/wilaya-connect/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// fakeCitizenRepo is an in-memory citizen directory with the same audience
// semantics as the SQL implementation.
type fakeCitizenRepo struct {
	mu        sync.Mutex
	citizens  map[uint]*models.Citizen
	subs      []models.NotificationSubscription
	findErr   error
	removeErr error
	findCalls int
}

func newFakeCitizenRepo() *fakeCitizenRepo {
	return &fakeCitizenRepo{citizens: map[uint]*models.Citizen{}}
}

func (r *fakeCitizenRepo) addCitizen(id uint, phone string, tokens ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.citizens[id] = &models.Citizen{ID: id, UUID: uuid.New(), PhoneNumber: phone, PushTokens: pq.StringArray(tokens)}
}

func (r *fakeCitizenRepo) subscribe(citizenID uint, category string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, models.NotificationSubscription{CitizenID: citizenID, CategoryName: category, IsActive: utils.ToPtr(active)})
}

func (r *fakeCitizenRepo) tokens(id uint) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.citizens[id]
	if !ok {
		return nil
	}
	return append([]string(nil), c.PushTokens...)
}

func (r *fakeCitizenRepo) subscribedIDs(categoryNames []string) []uint {
	want := map[string]struct{}{}
	for _, n := range categoryNames {
		want[n] = struct{}{}
	}
	hit := map[uint]struct{}{}
	for _, s := range r.subs {
		if _, ok := want[s.CategoryName]; ok && utils.IsTrue(s.IsActive) {
			hit[s.CitizenID] = struct{}{}
		}
	}
	ids := make([]uint, 0, len(hit))
	for id := range hit {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *fakeCitizenRepo) ByID(ctx context.Context, id uint) (*models.Citizen, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.citizens[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCitizenRepo) ByFilter(ctx context.Context, filter models.CitizenFilter, orderBy string, limit, offset int) ([]*models.Citizen, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Citizen, 0, len(r.citizens))
	for _, c := range r.citizens {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeCitizenRepo) Save(ctx context.Context, c *models.Citizen) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.citizens[c.ID] = c
	return nil
}

func (r *fakeCitizenRepo) Count(ctx context.Context, filter models.CitizenFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.citizens)), nil
}

func (r *fakeCitizenRepo) Exists(ctx context.Context, filter models.CitizenFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *fakeCitizenRepo) ByUUID(ctx context.Context, id string) (*models.Citizen, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.citizens {
		if c.UUID.String() == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCitizenRepo) ByPhoneNumber(ctx context.Context, phone string) (*models.Citizen, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.citizens {
		if c.PhoneNumber == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCitizenRepo) FindBySubscribedCategories(ctx context.Context, categoryNames []string) ([]repository.CitizenPushTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	if r.findErr != nil {
		return nil, r.findErr
	}
	out := []repository.CitizenPushTarget{}
	for _, id := range r.subscribedIDs(categoryNames) {
		c := r.citizens[id]
		if c == nil || len(utils.CleanStrings(c.PushTokens)) == 0 {
			continue
		}
		out = append(out, repository.CitizenPushTarget{ID: c.ID, PushTokens: append(pq.StringArray(nil), c.PushTokens...)})
	}
	return out, nil
}

func (r *fakeCitizenRepo) FindPhoneNumbersBySubscribedCategories(ctx context.Context, categoryNames []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	out := []string{}
	for _, id := range r.subscribedIDs(categoryNames) {
		if c := r.citizens[id]; c != nil && c.PhoneNumber != "" {
			out = append(out, c.PhoneNumber)
		}
	}
	return out, nil
}

func (r *fakeCitizenRepo) AddPushToken(ctx context.Context, citizenID uint, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.citizens[citizenID]
	if !ok {
		return nil
	}
	for _, t := range c.PushTokens {
		if t == token {
			return nil
		}
	}
	c.PushTokens = append(c.PushTokens, token)
	return nil
}

func (r *fakeCitizenRepo) RemovePushToken(ctx context.Context, citizenID uint, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.removeErr != nil {
		return r.removeErr
	}
	c, ok := r.citizens[citizenID]
	if !ok {
		return nil
	}
	kept := pq.StringArray{}
	for _, t := range c.PushTokens {
		if t != token {
			kept = append(kept, t)
		}
	}
	c.PushTokens = kept
	return nil
}

// fakeLogRepo records saved communication logs
type fakeLogRepo struct {
	mu         sync.Mutex
	saved      []*models.CommunicationLog
	saveErr    error
	saveCtxErr error
}

func (r *fakeLogRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

func (r *fakeLogRepo) last() *models.CommunicationLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saved) == 0 {
		return nil
	}
	return r.saved[len(r.saved)-1]
}

func (r *fakeLogRepo) ByID(ctx context.Context, id uint) (*models.CommunicationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.saved {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, nil
}

func (r *fakeLogRepo) ByFilter(ctx context.Context, filter models.CommunicationLogFilter, orderBy string, limit, offset int) ([]*models.CommunicationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.CommunicationLog{}
	for i := len(r.saved) - 1; i >= 0; i-- {
		l := r.saved[i]
		if filter.Status != nil && l.Status != *filter.Status {
			continue
		}
		if filter.UUID != nil && l.UUID != *filter.UUID {
			continue
		}
		out = append(out, l)
	}
	if offset > len(out) {
		return []*models.CommunicationLog{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeLogRepo) Save(ctx context.Context, l *models.CommunicationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCtxErr = ctx.Err()
	if r.saveErr != nil {
		return r.saveErr
	}
	l.ID = uint(len(r.saved) + 1)
	r.saved = append(r.saved, l)
	return nil
}

func (r *fakeLogRepo) Count(ctx context.Context, filter models.CommunicationLogFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), err
}

func (r *fakeLogRepo) Exists(ctx context.Context, filter models.CommunicationLogFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *fakeLogRepo) ByUUID(ctx context.Context, id string) (*models.CommunicationLog, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	rows, err := r.ByFilter(ctx, models.CommunicationLogFilter{UUID: &parsed}, "", 1, 0)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *fakeLogRepo) CountByStatus(ctx context.Context, filter models.CommunicationLogFilter) (map[string]int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}
	out := map[string]int64{}
	for _, l := range rows {
		out[l.Status]++
	}
	return out, nil
}

// fakeSubRepo keeps subscriptions keyed by (citizen, category)
type fakeSubRepo struct {
	mu        sync.Mutex
	rows      map[uint]map[string]bool
	upsertErr error
}

func newFakeSubRepo() *fakeSubRepo {
	return &fakeSubRepo{rows: map[uint]map[string]bool{}}
}

func (r *fakeSubRepo) all(citizenID uint) []*models.NotificationSubscription {
	out := []*models.NotificationSubscription{}
	for name, active := range r.rows[citizenID] {
		out = append(out, &models.NotificationSubscription{CitizenID: citizenID, CategoryName: name, IsActive: utils.ToPtr(active)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryName < out[j].CategoryName })
	return out
}

func (r *fakeSubRepo) ByID(ctx context.Context, id uint) (*models.NotificationSubscription, error) {
	return nil, nil
}

func (r *fakeSubRepo) ByFilter(ctx context.Context, filter models.NotificationSubscriptionFilter, orderBy string, limit, offset int) ([]*models.NotificationSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if filter.CitizenID == nil {
		return nil, errors.New("citizen filter required")
	}
	return r.all(*filter.CitizenID), nil
}

func (r *fakeSubRepo) Save(ctx context.Context, s *models.NotificationSubscription) error {
	return r.Upsert(ctx, s)
}

func (r *fakeSubRepo) Count(ctx context.Context, filter models.NotificationSubscriptionFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), err
}

func (r *fakeSubRepo) Exists(ctx context.Context, filter models.NotificationSubscriptionFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *fakeSubRepo) ListByCitizen(ctx context.Context, citizenID uint) ([]*models.NotificationSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.all(citizenID), nil
}

func (r *fakeSubRepo) Upsert(ctx context.Context, s *models.NotificationSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	if r.rows[s.CitizenID] == nil {
		r.rows[s.CitizenID] = map[string]bool{}
	}
	r.rows[s.CitizenID][s.CategoryName] = utils.IsTrue(s.IsActive)
	return nil
}

type pruneCall struct {
	CitizenID uint
	Token     string
}

// recordingPruner captures prune requests instead of running them
type recordingPruner struct {
	mu     sync.Mutex
	calls  []pruneCall
	reject bool
}

func (p *recordingPruner) Enqueue(citizenID uint, token string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reject {
		return false
	}
	p.calls = append(p.calls, pruneCall{CitizenID: citizenID, Token: token})
	return true
}

func (p *recordingPruner) Calls() []pruneCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pruneCall(nil), p.calls...)
}
