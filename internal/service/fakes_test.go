package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"servechat/internal/domain"
	"servechat/internal/repository"
)

// fakeWarehouse implementa los tres repositorios en memoria.
type fakeWarehouse struct {
	mu            sync.Mutex
	conversations map[string]domain.Conversation
	messages      []domain.Message
	events        []domain.UsageEvent
	summary       domain.UsageSummary

	ensureCalls int
	err         error
}

func newFakeWarehouse() *fakeWarehouse {
	return &fakeWarehouse{conversations: make(map[string]domain.Conversation)}
}

func (f *fakeWarehouse) service() *ConversationService {
	return NewConversationService(nil, fakeConversationRepo{f}, fakeMessageRepo{f}, fakeUsageRepo{f}, Pricing{PromptPer1K: 1, CompletionPer1K: 2})
}

type fakeConversationRepo struct{ f *fakeWarehouse }

func (r fakeConversationRepo) Ensure(_ context.Context, conv domain.Conversation) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.err != nil {
		return r.f.err
	}
	r.f.ensureCalls++
	if existing, ok := r.f.conversations[conv.ID]; ok {
		existing.UpdatedAt = conv.UpdatedAt
		r.f.conversations[conv.ID] = existing
		return nil
	}
	r.f.conversations[conv.ID] = conv
	return nil
}

func (r fakeConversationRepo) update(id string, fn func(*domain.Conversation)) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.err != nil {
		return r.f.err
	}
	conv, ok := r.f.conversations[id]
	if !ok {
		return repository.ErrConversationNotFound
	}
	fn(&conv)
	r.f.conversations[id] = conv
	return nil
}

func (r fakeConversationRepo) UpdateModel(_ context.Context, id, model string) error {
	return r.update(id, func(c *domain.Conversation) { c.Model = model })
}

func (r fakeConversationRepo) UpdateTitle(_ context.Context, id, title string) error {
	return r.update(id, func(c *domain.Conversation) { c.Title = title })
}

func (r fakeConversationRepo) GetByID(_ context.Context, id string) (domain.Conversation, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.err != nil {
		return domain.Conversation{}, r.f.err
	}
	conv, ok := r.f.conversations[id]
	if !ok {
		return domain.Conversation{}, repository.ErrConversationNotFound
	}
	return conv, nil
}

func (r fakeConversationRepo) List(_ context.Context, filter domain.ConversationFilter) ([]domain.ConversationSummary, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.err != nil {
		return nil, r.f.err
	}
	var out []domain.ConversationSummary
	for _, c := range r.f.conversations {
		if filter.UserID != "" && c.UserID != filter.UserID {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(c.Title+" "+c.Model), strings.ToLower(filter.Search)) {
			continue
		}
		s := domain.ConversationSummary{ConversationID: c.ID, Title: c.Title, Model: c.Model, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
		for _, m := range r.f.messages {
			if m.ConversationID == c.ID {
				s.Messages++
			}
		}
		for _, e := range r.f.events {
			if e.ConversationID == c.ID {
				s.TokensIn += int64(e.TokensIn)
				s.TokensOut += int64(e.TokensOut)
				s.Cost += e.Cost
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r fakeConversationRepo) Delete(_ context.Context, id string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.err != nil {
		return r.f.err
	}
	events := r.f.events[:0]
	for _, e := range r.f.events {
		if e.ConversationID != id {
			events = append(events, e)
		}
	}
	r.f.events = events
	msgs := r.f.messages[:0]
	for _, m := range r.f.messages {
		if m.ConversationID != id {
			msgs = append(msgs, m)
		}
	}
	r.f.messages = msgs
	delete(r.f.conversations, id)
	return nil
}

type fakeMessageRepo struct{ f *fakeWarehouse }

func (r fakeMessageRepo) Create(_ context.Context, m domain.Message) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.err != nil {
		return r.f.err
	}
	r.f.messages = append(r.f.messages, m)
	return nil
}

func (r fakeMessageRepo) ListByConversationID(_ context.Context, id string) ([]domain.Message, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.err != nil {
		return nil, r.f.err
	}
	var out []domain.Message
	for _, m := range r.f.messages {
		if m.ConversationID == id {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type fakeUsageRepo struct{ f *fakeWarehouse }

func (r fakeUsageRepo) Create(_ context.Context, e domain.UsageEvent) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.err != nil {
		return r.f.err
	}
	r.f.events = append(r.f.events, e)
	return nil
}

func (r fakeUsageRepo) Summary(_ context.Context, _ string) (domain.UsageSummary, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.err != nil {
		return domain.UsageSummary{}, r.f.err
	}
	return r.f.summary, nil
}
