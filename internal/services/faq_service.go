package services

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dstlead/dstlead/internal/models"
)

type FAQStore interface {
	ListFAQs(ctx context.Context) ([]*models.FAQ, error)
	AddFAQ(ctx context.Context, f *models.FAQ) error
}

type FAQService struct {
	store FAQStore
	idGen func() string
}

func NewFAQService(store FAQStore) *FAQService {
	return &FAQService{store: store, idGen: func() string { return shortID(8) }}
}

func shortID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

// List returns FAQs by display order, optionally restricted to one category.
func (s *FAQService) List(ctx context.Context, category string) ([]*models.FAQ, error) {
	all, err := s.store.ListFAQs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.FAQ, 0, len(all))
	for _, f := range all {
		if category != "" && !strings.EqualFold(f.Category, category) {
			continue
		}
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *FAQService) Add(ctx context.Context, f *models.FAQ) (*models.FAQ, error) {
	if f == nil {
		return nil, NewInvalidError("faq required")
	}
	rec := *f
	rec.Question = strings.TrimSpace(rec.Question)
	rec.Answer = strings.TrimSpace(rec.Answer)
	fields := map[string]string{}
	if rec.Question == "" {
		fields["question"] = "required"
	}
	if rec.Answer == "" {
		fields["answer"] = "required"
	}
	if err := NewValidationError("faq incomplete", fields); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		rec.ID = s.idGen()
	}
	if err := s.store.AddFAQ(ctx, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// SeedDefaults installs the stock FAQ set when the store has none.
func (s *FAQService) SeedDefaults(ctx context.Context) (int, error) {
	existing, err := s.store.ListFAQs(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for i, f := range defaultFAQs {
		rec := f
		rec.Order = i + 1
		if _, err := s.Add(ctx, &rec); err != nil {
			return i, err
		}
	}
	return len(defaultFAQs), nil
}

var defaultFAQs = []models.FAQ{
	{Category: "dst", Question: "What is a Delaware Statutory Trust?", Answer: "A DST is a legal entity that holds title to institutional-grade real estate. Investors own beneficial interests in the trust and receive a pro-rata share of income without managing the property."},
	{Category: "1031", Question: "Can a DST interest be used in a 1031 exchange?", Answer: "Yes. DST interests qualify as like-kind replacement property, so proceeds from a relinquished property can be reinvested while deferring capital gains tax."},
	{Category: "1031", Question: "How long do I have to identify replacement property?", Answer: "You have 45 days from the sale of the relinquished property to identify replacement property and 180 days to close."},
	{Category: "eligibility", Question: "Do I need to be an accredited investor?", Answer: "Yes. DST offerings are private placements generally limited to accredited investors as defined by the SEC."},
	{Category: "dst", Question: "How long is a typical DST hold period?", Answer: "Most DST programs target a hold period of five to ten years, after which the property is sold and investors may exchange again."},
}
