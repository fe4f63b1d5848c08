package evidence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quailyquaily/trustops/db/models"
	"gorm.io/gorm"
)

// GormStore keeps items in the evidence_items table. Timestamps are unix
// nanoseconds.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Create(ctx context.Context, items []Item) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("nil gorm evidence store")
	}
	if len(items) == 0 {
		return nil
	}
	rows := make([]models.EvidenceItem, 0, len(items))
	for _, it := range items {
		rows = append(rows, itemToModel(it))
	}
	return s.DB.WithContext(ctx).Create(&rows).Error
}

func (s *GormStore) Get(ctx context.Context, id string) (Item, bool, error) {
	if s == nil || s.DB == nil {
		return Item{}, false, fmt.Errorf("nil gorm evidence store")
	}
	if id == "" {
		return Item{}, false, nil
	}
	var row models.EvidenceItem
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, err
	}
	return modelToItem(row), true, nil
}

func (s *GormStore) SetReview(ctx context.Context, it Item) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("nil gorm evidence store")
	}
	res := s.DB.WithContext(ctx).Model(&models.EvidenceItem{}).
		Where("id = ?", it.ID).
		Updates(map[string]any{
			"review_status": string(it.ReviewStatus),
			"reviewed_by":   it.ReviewedBy,
			"reviewed_at":   nanosPtr(it.ReviewedAt),
			"updated_at":    time.Now().UTC().UnixNano(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("evidence %s does not exist", it.ID)
	}
	return nil
}

func (s *GormStore) List(ctx context.Context, f Filter) ([]Item, error) {
	if s == nil || s.DB == nil {
		return nil, fmt.Errorf("nil gorm evidence store")
	}
	q := s.DB.WithContext(ctx).Model(&models.EvidenceItem{})
	if f.OrgID != "" {
		q = q.Where("org_id = ?", f.OrgID)
	}
	if f.Status != "" {
		q = q.Where("review_status = ?", string(f.Status))
	}
	if f.IntegrationID != "" {
		q = q.Where("integration_id = ?", f.IntegrationID)
	}
	q = q.Order("created_at DESC").Order("id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var rows []models.EvidenceItem
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(rows))
	for _, r := range rows {
		out = append(out, modelToItem(r))
	}
	return out, nil
}

func itemToModel(it Item) models.EvidenceItem {
	created := it.CreatedAt.UTC().UnixNano()
	return models.EvidenceItem{
		ID:            it.ID,
		OrgID:         it.OrgID,
		IntegrationID: it.IntegrationID,
		ControlID:     it.ControlID,
		Title:         it.Title,
		Source:        it.Source,
		SourceRef:     it.SourceRef,
		ReviewStatus:  string(it.ReviewStatus),
		ReviewedBy:    it.ReviewedBy,
		ReviewedAt:    nanosPtr(it.ReviewedAt),
		CollectedAt:   it.CollectedAt.UTC().UnixNano(),
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func modelToItem(m models.EvidenceItem) Item {
	it := Item{
		ID:            m.ID,
		OrgID:         m.OrgID,
		IntegrationID: m.IntegrationID,
		ControlID:     m.ControlID,
		Title:         m.Title,
		Source:        m.Source,
		SourceRef:     m.SourceRef,
		ReviewStatus:  ReviewStatus(m.ReviewStatus),
		ReviewedBy:    m.ReviewedBy,
		CollectedAt:   time.Unix(0, m.CollectedAt).UTC(),
		CreatedAt:     time.Unix(0, m.CreatedAt).UTC(),
	}
	if m.ReviewedAt != nil {
		t := time.Unix(0, *m.ReviewedAt).UTC()
		it.ReviewedAt = &t
	}
	return it
}

func nanosPtr(t *time.Time) *int64 {
	if t == nil || t.IsZero() {
		return nil
	}
	n := t.UTC().UnixNano()
	return &n
}
