package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quailyquaily/trustops/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps integrations in the integrations table with the sealed
// config serialized as JSON.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Get(ctx context.Context, id string) (Integration, bool, error) {
	if s == nil || s.DB == nil {
		return Integration{}, false, fmt.Errorf("nil gorm integration store")
	}
	if id == "" {
		return Integration{}, false, nil
	}
	var row models.Integration
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Integration{}, false, nil
	}
	if err != nil {
		return Integration{}, false, err
	}
	in, err := modelToIntegration(row)
	if err != nil {
		return Integration{}, false, err
	}
	return in, true, nil
}

func (s *GormStore) Put(ctx context.Context, in Integration) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("nil gorm integration store")
	}
	row, err := integrationToModel(in)
	if err != nil {
		return err
	}
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"provider", "status", "config_json", "last_sync_at", "last_error", "updated_at",
			}),
		}).
		Create(&row).Error
}

func (s *GormStore) List(ctx context.Context, orgID string) ([]Integration, error) {
	if s == nil || s.DB == nil {
		return nil, fmt.Errorf("nil gorm integration store")
	}
	var rows []models.Integration
	err := s.DB.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]Integration, 0, len(rows))
	for _, r := range rows {
		in, err := modelToIntegration(r)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

func integrationToModel(in Integration) (models.Integration, error) {
	row := models.Integration{
		ID:        in.ID,
		OrgID:     in.OrgID,
		Provider:  string(in.Provider),
		Status:    string(in.Status),
		LastError: in.LastError,
		CreatedAt: in.CreatedAt.UTC().UnixNano(),
		UpdatedAt: in.UpdatedAt.UTC().UnixNano(),
	}
	if in.Config != nil {
		b, err := json.Marshal(in.Config)
		if err != nil {
			return models.Integration{}, fmt.Errorf("encode config of %s: %w", in.ID, err)
		}
		row.ConfigJSON = string(b)
	}
	if in.LastSyncAt != nil {
		n := in.LastSyncAt.UTC().UnixNano()
		row.LastSyncAt = &n
	}
	return row, nil
}

func modelToIntegration(r models.Integration) (Integration, error) {
	in := Integration{
		ID:        r.ID,
		OrgID:     r.OrgID,
		Provider:  Provider(r.Provider),
		Status:    Status(r.Status),
		LastError: r.LastError,
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
		UpdatedAt: time.Unix(0, r.UpdatedAt).UTC(),
	}
	if r.ConfigJSON != "" {
		var cfg Config
		if err := json.Unmarshal([]byte(r.ConfigJSON), &cfg); err != nil {
			return Integration{}, fmt.Errorf("decode config of %s: %w", r.ID, err)
		}
		in.Config = &cfg
	}
	if r.LastSyncAt != nil {
		t := time.Unix(0, *r.LastSyncAt).UTC()
		in.LastSyncAt = &t
	}
	return in, nil
}
