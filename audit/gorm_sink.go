package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quailyquaily/trustops/db/models"
	"gorm.io/gorm"
)

// GormSink stores entries in the audit_entries table. The auto-increment seq
// column is the insertion sequence.
type GormSink struct {
	DB *gorm.DB
}

func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{DB: db}
}

func (s *GormSink) Write(ctx context.Context, e *Entry) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("nil gorm audit sink")
	}
	if e == nil {
		return fmt.Errorf("nil audit entry")
	}
	meta := ""
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
		meta = string(b)
	}
	row := models.AuditEntry{
		ID:           e.ID,
		OrgID:        e.OrgID,
		ActorID:      e.ActorID,
		Action:       e.Action,
		TargetType:   e.TargetType,
		TargetID:     e.TargetID,
		MetadataJSON: meta,
		CreatedAtNs:  e.CreatedAt.UnixNano(),
	}
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	e.Seq = row.Seq
	return nil
}

func (s *GormSink) List(ctx context.Context, q Query) ([]Entry, error) {
	if s == nil || s.DB == nil {
		return nil, fmt.Errorf("nil gorm audit sink")
	}
	tx := s.DB.WithContext(ctx).Model(&models.AuditEntry{}).
		Where("org_id = ?", q.OrgID)
	if q.TargetType != "" {
		tx = tx.Where("target_type = ?", q.TargetType)
	}
	if q.TargetID != "" {
		tx = tx.Where("target_id = ?", q.TargetID)
	}
	tx = tx.Order("created_at_ns DESC").Order("seq DESC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []models.AuditEntry
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e, err := rowToEntry(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Close is a no-op; the gorm handle belongs to the caller.
func (s *GormSink) Close() error { return nil }

func rowToEntry(r models.AuditEntry) (Entry, error) {
	e := Entry{
		ID:         r.ID,
		OrgID:      r.OrgID,
		ActorID:    r.ActorID,
		Action:     r.Action,
		TargetType: r.TargetType,
		TargetID:   r.TargetID,
		CreatedAt:  time.Unix(0, r.CreatedAtNs).UTC(),
		Seq:        r.Seq,
	}
	if r.MetadataJSON != "" {
		if err := json.Unmarshal([]byte(r.MetadataJSON), &e.Metadata); err != nil {
			return Entry{}, fmt.Errorf("decode metadata of audit entry %s: %w", r.ID, err)
		}
	}
	return e, nil
}
