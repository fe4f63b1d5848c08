package models

// Timestamps are unix nanoseconds.
type EvidenceItem struct {
	ID            string `gorm:"column:id;type:text;primaryKey"`
	OrgID         string `gorm:"column:org_id;type:text;not null;index:idx_evidence_org_status,priority:1"`
	IntegrationID string `gorm:"column:integration_id;type:text"`
	ControlID     string `gorm:"column:control_id;type:text"`
	Title         string `gorm:"column:title;type:text;not null"`
	Source        string `gorm:"column:source;type:text"`
	SourceRef     string `gorm:"column:source_ref;type:text"`
	ReviewStatus  string `gorm:"column:review_status;type:text;not null;index:idx_evidence_org_status,priority:2"`
	ReviewedBy    string `gorm:"column:reviewed_by;type:text"`
	ReviewedAt    *int64 `gorm:"column:reviewed_at"`
	CollectedAt   int64  `gorm:"column:collected_at;not null"`
	CreatedAt     int64  `gorm:"column:created_at;not null"`
	UpdatedAt     int64  `gorm:"column:updated_at;not null"`
}

func (EvidenceItem) TableName() string { return "evidence_items" }
