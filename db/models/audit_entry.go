package models

// AuditEntry rows are inserted and read, never updated or deleted.
type AuditEntry struct {
	Seq          int64  `gorm:"column:seq;primaryKey;autoIncrement"`
	ID           string `gorm:"column:id;type:text;not null;uniqueIndex:uniq_audit_id"`
	OrgID        string `gorm:"column:org_id;type:text;not null;index:idx_audit_org_created,priority:1;index:idx_audit_org_target,priority:1"`
	ActorID      string `gorm:"column:actor_id;type:text;not null"`
	Action       string `gorm:"column:action;type:text;not null"`
	TargetType   string `gorm:"column:target_type;type:text;not null;index:idx_audit_org_target,priority:2"`
	TargetID     string `gorm:"column:target_id;type:text;not null;index:idx_audit_org_target,priority:3"`
	MetadataJSON string `gorm:"column:metadata_json;type:text"`
	CreatedAtNs  int64  `gorm:"column:created_at_ns;not null;index:idx_audit_org_created,priority:2"`
}

func (AuditEntry) TableName() string { return "audit_entries" }
