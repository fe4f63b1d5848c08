package models

// Integration.ConfigJSON never holds a clear-text token; the token field is a
// sealed payload ("enc:..." or "plain:..."). Timestamps are unix nanoseconds.
type Integration struct {
	ID         string `gorm:"column:id;type:text;primaryKey"`
	OrgID      string `gorm:"column:org_id;type:text;not null;index:idx_integrations_org"`
	Provider   string `gorm:"column:provider;type:text;not null"`
	Status     string `gorm:"column:status;type:text;not null"`
	ConfigJSON string `gorm:"column:config_json;type:text"`
	LastSyncAt *int64 `gorm:"column:last_sync_at"`
	LastError  string `gorm:"column:last_error;type:text"`
	CreatedAt  int64  `gorm:"column:created_at;not null"`
	UpdatedAt  int64  `gorm:"column:updated_at;not null"`
}

func (Integration) TableName() string { return "integrations" }
