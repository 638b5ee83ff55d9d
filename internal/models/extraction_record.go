package models

import (
	"gorm.io/datatypes"
)

// ExtractionRecord captures the outcome of a single extraction request.
type ExtractionRecord struct {
	BaseModel

	URL        string         `gorm:"size:2048;not null" json:"url"`
	Platform   string         `gorm:"size:32;index" json:"platform"`
	CacheKey   string         `gorm:"size:32;index" json:"cache_key"`
	Success    bool           `gorm:"index" json:"success"`
	ErrorCode  string         `gorm:"size:64" json:"error_code,omitempty"`
	Source     string         `gorm:"size:32" json:"source,omitempty"`
	FromCache  bool           `json:"from_cache"`
	DurationMS int64          `json:"duration_ms"`
	Recipe     datatypes.JSON `json:"recipe,omitempty"`
}

// TableName pins the table name across drivers.
func (ExtractionRecord) TableName() string {
	return "extraction_records"
}
