package specification

import "gorm.io/gorm"

type ByExternalID struct {
	ExternalID string
}

func (s ByExternalID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("external_id = ?", s.ExternalID)
}
