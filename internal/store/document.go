package store

// Document is the persisted row backing one collection.
type Document struct {
	Collection       string `gorm:"column:collection;primaryKey;size:64;not null"`
	BodyJSON         string `gorm:"column:body_json;type:text;not null"`
	Revision         int64  `gorm:"column:revision;not null;default:0"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Document) TableName() string {
	return "documents"
}
