package docstore

import "time"

// CollectionRow registers a collection in the SQL backend.
type CollectionRow struct {
	Name             string `gorm:"primaryKey"`
	PartitionKeyPath string `gorm:"not null"`
	CreatedAt        time.Time
}

// TableName pins the table name.
func (CollectionRow) TableName() string {
	return "collections"
}

// DocumentRow is one JSON document keyed by collection + id.
type DocumentRow struct {
	Collection string `gorm:"primaryKey"`
	ID         string `gorm:"primaryKey"`
	Body       string `gorm:"type:text;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName pins the table name.
func (DocumentRow) TableName() string {
	return "documents"
}
