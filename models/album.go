package models

// Album carries only the fields the ingestion and listing paths touch.
// Album management itself lives elsewhere.
type Album struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID   uint   `gorm:"not null;index" json:"userid"`
	Name     string `gorm:"type:varchar(255);not null" json:"name"`
	EditedAt int64  `gorm:"not null" json:"editedat"`
}
