package models

type User struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username    string `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Enabled     bool   `gorm:"default:true" json:"enabled"`
	IsModerator bool   `gorm:"default:false" json:"ismoderator"`
	Group       string `gorm:"type:varchar(32)" json:"group"`
	Timestamp   int64  `gorm:"not null" json:"timestamp"`
}
