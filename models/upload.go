package models

// Upload is the persisted metadata record for one stored file.
//
// Timestamp and ExpiresAt are epoch seconds. UserID is nil for anonymous
// uploads; the composite unique index on (hash, size, user_id) backstops the
// duplicate check for owned uploads (MySQL permits repeated NULLs, so
// anonymous duplicates are only caught by the lookup).
type Upload struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string  `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Original  string  `gorm:"type:varchar(255);not null" json:"original"`
	MimeType  string  `gorm:"type:varchar(100)" json:"type"`
	Size      int64   `gorm:"not null;uniqueIndex:idx_hash_size_user,priority:2" json:"size"`
	Hash      string  `gorm:"type:varchar(32);uniqueIndex:idx_hash_size_user,priority:1" json:"hash"`
	UserID    *uint   `gorm:"uniqueIndex:idx_hash_size_user,priority:3;index" json:"userid,omitempty"`
	AlbumID   *uint   `gorm:"index" json:"albumid,omitempty"`
	IP        *string `gorm:"type:varchar(45);index" json:"ip,omitempty"`
	Timestamp int64   `gorm:"not null;index" json:"timestamp"`
	ExpiresAt *int64  `gorm:"index" json:"expirydate,omitempty"`
}
