package repositories

import (
	"context"

	"github.com/Reutertu3/lolisafe/models"

	"gorm.io/gorm"
)

type GormAlbumRepository struct {
	db *gorm.DB
}

func NewGormAlbumRepository(db *gorm.DB) *GormAlbumRepository {
	return &GormAlbumRepository{db: db}
}

func (r *GormAlbumRepository) OwnedIDs(ctx context.Context, tx *gorm.DB, userID uint, albumIDs []uint) (map[uint]struct{}, error) {
	owned := make(map[uint]struct{}, len(albumIDs))
	if len(albumIDs) == 0 {
		return owned, nil
	}

	var ids []uint
	err := useTx(r.db, tx).WithContext(ctx).Model(&models.Album{}).
		Where("user_id = ? AND id IN ?", userID, albumIDs).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		owned[id] = struct{}{}
	}
	return owned, nil
}

func (r *GormAlbumRepository) BumpEditedAt(ctx context.Context, tx *gorm.DB, albumIDs []uint, editedAt int64) error {
	if len(albumIDs) == 0 {
		return nil
	}
	return useTx(r.db, tx).WithContext(ctx).Model(&models.Album{}).
		Where("id IN ?", albumIDs).
		Update("edited_at", editedAt).Error
}

func (r *GormAlbumRepository) NamesByIDs(ctx context.Context, tx *gorm.DB, albumIDs []uint) (map[uint]string, error) {
	names := make(map[uint]string, len(albumIDs))
	if len(albumIDs) == 0 {
		return names, nil
	}

	var albums []models.Album
	err := useTx(r.db, tx).WithContext(ctx).
		Where("id IN ?", albumIDs).
		Find(&albums).Error
	if err != nil {
		return nil, err
	}

	for _, album := range albums {
		names[album.ID] = album.Name
	}
	return names, nil
}
