package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/Reutertu3/lolisafe/models"

	"gorm.io/gorm"
)

type GormUploadRepository struct {
	db *gorm.DB
}

func NewGormUploadRepository(db *gorm.DB) *GormUploadRepository {
	return &GormUploadRepository{db: db}
}

func (r *GormUploadRepository) Create(ctx context.Context, tx *gorm.DB, upload *models.Upload) error {
	return useTx(r.db, tx).WithContext(ctx).Create(upload).Error
}

func (r *GormUploadRepository) FindByHashSizeUser(ctx context.Context, tx *gorm.DB, hash string, size int64, userID *uint) (models.Upload, error) {
	q := useTx(r.db, tx).WithContext(ctx).Where("hash = ? AND size = ?", hash, size)
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	} else {
		q = q.Where("user_id IS NULL")
	}

	var upload models.Upload
	err := q.First(&upload).Error
	return upload, err
}

func (r *GormUploadRepository) List(ctx context.Context, tx *gorm.DB, in ListUploadsInput) ([]models.Upload, error) {
	q := applyPredicate(useTx(r.db, tx).WithContext(ctx).Model(&models.Upload{}), in)
	q = q.Order(orderClause(in.Predicate.Sort)).Offset(in.Offset).Limit(in.Limit)

	var uploads []models.Upload
	err := q.Find(&uploads).Error
	return uploads, err
}

func (r *GormUploadRepository) Count(ctx context.Context, tx *gorm.DB, in ListUploadsInput) (int64, error) {
	q := applyPredicate(useTx(r.db, tx).WithContext(ctx).Model(&models.Upload{}), in)

	var total int64
	err := q.Count(&total).Error
	return total, err
}

func applyPredicate(q *gorm.DB, in ListUploadsInput) *gorm.DB {
	pred := in.Predicate

	if in.ScopeUserID != nil {
		q = q.Where("user_id = ?", *in.ScopeUserID)
	}

	switch {
	case len(pred.UserIDs) > 0 && pred.MatchNilUser:
		q = q.Where("user_id IN ? OR user_id IS NULL", pred.UserIDs)
	case len(pred.UserIDs) > 0:
		q = q.Where("user_id IN ?", pred.UserIDs)
	case pred.MatchNilUser:
		q = q.Where("user_id IS NULL")
	}
	if len(pred.ExcludeUserIDs) > 0 {
		// NOT IN alone would also drop anonymous rows.
		q = q.Where("user_id NOT IN ? OR user_id IS NULL", pred.ExcludeUserIDs)
	}
	if pred.ExcludeNilUser {
		q = q.Where("user_id IS NOT NULL")
	}

	switch {
	case len(pred.IPs) > 0 && pred.MatchNilIP:
		q = q.Where("ip IN ? OR ip IS NULL", pred.IPs)
	case len(pred.IPs) > 0:
		q = q.Where("ip IN ?", pred.IPs)
	case pred.MatchNilIP:
		q = q.Where("ip IS NULL")
	}
	if len(pred.ExcludeIPs) > 0 {
		q = q.Where("ip NOT IN ? OR ip IS NULL", pred.ExcludeIPs)
	}
	if pred.ExcludeNilIP {
		q = q.Where("ip IS NOT NULL")
	}

	if pred.Date.From != nil {
		q = q.Where("timestamp >= ?", *pred.Date.From)
	}
	if pred.Date.To != nil {
		q = q.Where("timestamp <= ?", *pred.Date.To)
	}
	if pred.Expiry.From != nil {
		q = q.Where("expires_at >= ?", *pred.Expiry.From)
	}
	if pred.Expiry.To != nil {
		q = q.Where("expires_at <= ?", *pred.Expiry.To)
	}

	for _, pattern := range pred.NamePatterns {
		q = q.Where("BINARY original LIKE ?", globToLike(pattern))
	}
	for _, pattern := range pred.ExcludeNamePatterns {
		q = q.Where("BINARY original NOT LIKE ?", globToLike(pattern))
	}

	return q
}

// globToLike converts a glob pattern (* wildcard) to a LIKE pattern; a
// pattern without a wildcard matches as "contains".
func globToLike(pattern string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(pattern)
	if !strings.Contains(escaped, "*") {
		return "%" + escaped + "%"
	}
	return strings.ReplaceAll(escaped, "*", "%")
}

func orderClause(keys []SortKey) string {
	if len(keys) == 0 {
		return "id DESC"
	}

	parts := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		if key.NullsLast {
			parts = append(parts, fmt.Sprintf("%s IS NULL", key.Column))
		}
		dir := "ASC"
		if key.Desc {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s %s", key.Column, dir))
	}
	return strings.Join(parts, ", ")
}
