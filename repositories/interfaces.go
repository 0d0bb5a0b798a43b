package repositories

import (
	"context"

	"github.com/Reutertu3/lolisafe/models"

	"gorm.io/gorm"
)

type TxManager interface {
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SortKey is one (column, direction) pair of an ordering specification.
// NullsLast forces NULL values to sort after everything else regardless of
// direction.
type SortKey struct {
	Column    string
	Desc      bool
	NullsLast bool
}

// DateRange is an inclusive epoch-second range; a nil endpoint means
// unbounded on that side.
type DateRange struct {
	From *int64
	To   *int64
}

// FilterPredicate is the structured output of the listing filter language,
// built once by the translator and applied immutably by the query builder.
type FilterPredicate struct {
	UserIDs        []uint
	ExcludeUserIDs []uint
	MatchNilUser   bool
	ExcludeNilUser bool

	IPs          []string
	ExcludeIPs   []string
	MatchNilIP   bool
	ExcludeNilIP bool

	Date   DateRange
	Expiry DateRange

	// Glob patterns over the original filename; a literal * is a wildcard,
	// patterns without one match as "contains".
	NamePatterns        []string
	ExcludeNamePatterns []string

	Sort []SortKey
}

type ListUploadsInput struct {
	Predicate FilterPredicate
	// ScopeUserID restricts results to one owner; nil lists across all owners.
	ScopeUserID *uint
	Offset      int
	Limit       int
}

type UploadRepository interface {
	Create(ctx context.Context, tx *gorm.DB, upload *models.Upload) error
	FindByHashSizeUser(ctx context.Context, tx *gorm.DB, hash string, size int64, userID *uint) (models.Upload, error)
	List(ctx context.Context, tx *gorm.DB, in ListUploadsInput) ([]models.Upload, error)
	Count(ctx context.Context, tx *gorm.DB, in ListUploadsInput) (int64, error)
}

type AlbumRepository interface {
	// OwnedIDs filters albumIDs down to the ones actually owned by userID.
	OwnedIDs(ctx context.Context, tx *gorm.DB, userID uint, albumIDs []uint) (map[uint]struct{}, error)
	BumpEditedAt(ctx context.Context, tx *gorm.DB, albumIDs []uint, editedAt int64) error
	NamesByIDs(ctx context.Context, tx *gorm.DB, albumIDs []uint) (map[uint]string, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, userID uint) (models.User, error)
	// IDsByUsernames returns a username -> id map for the names that exist.
	IDsByUsernames(ctx context.Context, tx *gorm.DB, usernames []string) (map[string]uint, error)
	NamesByIDs(ctx context.Context, tx *gorm.DB, userIDs []uint) (map[uint]string, error)
}

// CacheRepository invalidates the derived caches that depend on the uploads
// table: the upload statistics snapshot and the per-user album sidebar.
type CacheRepository interface {
	InvalidateUploadStats(ctx context.Context) error
	InvalidateAlbumListing(ctx context.Context, userIDs []uint) error
}

type Container struct {
	TxManager TxManager
	Uploads   UploadRepository
	Albums    AlbumRepository
	Users     UserRepository
	Cache     CacheRepository
}
