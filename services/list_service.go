package services

import (
	"context"
	"net/http"

	"github.com/Reutertu3/lolisafe/config"
	"github.com/Reutertu3/lolisafe/models"
	"github.com/Reutertu3/lolisafe/repositories"
)

type ListInput struct {
	User   *models.User
	All    bool
	Filter string
	Page   int
	// ClientOffsetMinutes shifts filter dates from the client's local time
	// to UTC.
	ClientOffsetMinutes int
}

type ListOutput struct {
	Files      []models.Upload `json:"files"`
	Count      int64           `json:"count"`
	Albums     map[uint]string `json:"albums,omitempty"`
	Users      map[uint]string `json:"users,omitempty"`
	BaseDomain string          `json:"basedomain"`
}

type ListService interface {
	List(ctx context.Context, in ListInput) (*ListOutput, error)
}

type listService struct {
	uploads repositories.UploadRepository
	albums  repositories.AlbumRepository
	users   repositories.UserRepository
}

func NewListService(uploads repositories.UploadRepository, albums repositories.AlbumRepository, users repositories.UserRepository) ListService {
	return &listService{uploads: uploads, albums: albums, users: users}
}

// List returns one page of uploads. Regular users only see their own rows;
// the cross-user view and the filter language are moderator features.
func (s *listService) List(ctx context.Context, in ListInput) (*ListOutput, error) {
	if in.User == nil {
		return nil, newAppError(KindPolicyViolation, http.StatusUnauthorized, "authentication required", nil)
	}
	if (in.All || in.Filter != "") && !in.User.IsModerator {
		return nil, newAppError(KindPolicyViolation, http.StatusForbidden, "you are not allowed to do that", nil)
	}

	var pred repositories.FilterPredicate
	if in.Filter != "" {
		var err error
		pred, err = translateFilter(ctx, in.Filter, in.ClientOffsetMinutes, s.users)
		if err != nil {
			return nil, err
		}
	}

	var scope *uint
	if !in.All {
		userID := in.User.ID
		scope = &userID
	}

	pageSize := config.AppConfig.Pagination.PageSize
	page := in.Page
	if page < 0 {
		page = 0
	}
	query := repositories.ListUploadsInput{
		Predicate:   pred,
		ScopeUserID: scope,
		Offset:      page * pageSize,
		Limit:       pageSize,
	}

	count, err := s.uploads.Count(ctx, nil, query)
	if err != nil {
		return nil, newStoreError("failed to count uploads", err)
	}
	files, err := s.uploads.List(ctx, nil, query)
	if err != nil {
		return nil, newStoreError("failed to list uploads", err)
	}

	out := &ListOutput{
		Files:      files,
		Count:      count,
		BaseDomain: config.AppConfig.Uploads.BaseDomain,
	}

	if in.All {
		userIDs := collectIDs(files, func(u models.Upload) *uint { return u.UserID })
		if len(userIDs) > 0 {
			names, err := s.users.NamesByIDs(ctx, nil, userIDs)
			if err != nil {
				return nil, newStoreError("failed to resolve uploader names", err)
			}
			out.Users = names
		}
	} else {
		albumIDs := collectIDs(files, func(u models.Upload) *uint { return u.AlbumID })
		if len(albumIDs) > 0 {
			names, err := s.albums.NamesByIDs(ctx, nil, albumIDs)
			if err != nil {
				return nil, newStoreError("failed to resolve album names", err)
			}
			out.Albums = names
		}
	}

	return out, nil
}

func collectIDs(files []models.Upload, field func(models.Upload) *uint) []uint {
	seen := map[uint]struct{}{}
	var ids []uint
	for _, f := range files {
		if id := field(f); id != nil {
			if _, dup := seen[*id]; !dup {
				seen[*id] = struct{}{}
				ids = append(ids, *id)
			}
		}
	}
	return ids
}
