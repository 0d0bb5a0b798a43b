package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Reutertu3/lolisafe/config"
	"github.com/Reutertu3/lolisafe/models"
)

func seedUploads(repo *fakeUploadRepo, owner uint, count int) {
	for i := 0; i < count; i++ {
		userID := owner
		repo.records = append(repo.records, models.Upload{
			ID:     repo.nextID,
			Name:   "file" + string(rune('a'+i)) + ".png",
			UserID: &userID,
		})
		repo.nextID++
	}
}

func TestListOwnUploads(t *testing.T) {
	config.AppConfig = testConfig()

	uploads := newFakeUploadRepo()
	seedUploads(uploads, 1, 3)
	seedUploads(uploads, 2, 2)

	svc := NewListService(uploads, newFakeAlbumRepo(), newFakeUserRepo())
	out, err := svc.List(context.Background(), ListInput{User: testUser(1)})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if out.Count != 3 {
		t.Fatalf("Count = %d, want 3", out.Count)
	}
	if len(out.Files) != 3 {
		t.Fatalf("Files = %d, want 3", len(out.Files))
	}
	if out.BaseDomain != "https://safe.test" {
		t.Fatalf("BaseDomain = %q", out.BaseDomain)
	}
}

func TestListPagination(t *testing.T) {
	config.AppConfig = testConfig()
	config.AppConfig.Pagination.PageSize = 2

	uploads := newFakeUploadRepo()
	seedUploads(uploads, 1, 5)

	svc := NewListService(uploads, newFakeAlbumRepo(), newFakeUserRepo())

	page0, err := svc.List(context.Background(), ListInput{User: testUser(1), Page: 0})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page0.Files) != 2 || page0.Count != 5 {
		t.Fatalf("page 0: files=%d count=%d", len(page0.Files), page0.Count)
	}

	page2, err := svc.List(context.Background(), ListInput{User: testUser(1), Page: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page2.Files) != 1 {
		t.Fatalf("page 2: files=%d, want 1", len(page2.Files))
	}
}

func TestListModeratorOnlyFeatures(t *testing.T) {
	config.AppConfig = testConfig()

	svc := NewListService(newFakeUploadRepo(), newFakeAlbumRepo(), newFakeUserRepo())

	_, err := svc.List(context.Background(), ListInput{User: testUser(1), All: true})
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.HTTPCode != http.StatusForbidden {
		t.Fatalf("all=true for a regular user: expected 403, got %v", err)
	}

	_, err = svc.List(context.Background(), ListInput{User: testUser(1), Filter: "ip:10.0.0.1"})
	if !errors.As(err, &appErr) || appErr.HTTPCode != http.StatusForbidden {
		t.Fatalf("filter for a regular user: expected 403, got %v", err)
	}

	_, err = svc.List(context.Background(), ListInput{User: nil})
	if !errors.As(err, &appErr) || appErr.HTTPCode != http.StatusUnauthorized {
		t.Fatalf("anonymous list: expected 401, got %v", err)
	}
}

func TestListModeratorCrossUserView(t *testing.T) {
	config.AppConfig = testConfig()

	uploads := newFakeUploadRepo()
	seedUploads(uploads, 1, 2)
	seedUploads(uploads, 2, 1)

	users := newFakeUserRepo(
		models.User{ID: 1, Username: "alice"},
		models.User{ID: 2, Username: "bob"},
	)
	moderator := &models.User{ID: 3, Username: "mod", Enabled: true, IsModerator: true}

	svc := NewListService(uploads, newFakeAlbumRepo(), users)
	out, err := svc.List(context.Background(), ListInput{User: moderator, All: true})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if out.Count != 3 {
		t.Fatalf("Count = %d, want 3", out.Count)
	}
	if out.Users[1] != "alice" || out.Users[2] != "bob" {
		t.Fatalf("Users map = %v", out.Users)
	}
}

func TestListFilterUnknownUser(t *testing.T) {
	config.AppConfig = testConfig()

	moderator := &models.User{ID: 3, Username: "mod", Enabled: true, IsModerator: true}
	svc := NewListService(newFakeUploadRepo(), newFakeAlbumRepo(), newFakeUserRepo())

	_, err := svc.List(context.Background(), ListInput{User: moderator, Filter: "user:ghost"})
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Kind != KindPolicyViolation {
		t.Fatalf("expected policy violation for unknown username, got %v", err)
	}
}

func TestListAlbumNames(t *testing.T) {
	config.AppConfig = testConfig()

	uploads := newFakeUploadRepo()
	userID := uint(1)
	albumID := uint(10)
	uploads.records = append(uploads.records, models.Upload{ID: 1, Name: "a.png", UserID: &userID, AlbumID: &albumID})

	albums := newFakeAlbumRepo()
	albums.names[10] = "vacation"

	svc := NewListService(uploads, albums, newFakeUserRepo())
	out, err := svc.List(context.Background(), ListInput{User: testUser(1)})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if out.Albums[10] != "vacation" {
		t.Fatalf("Albums map = %v", out.Albums)
	}
}
