package handlers

import (
	"bytes"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/Reutertu3/lolisafe/models"
	"github.com/Reutertu3/lolisafe/services"

	"github.com/gin-gonic/gin"
)

func testContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/upload", nil)
	return c, w
}

func storeFailure() *services.AppError {
	return &services.AppError{
		Kind:     services.KindStoreFailure,
		HTTPCode: http.StatusInternalServerError,
		Message:  "failed to persist upload",
		Err:      errors.New("Error 1205: Lock wait timeout exceeded"),
	}
}

func TestRespondStoreFailureToModerator(t *testing.T) {
	c, w := testContext(t)
	moderator := &models.User{ID: 1, Username: "mod", Enabled: true, IsModerator: true}

	if !respondServiceError(c, moderator, storeFailure()) {
		t.Fatal("respondServiceError should have handled the error")
	}

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "failed to persist upload") {
		t.Fatalf("body should carry the wrapper message, got %s", body)
	}
	if !strings.Contains(body, "Error 1205") {
		t.Fatalf("moderator should see the store's native diagnostic, got %s", body)
	}
}

func TestRespondStoreFailureToRegularUser(t *testing.T) {
	var logged bytes.Buffer
	log.SetOutput(&logged)
	defer log.SetOutput(os.Stderr)

	c, w := testContext(t)
	user := &models.User{ID: 2, Username: "plain", Enabled: true}

	if !respondServiceError(c, user, storeFailure()) {
		t.Fatal("respondServiceError should have handled the error")
	}

	body := w.Body.String()
	if strings.Contains(body, "Error 1205") || strings.Contains(body, "failed to persist upload") {
		t.Fatalf("regular user must only see the generic message, got %s", body)
	}
	if !strings.Contains(body, "an unexpected error occurred") {
		t.Fatalf("body = %s, want generic description", body)
	}
	if !strings.Contains(logged.String(), "Error 1205") {
		t.Fatalf("native diagnostic should be logged, log = %q", logged.String())
	}
}

func TestRespondStoreFailureToAnonymous(t *testing.T) {
	var logged bytes.Buffer
	log.SetOutput(&logged)
	defer log.SetOutput(os.Stderr)

	c, w := testContext(t)

	if !respondServiceError(c, nil, storeFailure()) {
		t.Fatal("respondServiceError should have handled the error")
	}
	if strings.Contains(w.Body.String(), "Error 1205") {
		t.Fatal("anonymous caller must not see the native diagnostic")
	}
	if !strings.Contains(logged.String(), "Error 1205") {
		t.Fatal("native diagnostic should be logged")
	}
}

func TestRespondPolicyViolationPassesThrough(t *testing.T) {
	c, w := testContext(t)

	policyErr := &services.AppError{
		Kind:     services.KindPolicyViolation,
		HTTPCode: http.StatusBadRequest,
		Message:  ".exe files are not permitted",
	}
	if !respondServiceError(c, nil, policyErr) {
		t.Fatal("respondServiceError should have handled the error")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), ".exe files are not permitted") {
		t.Fatalf("client errors relay their message verbatim, got %s", w.Body.String())
	}
}

func TestRespondNilError(t *testing.T) {
	c, _ := testContext(t)
	if respondServiceError(c, nil, nil) {
		t.Fatal("nil error should not be handled")
	}
}
