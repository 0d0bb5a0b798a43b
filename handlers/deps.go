package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/Reutertu3/lolisafe/models"
	"github.com/Reutertu3/lolisafe/repositories"
	"github.com/Reutertu3/lolisafe/services"
	"github.com/Reutertu3/lolisafe/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var (
	appServices *services.Container
	appRepos    repositories.Container
)

func SetServices(container *services.Container, repos repositories.Container) {
	appServices = container
	appRepos = repos
}

func getServices() *services.Container {
	if appServices == nil {
		panic("services container is not initialized")
	}
	return appServices
}

// currentUser loads the account behind the authenticated user id, or nil
// when the request is anonymous.
func currentUser(c *gin.Context) (*models.User, error) {
	id, exists := c.Get("user_id")
	if !exists {
		return nil, nil
	}
	userID, ok := id.(uint)
	if !ok {
		return nil, nil
	}

	user, err := appRepos.Users.GetByID(c.Request.Context(), nil, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(c, http.StatusUnauthorized, "account no longer exists")
			return nil, err
		}
		utils.Error(c, http.StatusInternalServerError, "failed to load account")
		return nil, err
	}
	return &user, nil
}

// respondServiceError translates an AppError into the response envelope.
// Server-side failure detail is only relayed to moderators; everyone else
// gets a generic description and the underlying diagnostic goes to the log.
// For store failures the moderator view includes the store's native error,
// not just the wrapper text.
func respondServiceError(c *gin.Context, user *models.User, err error) bool {
	if err == nil {
		return false
	}

	var appErr *services.AppError
	if errors.As(err, &appErr) {
		message := appErr.Message
		if appErr.HTTPCode >= http.StatusInternalServerError {
			if user != nil && user.IsModerator {
				if appErr.Kind == services.KindStoreFailure {
					message = appErr.Error()
				}
			} else {
				log.Printf("request to %s failed: %v", c.Request.URL.Path, appErr)
				message = "an unexpected error occurred, try again later"
			}
		}
		if appErr.Data != nil {
			utils.ErrorWithData(c, appErr.HTTPCode, message, gin.H{"data": appErr.Data})
		} else {
			utils.Error(c, appErr.HTTPCode, message)
		}
		return true
	}

	log.Printf("request to %s failed: %v", c.Request.URL.Path, err)
	utils.Error(c, http.StatusInternalServerError, "an unexpected error occurred, try again later")
	return true
}
