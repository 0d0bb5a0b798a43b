package handlers

import (
	"strconv"

	"github.com/Reutertu3/lolisafe/services"
	"github.com/Reutertu3/lolisafe/utils"

	"github.com/gin-gonic/gin"
)

// ListUploads returns one page of the caller's uploads. Moderators may pass
// all=true for the cross-user view and filter= for the filter language;
// minoffset carries the client's UTC offset in minutes for date filters.
func ListUploads(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	offsetMinutes, _ := strconv.Atoi(c.DefaultQuery("minoffset", "0"))

	in := services.ListInput{
		User:                user,
		All:                 c.Query("all") == "true",
		Filter:              c.Query("filter"),
		Page:                page,
		ClientOffsetMinutes: offsetMinutes,
	}

	out, err := getServices().List.List(c.Request.Context(), in)
	if respondServiceError(c, user, err) {
		return
	}

	body := gin.H{
		"files":      out.Files,
		"count":      out.Count,
		"basedomain": out.BaseDomain,
	}
	if out.Albums != nil {
		body["albums"] = out.Albums
	}
	if out.Users != nil {
		body["users"] = out.Users
	}
	utils.Success(c, body)
}
