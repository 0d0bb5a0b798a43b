package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Reutertu3/lolisafe/models"
	"github.com/Reutertu3/lolisafe/services"
	"github.com/Reutertu3/lolisafe/utils"

	"github.com/gin-gonic/gin"
)

type urlUploadBody struct {
	URLs       []string `json:"urls"`
	Age        string   `json:"age"`
	AlbumID    uint     `json:"albumid"`
	NameLength int      `json:"filelength"`
	StripTags  bool     `json:"striptags"`
}

type finishChunksBody struct {
	Files     []services.ChunkFinalizeSpec `json:"files"`
	StripTags bool                         `json:"striptags"`
}

// Upload accepts both multipart file batches (including chunk fragments)
// and JSON URL batches on the same route, dispatching on content type.
func Upload(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		return
	}

	if strings.HasPrefix(c.ContentType(), "application/json") {
		uploadURLs(c, user)
		return
	}
	uploadFiles(c, user)
}

func uploadFiles(c *gin.Context, user *models.User) {
	form, err := c.MultipartForm()
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "failed to parse upload form")
		return
	}
	files := form.File["files[]"]

	req := &services.IngestRequest{
		User:                user,
		IP:                  c.ClientIP(),
		AlbumID:             parseAlbumID(c.PostForm("albumid")),
		RequestedAge:        c.PostForm("age"),
		RequestedNameLength: atoi(c.PostForm("filelength")),
		StripTags:           c.PostForm("striptags") == "true",
		ChunkID:             c.PostForm("dzuuid"),
		ChunkIndex:          atoi(c.PostForm("dzchunkindex")),
		TotalChunks:         atoi(c.PostForm("dztotalchunkcount")),
	}

	resp, err := getServices().Upload.IngestFiles(c.Request.Context(), req, files)
	if respondServiceError(c, user, err) {
		return
	}
	respondIngest(c, resp)
}

func uploadURLs(c *gin.Context, user *models.User) {
	var body urlUploadBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}

	req := &services.IngestRequest{
		User:                user,
		IP:                  c.ClientIP(),
		AlbumID:             nonZeroID(body.AlbumID),
		RequestedAge:        body.Age,
		RequestedNameLength: body.NameLength,
		StripTags:           body.StripTags,
	}

	resp, err := getServices().Upload.IngestURLs(c.Request.Context(), req, body.URLs)
	if respondServiceError(c, user, err) {
		return
	}
	respondIngest(c, resp)
}

// FinishChunks combines completed chunk sessions into final uploads.
func FinishChunks(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		return
	}

	var body finishChunksBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}

	req := &services.IngestRequest{
		User:      user,
		IP:        c.ClientIP(),
		StripTags: body.StripTags,
	}

	resp, err := getServices().Upload.FinishChunks(c.Request.Context(), req, body.Files)
	if respondServiceError(c, user, err) {
		return
	}
	respondIngest(c, resp)
}

func respondIngest(c *gin.Context, resp *services.IngestResponse) {
	if resp.ChunkAccepted {
		utils.Success(c, gin.H{})
		return
	}
	utils.Success(c, gin.H{"files": resp.Files})
}

func parseAlbumID(raw string) *uint {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return nil
	}
	u := uint(id)
	return &u
}

func nonZeroID(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}

func atoi(raw string) int {
	n, _ := strconv.Atoi(raw)
	return n
}
