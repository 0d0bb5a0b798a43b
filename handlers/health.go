package handlers

import (
	"github.com/Reutertu3/lolisafe/database"
	"github.com/Reutertu3/lolisafe/utils"

	"github.com/gin-gonic/gin"
)

// Health reports process liveness and datastore reachability.
func Health(c *gin.Context) {
	dbOK := false
	if database.DB != nil {
		if sqlDB, err := database.DB.DB(); err == nil {
			dbOK = sqlDB.PingContext(c.Request.Context()) == nil
		}
	}

	redisOK := false
	if database.RedisClient != nil {
		redisOK = database.RedisClient.Ping(c.Request.Context()).Err() == nil
	}

	utils.Success(c, gin.H{
		"database": dbOK,
		"redis":    redisOK,
	})
}
