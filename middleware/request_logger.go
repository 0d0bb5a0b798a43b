package middleware

import (
	"time"

	"github.com/Reutertu3/lolisafe/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger traces requests at debug level, including the response size
// so oversized listing pages show up in the log.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !logger.IsDebugEnabled() {
			c.Next()
			return
		}

		start := time.Now()
		path := c.Request.URL.Path
		if rawQuery := c.Request.URL.RawQuery; rawQuery != "" {
			path = path + "?" + rawQuery
		}

		c.Next()

		logger.Debugf(
			"%s %s | %d | %dB | %s | %s",
			c.Request.Method,
			path,
			c.Writer.Status(),
			c.Writer.Size(),
			time.Since(start),
			c.ClientIP(),
		)
	}
}
