package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore keeps browsers and proxies from caching poll responses; every
// poll must reach the server to see the latest session state.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
