package middleware

import "github.com/gin-gonic/gin"

// NoStoreHeaders hardens JSON responses: no sniffing, no framing, no referrer,
// and no caching of operational data.
func NoStoreHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		c.Next()
	}
}
