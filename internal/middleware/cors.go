package middleware

import (
	"net/http"
	"strings"

	"craftcrm/internal/config"

	"github.com/gin-gonic/gin"
)

// CORSMiddleware 按配置处理跨域请求
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowAll := false
	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowAll = true
		}
		origins[o] = struct{}{}
	}
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")

	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}
		origin := c.GetHeader("Origin")
		if origin != "" {
			if allowAll {
				c.Header("Access-Control-Allow-Origin", "*")
			} else if _, ok := origins[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			if methods != "" {
				c.Header("Access-Control-Allow-Methods", methods)
			}
			if headers != "" {
				c.Header("Access-Control-Allow-Headers", headers)
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
