package middleware

import (
	"errors"
	"net/http"

	"craftcrm/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// WorkspaceMemberMiddleware 校验当前用户是工作区成员，并注入 member_role。
// 路由需携带工作区 ID 参数（默认 :id）。
func WorkspaceMemberMiddleware(db *gorm.DB, paramName string) gin.HandlerFunc {
	if paramName == "" {
		paramName = "id"
	}
	return func(c *gin.Context) {
		workspaceID := c.Param(paramName)
		if workspaceID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "Bad Request",
				"message": "missing workspace id",
			})
			return
		}
		userID := c.GetString("user_id")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": "missing user identity",
			})
			return
		}

		var member models.WorkspaceMember
		err := db.WithContext(c.Request.Context()).
			Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
			First(&member).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error":   "Forbidden",
					"message": "not a member of this workspace",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal Server Error",
				"message": "failed to check workspace membership",
			})
			return
		}

		c.Set("workspace_id", workspaceID)
		c.Set("member_role", member.Role)
		c.Next()
	}
}

// RequireWorkspaceRole 要求成员角色属于给定集合（如 owner/admin）。
// 必须在 WorkspaceMemberMiddleware 之后使用。
func RequireWorkspaceRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role := c.GetString("member_role")
		if _, ok := allowed[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Forbidden",
				"message": "workspace role not permitted for this operation",
			})
			return
		}
		c.Next()
	}
}
