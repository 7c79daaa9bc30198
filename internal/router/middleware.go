package router

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shopbridge/cart-service/pkg/global"
)

// UserIDMiddleware parses and validates the :userId path parameter so handlers
// never see a malformed id.
func UserIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
		if err != nil || userID <= 0 {
			c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid user id", []global.ValidationError{
				{Field: "userId", Message: "user id must be a positive integer", Code: "invalid_format"},
			}))
			c.Abort()
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
