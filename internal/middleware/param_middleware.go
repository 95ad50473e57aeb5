package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ExtractUintParam извлекает числовой параметр URL и кладет его в контекст как uint.
func ExtractUintParam(paramName, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param(paramName), 10, 32)
		if err != nil || id == 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s", paramName), "error_type": "validation"})
			return
		}
		c.Set(contextKey, uint(id))
		c.Next()
	}
}
