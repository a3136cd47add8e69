package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Endpoint is one entry of the API catalogue.
type Endpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Auth   bool   `json:"auth"`
}

// APIRoot lists the available endpoints.
func APIRoot(endpoints []Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message":   "Skin lesion analysis API",
			"endpoints": endpoints,
		})
	}
}
