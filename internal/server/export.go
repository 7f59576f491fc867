package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ExportRecords(c *gin.Context) {
	period, err := queryPeriod(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	records, err := s.export.Records(c.Request.Context(), ownerID(c), period)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}
