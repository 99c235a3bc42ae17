package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Aman-CERP/chatsearch/pkg/version"
)

// errorBody is the JSON shape of request-level failures.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) handleSearch(c *gin.Context) {
	query := c.Query("q")

	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody{
				Error: "limit must be an integer",
				Code:  "invalid_limit",
			})
			return
		}
		limit = n
	}

	// blank queries are answered by the engine with an empty result list
	c.JSON(http.StatusOK, s.service.Search(c.Request.Context(), query, limit))
}

func (s *Server) handleConversation(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Conversation(c.Request.Context(), c.Param("session_id")))
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Status(c.Request.Context()))
}

func (s *Server) handleReindex(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.TriggerReindex())
}

func (s *Server) handleStats(c *gin.Context) {
	snap := s.service.Telemetry()
	if snap == nil {
		c.JSON(http.StatusNotFound, errorBody{
			Error: "query metrics are disabled",
			Code:  "metrics_disabled",
		})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: version.Version})
}
