package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type sessionResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"sessionId"`
	ExpiresIn int    `json:"expiresIn"`
}

func (h *handlers) issueSession(c *gin.Context) {
	token, sessionID, err := h.deps.Sessions.Issue(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header(sessionHeader, token)
	c.JSON(http.StatusCreated, sessionResponse{
		Token:     token,
		SessionID: sessionID,
		ExpiresIn: h.deps.Sessions.TTLSeconds(),
	})
}
