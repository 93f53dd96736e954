package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Iron-Ham/labkeeper/internal/errors"
)

type providerView struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type sessionView struct {
	SessionID       string `json:"sessionId"`
	BaseURL         string `json:"baseUrl"`
	Label           string `json:"label"`
	Kind            string `json:"kind,omitempty"`
	MappedDirectory string `json:"mappedDirectory,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": s.registry.Len(),
	})
}

func (s *Server) listProviders(c *gin.Context) {
	handles := s.surface.Providers()
	views := make([]providerView, len(handles))
	for i, h := range handles {
		views[i] = providerView{ID: h.ID, Label: h.Label}
	}
	c.JSON(http.StatusOK, views)
}

// listSessions omits tokens; consumers resolve a session to get one.
func (s *Server) listSessions(c *gin.Context) {
	records := s.registry.List()
	views := make([]sessionView, len(records))
	for i, rec := range records {
		views[i] = sessionView{
			SessionID:       rec.SessionID,
			BaseURL:         rec.BaseURL,
			Label:           rec.Label,
			Kind:            rec.Kind,
			MappedDirectory: rec.MappedDirectory,
		}
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) resolveSession(c *gin.Context) {
	conn, err := s.handle.Resolve(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conn)
}

func (s *Server) removeSession(c *gin.Context) {
	if err := s.handle.RemoveHandle(c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, errors.ErrSessionNotFound) {
		status = http.StatusNotFound
	} else {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err.Error())
	}
	c.JSON(status, errorResponse{Error: err.Error()})
}
