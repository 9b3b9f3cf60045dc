package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/alkime/onboard/internal/flow"
	"github.com/alkime/onboard/internal/session"
	"github.com/alkime/onboard/internal/wizard"
	"github.com/gin-gonic/gin"
)

const sessionKey = "session"

type createSessionRequest struct {
	UserID string `json:"userId" binding:"required"`
	FlowID string `json:"flowId"`
}

type transcriptRequest struct {
	Text string `json:"text" binding:"required"`
}

// sessionView is the JSON shape of a session.
type sessionView struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	FlowID     string          `json:"flowId"`
	CreatedAt  time.Time       `json:"createdAt"`
	State      wizard.Snapshot `json:"state"`
	Transcript string          `json:"transcript"`
	Processing bool            `json:"processing"`
	Route      string          `json:"route,omitempty"`
	Prompts    []string        `json:"prompts"`
}

func viewOf(sess *session.Session) sessionView {
	prompts := sess.Prompts.Lines()
	if prompts == nil {
		prompts = []string{}
	}

	return sessionView{
		ID:         sess.ID,
		UserID:     sess.UserID,
		FlowID:     sess.Flow.ID,
		CreatedAt:  sess.CreatedAt,
		State:      sess.Wizard.Snapshot(),
		Transcript: sess.Dispatcher.Transcript(),
		Processing: sess.Dispatcher.IsProcessing(),
		Route:      sess.Route(),
		Prompts:    prompts,
	}
}

func (s *Server) resolveFlow(id string) (flow.Definition, error) {
	if id == "" || id == s.flow.ID {
		return s.flow, nil
	}

	return flow.Builtin(id)
}

func (s *Server) handleGetFlow(c *gin.Context) {
	def, err := s.resolveFlow(c.Param("flow"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, def)
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	def, err := s.resolveFlow(req.FlowID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	sess, err := s.registry.Create(def, req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, viewOf(sess))
}

// loadSession resolves the :id parameter for the session routes.
func (s *Server) loadSession(c *gin.Context) {
	sess, err := s.registry.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		c.Abort()
		return
	}

	c.Set(sessionKey, sess)
	c.Next()
}

func sessionFrom(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

func (s *Server) handleGetSession(c *gin.Context) {
	c.JSON(http.StatusOK, viewOf(sessionFrom(c)))
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.registry.Dispose(sessionFrom(c).ID); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) handleTranscript(c *gin.Context) {
	var req transcriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess := sessionFrom(c)

	outcome, err := sess.Dispatch(req.Text)
	if err != nil {
		s.logger.Warn("transcript dispatch interrupted", "session", sess.ID, "error", err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"outcome": outcome,
		"session": viewOf(sess),
	})
}

// stepFrom validates the :step parameter against the session's flow.
func stepFrom(c *gin.Context, sess *session.Session) (string, bool) {
	id := c.Param("step")
	if _, ok := sess.Flow.Step(id); !ok {
		writeError(c, wizard.ErrUnknownStep)
		return "", false
	}

	return id, true
}

func (s *Server) handleCompleteStep(c *gin.Context) {
	sess := sessionFrom(c)
	id, ok := stepFrom(c, sess)
	if !ok {
		return
	}

	sess.Wizard.CompleteStep(id)
	c.JSON(http.StatusOK, viewOf(sess))
}

func (s *Server) handleGoToStep(c *gin.Context) {
	sess := sessionFrom(c)
	id, ok := stepFrom(c, sess)
	if !ok {
		return
	}

	sess.Wizard.GoToStep(id)
	c.JSON(http.StatusOK, viewOf(sess))
}

func (s *Server) handleExpandStep(c *gin.Context) {
	sess := sessionFrom(c)
	id, ok := stepFrom(c, sess)
	if !ok {
		return
	}

	if err := sess.Wizard.Expand(id); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, viewOf(sess))
}

func (s *Server) handleCollapse(c *gin.Context) {
	sess := sessionFrom(c)
	sess.Wizard.Collapse()
	c.JSON(http.StatusOK, viewOf(sess))
}

func (s *Server) handleUpdateForm(c *gin.Context) {
	var partial map[string]any
	if err := c.ShouldBindJSON(&partial); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess := sessionFrom(c)
	sess.Wizard.UpdateFormData(partial)
	c.JSON(http.StatusOK, viewOf(sess))
}

// writeError maps domain errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, wizard.ErrUnknownStep):
		status = http.StatusNotFound
	case errors.Is(err, wizard.ErrStepNotInteractive):
		status = http.StatusConflict
	case errors.Is(err, session.ErrUserRequired):
		status = http.StatusBadRequest
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
