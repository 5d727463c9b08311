package web

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"rag-chatbot/internal/helper"
	"rag-chatbot/internal/models"
	"rag-chatbot/internal/session"
)

var (
	errMissingFile  = errors.New("missing file")
	errFileTooLarge = errors.New("file too large")
)

type AskRequest struct {
	Question string `json:"question"`
}

type pageData struct {
	Document    *session.IngestResult
	Notice      string
	Error       string
	Question    string
	Answer      template.HTML
	Sources     []models.SourceChunk
	MaxUploadMB int64
}

func (s *Server) Index(c *gin.Context) {
	sess, err := s.currentSession(c)
	if err != nil {
		s.renderPage(c, http.StatusInternalServerError, pageData{Error: err.Error()})
		return
	}
	s.renderPage(c, http.StatusOK, pageData{Document: sess.Document()})
}

// Upload indexes the submitted PDF and redraws the page with a status summary
func (s *Server) Upload(c *gin.Context) {
	sess, err := s.currentSession(c)
	if err != nil {
		s.renderPage(c, http.StatusInternalServerError, pageData{Error: err.Error()})
		return
	}

	result, err := s.ingestUpload(c, sess)
	if err != nil {
		status, _ := statusFor(err)
		s.renderPage(c, status, pageData{Document: sess.Document(), Error: err.Error()})
		return
	}
	s.renderPage(c, http.StatusOK, pageData{
		Document: result,
		Notice: fmt.Sprintf("Loaded %d pages from %s, split into %d chunks, indexed %d vectors.",
			result.Pages, result.Source, result.Chunks, result.Vectors),
	})
}

// Ask answers the submitted question and redraws the page with the answer
func (s *Server) Ask(c *gin.Context) {
	sess, err := s.currentSession(c)
	if err != nil {
		s.renderPage(c, http.StatusInternalServerError, pageData{Error: err.Error()})
		return
	}

	question := c.PostForm("question")
	data := pageData{Document: sess.Document(), Question: question}

	answer, err := sess.Ask(c.Request.Context(), question)
	if err != nil {
		status, _ := statusFor(err)
		data.Error = err.Error()
		s.renderPage(c, status, data)
		return
	}

	rendered, err := renderMarkdown(answer.Answer)
	if err != nil {
		log.Warn().Err(err).Msg("Error rendering answer, showing plain text")
		rendered = template.HTML(template.HTMLEscapeString(answer.Answer))
	}
	data.Answer = rendered
	data.Sources = answer.SourceChunks
	s.renderPage(c, http.StatusOK, data)
}

// UploadDocument accepts a multipart form with "file" and returns the ingest summary
func (s *Server) UploadDocument(c *gin.Context) {
	sess, err := s.currentSession(c)
	if err != nil {
		Error(c, http.StatusInternalServerError, CodeInternalServer, err.Error())
		return
	}

	result, err := s.ingestUpload(c, sess)
	if err != nil {
		status, code := statusFor(err)
		Error(c, status, code, err.Error())
		return
	}
	OK(c, result)
}

func (s *Server) AskQuestion(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, CodeBadRequest, "invalid request payload")
		return
	}

	sess, err := s.currentSession(c)
	if err != nil {
		Error(c, http.StatusInternalServerError, CodeInternalServer, err.Error())
		return
	}

	answer, err := sess.Ask(c.Request.Context(), req.Question)
	if err != nil {
		status, code := statusFor(err)
		Error(c, status, code, err.Error())
		return
	}
	OK(c, answer)
}

// DeleteSession drops the caller's session and its index
func (s *Server) DeleteSession(c *gin.Context) {
	id, _ := c.Cookie(SessionCookie)
	if err := s.store.Delete(id); err != nil {
		Error(c, http.StatusInternalServerError, CodeInternalServer, err.Error())
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	OK(c, gin.H{"deleted_session_id": id})
}

// currentSession resolves the session cookie, issuing a new one when needed
func (s *Server) currentSession(c *gin.Context) (*session.Session, error) {
	id, _ := c.Cookie(SessionCookie)
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if sess.ID != id {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, sess.ID, 0, "/", "", false, true)
	}
	return sess, nil
}

// ingestUpload stores the uploaded file in a temporary directory for the
// duration of the ingest
func (s *Server) ingestUpload(c *gin.Context, sess *session.Session) (*session.IngestResult, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, errMissingFile
	}
	if limit := s.cfg.Server.MaxUploadMB << 20; limit > 0 && file.Size > limit {
		return nil, fmt.Errorf("%w (max %dMB)", errFileTooLarge, s.cfg.Server.MaxUploadMB)
	}

	if s.cfg.Server.UploadDir != "" {
		if err := helper.CreateFolder(s.cfg.Server.UploadDir); err != nil {
			return nil, err
		}
	}
	dir, err := os.MkdirTemp(s.cfg.Server.UploadDir, "upload-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("Error removing upload")
		}
	}()

	path := filepath.Join(dir, filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, path); err != nil {
		return nil, err
	}
	return sess.Ingest(c.Request.Context(), path)
}

func (s *Server) renderPage(c *gin.Context, status int, data pageData) {
	data.MaxUploadMB = s.cfg.Server.MaxUploadMB
	c.HTML(status, "index.html", data)
}
