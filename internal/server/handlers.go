package server

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/respogen/respogen/internal/errors"
	"github.com/respogen/respogen/internal/normalize"
	"github.com/respogen/respogen/internal/services"
	"github.com/respogen/respogen/internal/version"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.Short(),
	})
}

func (s *Server) handlePing(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

func (s *Server) handleNotFound(c *gin.Context) {
	c.String(http.StatusNotFound, "Not found")
}

// handleGenerate validates the whole request before the first byte of the
// archive goes out, so every failure still gets a proper status and a
// plain-text body. Once streaming has started a failure can only cut the
// connection.
func (s *Server) handleGenerate(c *gin.Context) {
	ctx := c.Request.Context()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.Limits.MaxUploadBytes)

	req, err := s.parseGenerateRequest(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	plan, err := s.service.Prepare(ctx, req)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": plan.ArchiveName(),
	}))
	c.Header(warningsHeader, strconv.Itoa(len(plan.Warnings)))
	c.Status(http.StatusOK)

	stats, err := s.service.Stream(ctx, c.Writer, plan)
	if err != nil {
		if errors.IsCanceled(err) {
			s.logger.Info(ctx, "Archive stream canceled by client", "archive", plan.ArchiveName())
		} else {
			s.logger.Error(ctx, err, "Archive stream failed", "archive", plan.ArchiveName())
		}
		abortConnection(c)
		return
	}

	s.logger.Info(ctx, "Archive sent",
		"archive", plan.ArchiveName(),
		"entries", stats.Entries,
		"bytes", stats.BytesWritten,
		"warnings", len(plan.Warnings),
	)
}

// parseGenerateRequest reads the multipart body part by part. Form fields:
// files (repeated), zip, snippets (JSON), repoName, description, template.
// Parts are read straight from the request body, which MaxBytesReader
// bounds, so nothing is spooled to temporary files.
func (s *Server) parseGenerateRequest(c *gin.Context) (services.GenerateRequest, error) {
	var req services.GenerateRequest

	mr, err := c.Request.MultipartReader()
	if err != nil {
		return req, invalidRequest(err)
	}

	fields := make(map[string]string)
	haveArchive := false
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return req, partError(err)
		}

		content, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return req, partError(err)
		}

		name := part.FormName()
		filename := rawFilename(part)
		switch {
		case name == "files" && filename != "":
			req.Uploads = append(req.Uploads, normalize.Upload{Name: filename, Content: content})
		case name == "zip" && filename != "":
			if !haveArchive {
				req.Archive = content
				haveArchive = true
			}
		case filename == "":
			if _, seen := fields[name]; !seen {
				fields[name] = string(content)
			}
		}
	}

	snippets, err := normalize.ParseSnippets(fields["snippets"])
	if err != nil {
		return req, err
	}

	req.Name = fields["repoName"]
	req.Description = fields["description"]
	req.TemplateID = fields["template"]
	req.Snippets = snippets

	return req, nil
}

func (s *Server) fail(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	ctx := c.Request.Context()
	switch {
	case errors.IsCanceled(err):
		s.logger.Info(ctx, "Generate canceled by client", "error", err.Error())
	case status >= http.StatusInternalServerError:
		s.logger.Error(ctx, err, "Generate failed", "status", status)
	default:
		s.logger.Warn(ctx, err, "Generate rejected", "status", status)
	}
	c.String(status, errors.UserMessage(err))
}

func invalidRequest(cause error) error {
	ae := errors.NewValidationError(errors.ErrCodeInvalidRequest, "expected a multipart/form-data upload")
	ae.Cause = cause
	return ae
}

// partError classifies a failure while reading the body.
func partError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errors.NewPayloadTooLargeError("upload exceeds the size limit", tooLarge.Limit)
	}
	if errors.IsCanceled(err) {
		return errors.NewCanceledError(err)
	}
	return invalidRequest(err)
}

// rawFilename returns the client-supplied file name including any relative
// directory. Part.FileName reduces it to its base name, which would flatten
// folder uploads.
func rawFilename(part *multipart.Part) string {
	if _, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition")); err == nil {
		return params["filename"]
	}
	return part.FileName()
}

// abortConnection makes net/http drop the connection so the client sees an
// incomplete download instead of a cleanly terminated one.
func abortConnection(c *gin.Context) {
	c.Abort()
	panic(http.ErrAbortHandler)
}
