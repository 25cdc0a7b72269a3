package api

import (
	"context"
	"errors"
	"log"
	"mime"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"ytaudio-server/internal/downloader"
	"ytaudio-server/internal/jobs"
	"ytaudio-server/internal/models"
)

const (
	urlRequiredMessage = "URL is required"
	busyMessage        = "Server is busy. Please try again in a few seconds."
)

// Pipeline runs one download and hands the result to deliver.
type Pipeline interface {
	Process(ctx context.Context, req models.DownloadRequest, deliver jobs.Deliverer) (*models.Job, error)
}

type Handler struct {
	Pipeline Pipeline
}

func NewHandler(p Pipeline) *Handler {
	return &Handler{Pipeline: p}
}

// Index shows the empty form.
func (h *Handler) Index(c echo.Context) error {
	return renderForm(c, http.StatusOK, "")
}

// Download validates the submitted URL, runs the pipeline and either streams
// the audio file or re-renders the form with a readable error.
func (h *Handler) Download(c echo.Context) error {
	req := models.DownloadRequest{URL: strings.TrimSpace(c.FormValue("url"))}
	if req.URL == "" {
		return renderForm(c, http.StatusOK, urlRequiredMessage)
	}

	_, err := h.Pipeline.Process(c.Request().Context(), req, func(file models.SanitizedFile) error {
		return sendFile(c, file)
	})
	if err == nil {
		return nil
	}

	if c.Response().Committed {
		log.Printf("⚠️ Response for %s aborted mid-stream: %v", req.URL, err)
		return nil
	}
	return renderForm(c, http.StatusOK, userMessage(err))
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func sendFile(c echo.Context, file models.SanitizedFile) error {
	f, err := os.Open(file.ContentPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, contentDisposition(file.DisplayName))
	header.Set(echo.HeaderContentLength, strconv.FormatInt(info.Size(), 10))
	return c.Stream(http.StatusOK, file.MimeType, f)
}

// contentDisposition quotes ASCII names and switches to the RFC 2231
// filename* form for anything else.
func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

// userMessage is the only path from an error to the page: raw engine output,
// paths and stack traces never reach the client.
func userMessage(err error) string {
	var extractErr *downloader.ExtractionError
	switch {
	case errors.As(err, &extractErr):
		return extractErr.UserMessage()
	case errors.Is(err, jobs.ErrServerBusy):
		return busyMessage
	default:
		return downloader.GenericFailureMessage
	}
}
