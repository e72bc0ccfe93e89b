// Package handlers wires the certificate pipeline to HTTP.
package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"certificate-service/internal/barcode"
	"certificate-service/internal/batch"
	"certificate-service/internal/cache"
	"certificate-service/internal/certnum"
	"certificate-service/internal/config"
	"certificate-service/internal/fonts"
	"certificate-service/internal/generator"
	"certificate-service/internal/models"
)

var startTime = time.Now()

// Handler carries the shared collaborators every endpoint needs.
type Handler struct {
	cfg     *config.Config
	fonts   *fonts.Library
	numbers *certnum.Generator
	log     zerolog.Logger
}

// New creates a Handler.
func New(cfg *config.Config, fontLib *fonts.Library, numbers *certnum.Generator, log zerolog.Logger) *Handler {
	return &Handler{
		cfg:     cfg,
		fonts:   fontLib,
		numbers: numbers,
		log:     log,
	}
}

// HealthCheck handles health check requests.
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(models.HealthResponse{
		Status:  "healthy",
		Version: "1.0.0",
		Uptime:  time.Since(startTime).String(),
	})
}

// GenerateCertificate renders a single certificate. Clients sending
// Accept: application/json receive a data URL for inline preview; everyone
// else receives the binary in the format named by the "format" query
// parameter (png, webp or pdf, default png).
func (h *Handler) GenerateCertificate(c *fiber.Ctx) error {
	var req models.GenerateCertificateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
	}

	if req.Template.BackgroundImage == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Template background image is required",
		})
	}
	if req.Participant.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Participant name is required",
		})
	}

	gen := generator.New(h.fonts, h.numbers, h.log)

	filename := req.Filename
	if filename == "" {
		filename = fmt.Sprintf("certificate_%s", batch.SanitizeName(req.Participant.Name))
	}

	if c.Get(fiber.HeaderAccept) == fiber.MIMEApplicationJSON {
		dataURL, err := gen.RenderDataURL(&req.Template, req.Participant, req.Options)
		if err != nil {
			return h.renderFailure(c, err)
		}
		return c.JSON(models.GenerateCertificateResponse{
			Success:  true,
			DataURL:  dataURL,
			Filename: filename + ".png",
		})
	}

	var (
		data        []byte
		err         error
		contentType string
		ext         string
	)
	switch c.Query("format", "png") {
	case "png":
		data, err = gen.RenderPNG(&req.Template, req.Participant, req.Options)
		contentType, ext = "image/png", "png"
	case "webp":
		data, err = gen.RenderWebP(&req.Template, req.Participant, req.Options)
		contentType, ext = "image/webp", "webp"
	case "pdf":
		data, err = gen.RenderPDF(&req.Template, req.Participant, req.Options)
		contentType, ext = "application/pdf", "pdf"
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unsupported format, expected png, webp or pdf",
		})
	}
	if err != nil {
		return h.renderFailure(c, err)
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s.%s", filename, ext))
	return c.Send(data)
}

// renderFailure maps render errors to status codes. Unresolvable inputs are
// the client's problem; everything else is ours.
func (h *Handler) renderFailure(c *fiber.Ctx, err error) error {
	var imgErr *generator.ImageLoadError
	if errors.As(err, &imgErr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   "Failed to load image",
			"details": err.Error(),
		})
	}
	h.log.Error().Err(err).Msg("certificate render failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "Failed to generate certificate",
		"details": err.Error(),
	})
}

// GenerateBatch renders certificates for every selected participant and
// streams back a zip archive. A failed participant aborts the whole batch;
// the response then reports how far the run got instead of shipping a
// partial archive.
func (h *Handler) GenerateBatch(c *fiber.Ctx) error {
	var req models.BatchGenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
	}

	if len(req.Participants) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No participants provided",
		})
	}
	if len(req.Participants) > h.cfg.Certificate.MaxBatch {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Maximum %d participants per batch", h.cfg.Certificate.MaxBatch),
		})
	}

	// Warm the image cache so the sequential render loop never waits on the
	// network mid-batch.
	sources := []string{req.Template.BackgroundImage}
	for _, sig := range req.Template.SignatureFields {
		sources = append(sources, sig.Image)
	}
	cache.Preload(sources)

	gen := generator.New(h.fonts, h.numbers, h.log)
	pipeline := batch.New(gen, h.numbers, h.log)

	result, err := pipeline.Run(c.UserContext(), &req.Template, req.Participants)
	if err != nil {
		var abort *batch.AbortError
		if errors.As(err, &abort) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(models.BatchAbortResponse{
				Success:             false,
				SucceededCount:      abort.SucceededCount,
				FailedParticipantID: abort.ParticipantID,
				Error:               abort.Error(),
			})
		}
		var finalize *batch.ArchiveFinalizeError
		if errors.As(err, &finalize) {
			h.log.Error().Err(err).Msg("batch archive finalize failed")
			return c.Status(fiber.StatusInternalServerError).JSON(models.BatchAbortResponse{
				Success:        false,
				SucceededCount: finalize.SucceededCount,
				Error:          finalize.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", result.ArchiveName))
	return c.Send(result.Data)
}

// ValidateTemplate parses a template file and reports its shape, so editors
// can check an import before committing to it.
func (h *Handler) ValidateTemplate(c *fiber.Ctx) error {
	tmpl, err := models.DeserializeTemplate(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid template file",
			"details": err.Error(),
		})
	}
	return c.JSON(models.TemplateValidateResponse{
		Valid:           true,
		TextFields:      len(tmpl.TextFields),
		SignatureFields: len(tmpl.SignatureFields),
	})
}

// CheckBarcode reports whether a value survives barcode encoding, letting
// editors warn about unsupported characters before a render silently drops
// the barcode.
func (h *Handler) CheckBarcode(c *fiber.Ctx) error {
	var req models.BarcodeCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	return c.JSON(models.BarcodeCheckResponse{
		Value: req.Value,
		Valid: barcode.CanEncode(req.Value),
	})
}

// PreloadTemplate pre-caches a template's images ahead of a batch run.
func (h *Handler) PreloadTemplate(c *fiber.Ctx) error {
	var req struct {
		Template models.CertificateTemplate `json:"template"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	sources := []string{req.Template.BackgroundImage}
	for _, sig := range req.Template.SignatureFields {
		sources = append(sources, sig.Image)
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"cached_images": cache.Preload(sources),
	})
}

// GetCacheStats returns image-cache statistics.
func (h *Handler) GetCacheStats(c *fiber.Ctx) error {
	return c.JSON(cache.Stats())
}

// ClearCache drops all cached images.
func (h *Handler) ClearCache(c *fiber.Ctx) error {
	cache.ClearCache()
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Cache cleared",
	})
}
