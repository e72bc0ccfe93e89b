package generator

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strconv"
	"strings"
	"sync"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/jung-kurt/gofpdf"
	"github.com/rs/zerolog"
	qrcode "github.com/skip2/go-qrcode"
	_ "golang.org/x/image/webp"

	"certificate-service/internal/barcode"
	"certificate-service/internal/cache"
	"certificate-service/internal/certnum"
	"certificate-service/internal/fonts"
	"certificate-service/internal/models"
)

// Default output canvas, used when a template carries no canvas size.
const (
	defaultCanvasWidth  = 1920
	defaultCanvasHeight = 1080
)

// Barcode placement on the certificate: anchored 50px from the left edge and
// 100px above the bottom edge, scaled to a 300px display width.
const (
	barcodeMarginLeft   = 50
	barcodeMarginBottom = 100
	barcodeDisplayWidth = 300
)

// Signature caption styling below the anchor point.
const (
	signerNameOffset  = 10
	signerNameSize    = 24
	signerTitleOffset = 40
	signerTitleSize   = 20
)

// ImageLoadError reports a background or signature image that failed to
// resolve or decode. Fatal for the certificate being rendered.
type ImageLoadError struct {
	Source string
	Err    error
}

func (e *ImageLoadError) Error() string {
	return fmt.Sprintf("failed to load image %q: %v", truncateSource(e.Source), e.Err)
}

func (e *ImageLoadError) Unwrap() error { return e.Err }

// Generator composites certificate templates and participant values into
// raster images. A Generator owns one drawing surface: renders on the same
// instance are serialized, so a batch driver can own one instance and reuse
// it across sequential renders.
type Generator struct {
	fonts   *fonts.Library
	numbers *certnum.Generator
	log     zerolog.Logger

	// mu enforces the one-render-in-flight-per-instance contract.
	mu sync.Mutex
}

// New creates a certificate Generator.
func New(fontLib *fonts.Library, numbers *certnum.Generator, log zerolog.Logger) *Generator {
	return &Generator{
		fonts:   fontLib,
		numbers: numbers,
		log:     log,
	}
}

// Render paints one certificate. The paint order is fixed: background, text
// fields, signatures, then the barcode. A barcode encoding failure is logged
// and skipped; any image load failure is fatal for this certificate.
func (g *Generator) Render(tmpl *models.CertificateTemplate, p models.Participant, opts models.CertificateOptions) (image.Image, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	width := tmpl.CanvasSize.Width
	height := tmpl.CanvasSize.Height
	if width <= 0 {
		width = defaultCanvasWidth
	}
	if height <= 0 {
		height = defaultCanvasHeight
	}

	// 1. Background, stretched to exactly fill the canvas. Aspect distortion
	// is accepted behavior.
	bg, err := cache.GetImage(tmpl.BackgroundImage)
	if err != nil {
		return nil, &ImageLoadError{Source: tmpl.BackgroundImage, Err: err}
	}
	dc := gg.NewContext(width, height)
	dc.DrawImage(imaging.Resize(bg, width, height, imaging.Lanczos), 0, 0)

	// 2. + 3. Text fields with role substitution.
	g.drawTextFields(dc, tmpl, p)

	// 4. Signature overlays.
	for i := range tmpl.SignatureFields {
		if err := g.drawSignature(dc, &tmpl.SignatureFields[i]); err != nil {
			return nil, err
		}
	}

	// 5. + 6. Barcode, recoverable on encoding failure.
	if opts.ShowBarcode == nil || *opts.ShowBarcode {
		g.drawBarcode(dc, p, opts, width, height)
	}

	return dc.Image(), nil
}

// drawTextFields resolves substitution values and paints every visible field.
// Substitution roles draw the participant value with the field's style; only
// the first field per role draws, later duplicates are shadowed. Custom
// fields draw their literal template text. A role with no matching field
// draws nothing; that is not an error.
func (g *Generator) drawTextFields(dc *gg.Context, tmpl *models.CertificateTemplate, p models.Participant) {
	drawn := map[models.FieldRole]bool{}

	for i := range tmpl.TextFields {
		field := &tmpl.TextFields[i]

		text := field.Text
		switch field.Role {
		case models.RoleParticipantName:
			text = p.Name
		case models.RoleEventName:
			text = p.Event
		case models.RoleEventDate:
			text = p.EventDate
		case models.RoleCustom:
			// literal template text, no substitution
		default:
			continue
		}

		if field.Role != models.RoleCustom {
			if drawn[field.Role] {
				continue
			}
			drawn[field.Role] = true
		}

		if strings.TrimSpace(text) == "" {
			continue
		}

		g.drawText(dc, text, field.X, field.Y, field.FontFamily, field.FontWeight, field.FontSize, field.Color, field.TextAlign)
	}
}

// drawText paints one string with horizontal alignment per textAlign and the
// vertical anchor at the center of the glyph box, not the baseline. Template
// layouts were authored against this convention.
func (g *Generator) drawText(dc *gg.Context, text string, x, y float64, family, weight string, size float64, colorStr, align string) {
	dc.SetFontFace(g.fonts.Face(family, weight, size))

	r, gr, b := parseColor(colorStr)
	dc.SetRGB255(r, gr, b)

	ax := 0.5
	switch align {
	case "left":
		ax = 0
	case "right":
		ax = 1
	}

	dc.DrawStringAnchored(text, x, y, ax, 0.5)
}

// drawSignature pastes a signature image so its horizontal center sits at X
// and its bottom edge at Y, scaled to the field width with height derived
// from the image's aspect ratio (width is authoritative). The signer name and
// title are captioned below the anchor.
func (g *Generator) drawSignature(dc *gg.Context, sig *models.SignatureField) error {
	if sig.Image != "" && sig.Width > 0 {
		img, err := cache.GetImage(sig.Image)
		if err != nil {
			return &ImageLoadError{Source: sig.Image, Err: err}
		}

		scaled := imaging.Resize(img, int(sig.Width), 0, imaging.Lanczos)
		dc.DrawImage(scaled, int(sig.X-sig.Width/2), int(sig.Y)-scaled.Bounds().Dy())
	}

	if sig.Name != "" {
		g.drawText(dc, sig.Name, sig.X, sig.Y+signerNameOffset, "Arial", "bold", signerNameSize, "#1a1a1a", "center")
	}
	if sig.Title != "" {
		g.drawText(dc, sig.Title, sig.X, sig.Y+signerTitleOffset, "Arial", "normal", signerTitleSize, "#666666", "center")
	}
	return nil
}

// drawBarcode encodes the certificate number and paints it bottom-left. An
// encoding failure must not abort the certificate: text and signature matter
// more than scannability for a single render, so the barcode is simply
// omitted and the omission logged.
func (g *Generator) drawBarcode(dc *gg.Context, p models.Participant, opts models.CertificateOptions, width, height int) {
	number := opts.CertificateNumber
	if number == "" {
		number = g.numbers.Generate(p.Event, certnum.ParseEventDate(p.EventDate), nil)
	}

	img, err := barcode.Encode(number, barcode.CompactConfig())
	if err != nil {
		g.log.Warn().Err(err).Str("participant", p.ID).Msg("skipping barcode")
		return
	}

	x := float64(barcodeMarginLeft)
	y := float64(height - barcodeMarginBottom)
	if opts.BarcodePosition != nil {
		x = opts.BarcodePosition.X
		y = opts.BarcodePosition.Y
	}

	scaled := imaging.Resize(img, barcodeDisplayWidth, 0, imaging.Lanczos)
	dc.DrawImage(scaled, int(x), int(y))

	if opts.VerificationQR {
		g.drawVerificationQR(dc, number, width, height)
	}
}

// drawVerificationQR adds an opt-in QR of the certificate number at the
// bottom-right corner. Failures are skipped like barcode failures.
func (g *Generator) drawVerificationQR(dc *gg.Context, number string, width, height int) {
	const qrSize = 150
	const qrMargin = 50

	q, err := qrcode.New(number, qrcode.Medium)
	if err != nil {
		g.log.Warn().Err(err).Msg("skipping verification QR")
		return
	}
	dc.DrawImage(q.Image(qrSize), width-qrMargin-qrSize, height-qrMargin-qrSize)
}

// ============ OUTPUT FORMS ============
//
// PNG bytes, data URL, WebP, PDF and the batch slice are views over the same
// Render, not separate algorithms.

// RenderPNG renders and encodes as PNG.
func (g *Generator) RenderPNG(tmpl *models.CertificateTemplate, p models.Participant, opts models.CertificateOptions) ([]byte, error) {
	img, err := g.Render(tmpl, p, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode certificate PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderDataURL renders and encodes as a base64 PNG data URL for inline
// preview.
func (g *Generator) RenderDataURL(tmpl *models.CertificateTemplate, p models.Participant, opts models.CertificateOptions) (string, error) {
	data, err := g.RenderPNG(tmpl, p, opts)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// RenderWebP renders and encodes as lossless WebP.
func (g *Generator) RenderWebP(tmpl *models.CertificateTemplate, p models.Participant, opts models.CertificateOptions) ([]byte, error) {
	img, err := g.Render(tmpl, p, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: true}); err != nil {
		return nil, fmt.Errorf("failed to encode certificate WebP: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderPDF renders and wraps the raster into a single-page PDF sized to the
// canvas at 96 DPI.
func (g *Generator) RenderPDF(tmpl *models.CertificateTemplate, p models.Participant, opts models.CertificateOptions) ([]byte, error) {
	data, err := g.RenderPNG(tmpl, p, opts)
	if err != nil {
		return nil, err
	}

	width := tmpl.CanvasSize.Width
	height := tmpl.CanvasSize.Height
	if width <= 0 {
		width = defaultCanvasWidth
	}
	if height <= 0 {
		height = defaultCanvasHeight
	}
	widthMM := float64(width) * 25.4 / 96.0
	heightMM := float64(height) * 25.4 / 96.0

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size: gofpdf.SizeType{
			Wd: widthMM,
			Ht: heightMM,
		},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	info := pdf.RegisterImageOptionsReader("certificate", gofpdf.ImageOptions{
		ImageType: "PNG",
	}, bytes.NewReader(data))
	if info == nil {
		return nil, fmt.Errorf("failed to register certificate raster")
	}
	pdf.ImageOptions("certificate", 0, 0, widthMM, heightMM, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to output PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderBatch sequentially renders one certificate per participant in input
// order and returns PNGs in the same order. A failure fails the whole call
// with the failing participant's position; results are never silently
// reordered or dropped.
func (g *Generator) RenderBatch(tmpl *models.CertificateTemplate, participants []models.Participant, opts models.CertificateOptions) ([][]byte, error) {
	results := make([][]byte, 0, len(participants))
	for i, p := range participants {
		data, err := g.RenderPNG(tmpl, p, opts)
		if err != nil {
			return nil, fmt.Errorf("participant %s at index %d: %w", p.ID, i, err)
		}
		results = append(results, data)
	}
	return results, nil
}

// ============ HELPER FUNCTIONS ============

// parseColor understands #RRGGBB, #RGB and a handful of CSS color names.
// Unknown values fall back to black rather than failing the render.
func parseColor(s string) (int, int, int) {
	s = strings.TrimSpace(strings.ToLower(s))

	switch s {
	case "white":
		return 255, 255, 255
	case "red":
		return 255, 0, 0
	case "green":
		return 0, 128, 0
	case "blue":
		return 0, 0, 255
	case "gray", "grey":
		return 128, 128, 128
	case "black", "":
		return 0, 0, 0
	}

	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return 0, 0, 0
	}
	r, err1 := strconv.ParseInt(hex[0:2], 16, 64)
	g, err2 := strconv.ParseInt(hex[2:4], 16, 64)
	b, err3 := strconv.ParseInt(hex[4:6], 16, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0
	}
	return int(r), int(g), int(b)
}

func truncateSource(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}
