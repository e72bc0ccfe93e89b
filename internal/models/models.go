package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ============ TEMPLATE STRUCTURES ============

// FieldRole is the semantic tag telling the compositor which substitution
// value a text field receives. The wire values match the template files the
// certificate editor exports.
type FieldRole string

const (
	RoleParticipantName FieldRole = "name"
	RoleEventName       FieldRole = "event"
	RoleEventDate       FieldRole = "date"
	RoleCustom          FieldRole = "custom"
)

// TextField is one styled, positioned piece of text on a certificate.
//
// X and Y are always expressed in output-canvas pixels (default 1920x1080),
// never in the coordinate space of a scaled on-screen preview. Editing
// surfaces convert display coordinates before writing into this model.
type TextField struct {
	ID         string    `json:"id"`
	Role       FieldRole `json:"type"`
	Text       string    `json:"text"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	FontSize   float64   `json:"fontSize"` // pixels
	FontFamily string    `json:"fontFamily"`
	Color      string    `json:"color"`      // hex or CSS color name
	FontWeight string    `json:"fontWeight"` // "normal" or "bold"
	TextAlign  string    `json:"textAlign"`  // "left", "center" or "right"
}

// SignatureField is one positioned, sized signature image overlay. Width is
// authoritative for scaling; the editor enforces a 50px minimum, the
// compositor renders degenerate sizes as empty rather than re-validating.
type SignatureField struct {
	ID     string  `json:"id"`
	Image  string  `json:"image"` // data URL, URL or raw base64; may be empty
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Name   string  `json:"name"`
	Title  string  `json:"title"`
}

// Size is a canvas size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Position is a point in output-canvas pixels.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CertificateTemplate is the serializable layout model shared across a batch
// run. It is the unit of template export/import.
type CertificateTemplate struct {
	BackgroundImage string           `json:"backgroundImage"`
	TextFields      []TextField      `json:"textElements"`
	SignatureFields []SignatureField `json:"signatureElements"`
	CanvasSize      Size             `json:"canvasSize"`
}

// TemplateParseError reports a malformed template file on import.
type TemplateParseError struct {
	Err error
}

func (e *TemplateParseError) Error() string {
	return fmt.Sprintf("failed to parse certificate template: %v", e.Err)
}

func (e *TemplateParseError) Unwrap() error { return e.Err }

// Serialize encodes the template as the editor's JSON template file.
func (t *CertificateTemplate) Serialize() ([]byte, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize template: %w", err)
	}
	return data, nil
}

// DeserializeTemplate parses a template file. The round trip
// DeserializeTemplate(t.Serialize()) reproduces t field for field, including
// field order.
func DeserializeTemplate(data []byte) (*CertificateTemplate, error) {
	var t CertificateTemplate
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, &TemplateParseError{Err: err}
	}
	return &t, nil
}

// FindFieldByRole returns the first text field with the given role, or nil.
// Templates may contain duplicate-role fields; later ones are shadowed, never
// rejected, so first match wins here by contract.
func (t *CertificateTemplate) FindFieldByRole(role FieldRole) *TextField {
	for i := range t.TextFields {
		if t.TextFields[i].Role == role {
			return &t.TextFields[i]
		}
	}
	return nil
}

// NewTextField returns a freshly identified field with the editor's defaults.
func NewTextField(role FieldRole) TextField {
	return TextField{
		ID:         uuid.NewString(),
		Role:       role,
		Text:       "Text Baru",
		X:          400,
		Y:          300,
		FontSize:   32,
		FontFamily: "Arial",
		Color:      "#000000",
		FontWeight: "normal",
		TextAlign:  "center",
	}
}

// DefaultTemplate is the layout the certificate editor seeds a new session
// with: name, event and date fields on a 1920x1080 canvas.
func DefaultTemplate() *CertificateTemplate {
	return &CertificateTemplate{
		TextFields: []TextField{
			{
				ID:         "name",
				Role:       RoleParticipantName,
				Text:       "Nama Peserta",
				X:          760,
				Y:          400,
				FontSize:   72,
				FontFamily: "Times New Roman",
				Color:      "#1a1a1a",
				FontWeight: "bold",
				TextAlign:  "center",
			},
			{
				ID:         "event",
				Role:       RoleEventName,
				Text:       "Workshop Satellite Tracking 2024",
				X:          660,
				Y:          550,
				FontSize:   36,
				FontFamily: "Arial",
				Color:      "#333333",
				FontWeight: "normal",
				TextAlign:  "center",
			},
			{
				ID:         "date",
				Role:       RoleEventDate,
				Text:       "15 Maret 2024",
				X:          810,
				Y:          620,
				FontSize:   28,
				FontFamily: "Arial",
				Color:      "#666666",
				FontWeight: "normal",
				TextAlign:  "center",
			},
		},
		SignatureFields: []SignatureField{},
		CanvasSize:      Size{Width: 1920, Height: 1080},
	}
}

// ============ PARTICIPANT STRUCTURES ============

// CertificateStatus tracks issuance per participant in the registry.
type CertificateStatus string

const (
	StatusIssued    CertificateStatus = "issued"
	StatusPending   CertificateStatus = "pending"
	StatusNotIssued CertificateStatus = "not_issued"
)

// Participant is the registry record the compositor reads Name, Event and
// EventDate from. The registry itself is an external collaborator.
type Participant struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Event               string            `json:"event"`
	EventDate           string            `json:"eventDate"`
	AttendanceConfirmed bool              `json:"attendance"`
	CertificateStatus   CertificateStatus `json:"certificateStatus"`
}

// ============ REQUEST/RESPONSE STRUCTURES ============

// CertificateOptions are the per-render knobs. ShowBarcode defaults to true
// when nil; BarcodePosition defaults to 50px from the left edge and 100px
// above the bottom edge.
type CertificateOptions struct {
	CertificateNumber string    `json:"certificateNumber,omitempty"`
	ShowBarcode       *bool     `json:"showBarcode,omitempty"`
	BarcodePosition   *Position `json:"barcodePosition,omitempty"`
	VerificationQR    bool      `json:"verificationQR,omitempty"`
}

type GenerateCertificateRequest struct {
	Template    CertificateTemplate `json:"template"`
	Participant Participant         `json:"participant"`
	Options     CertificateOptions  `json:"options"`
	Filename    string              `json:"filename,omitempty"`
}

type GenerateCertificateResponse struct {
	Success  bool   `json:"success"`
	DataURL  string `json:"data_url,omitempty"`
	Filename string `json:"filename"`
}

type BatchGenerateRequest struct {
	Template     CertificateTemplate `json:"template"`
	Participants []Participant       `json:"participants"`
}

// BatchAbortResponse reports a partially failed batch. The operator needs to
// know how much succeeded, not just that something failed.
type BatchAbortResponse struct {
	Success             bool   `json:"success"`
	SucceededCount      int    `json:"succeededCount"`
	FailedParticipantID string `json:"failedParticipantId,omitempty"`
	Error               string `json:"error"`
}

type BarcodeCheckRequest struct {
	Value string `json:"value"`
}

type BarcodeCheckResponse struct {
	Value string `json:"value"`
	Valid bool   `json:"valid"`
}

type TemplateValidateResponse struct {
	Valid           bool `json:"valid"`
	TextFields      int  `json:"textFields"`
	SignatureFields int  `json:"signatureFields"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}
