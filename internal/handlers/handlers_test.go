package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"certificate-service/internal/certnum"
	"certificate-service/internal/config"
	"certificate-service/internal/fonts"
	"certificate-service/internal/models"
)

func testApp(t *testing.T) *fiber.App {
	t.Helper()

	fontLib, err := fonts.NewLibrary("")
	if err != nil {
		t.Fatal(err)
	}
	h := New(config.MustLoad(), fontLib, certnum.New(""), zerolog.Nop())

	app := fiber.New()
	app.Get("/health", h.HealthCheck)
	app.Post("/api/certificate/generate", h.GenerateCertificate)
	app.Post("/api/certificate/batch", h.GenerateBatch)
	app.Post("/api/template/validate", h.ValidateTemplate)
	app.Post("/api/barcode/check", h.CheckBarcode)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(data))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestHealthCheck(t *testing.T) {
	app := testApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var health models.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "healthy" {
		t.Errorf("status = %q, want %q", health.Status, "healthy")
	}
}

func TestCheckBarcode(t *testing.T) {
	app := testApp(t)

	tests := []struct {
		value string
		valid bool
	}{
		{"00001/WORKSHOP/AMSAT-ID/2024", true},
		{"sertifikat-日本語", false},
	}
	for _, tt := range tests {
		resp := postJSON(t, app, "/api/barcode/check", models.BarcodeCheckRequest{Value: tt.value})
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var out models.BarcodeCheckResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
		if out.Valid != tt.valid {
			t.Errorf("CheckBarcode(%q).Valid = %v, want %v", tt.value, out.Valid, tt.valid)
		}
	}
}

func TestValidateTemplate(t *testing.T) {
	app := testApp(t)

	tmpl := models.DefaultTemplate()
	data, err := tmpl.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(fiber.MethodPost, "/api/template/validate", bytes.NewReader(data))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out models.TemplateValidateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Valid || out.TextFields != 3 {
		t.Errorf("validate = %+v, want valid with 3 text fields", out)
	}
}

func TestValidateTemplateMalformed(t *testing.T) {
	app := testApp(t)

	req := httptest.NewRequest(fiber.MethodPost, "/api/template/validate", strings.NewReader("{not json"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGenerateCertificateRejectsMissingInputs(t *testing.T) {
	app := testApp(t)

	resp := postJSON(t, app, "/api/certificate/generate", models.GenerateCertificateRequest{
		Participant: models.Participant{Name: "Ahmad"},
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("missing background: status = %d, want 400", resp.StatusCode)
	}

	resp = postJSON(t, app, "/api/certificate/generate", models.GenerateCertificateRequest{
		Template: models.CertificateTemplate{BackgroundImage: "data:image/png;base64,"},
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("missing participant: status = %d, want 400", resp.StatusCode)
	}
}

func TestGenerateBatchRejectsEmptySelection(t *testing.T) {
	app := testApp(t)

	resp := postJSON(t, app, "/api/certificate/batch", models.BatchGenerateRequest{
		Template: *models.DefaultTemplate(),
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGenerateBatchReportsAbort(t *testing.T) {
	app := testApp(t)

	// Unresolvable background image makes the first participant fail.
	resp := postJSON(t, app, "/api/certificate/batch", models.BatchGenerateRequest{
		Template: models.CertificateTemplate{BackgroundImage: "definitely not an image"},
		Participants: []models.Participant{
			{ID: "1", Name: "Ahmad Fauzi", Event: "Workshop 2024", EventDate: "2024-03-15"},
		},
	})
	if resp.StatusCode != fiber.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var out models.BatchAbortResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Success || out.SucceededCount != 0 || out.FailedParticipantID != "1" {
		t.Errorf("abort response = %+v", out)
	}
}
