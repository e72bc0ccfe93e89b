// Package batch drives sequential certificate issuance into a single
// downloadable archive.
package batch

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"certificate-service/internal/certnum"
	"certificate-service/internal/models"
)

var nonAlnumRegex = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Renderer renders one certificate to PNG bytes. The pipeline is the sole
// driver of its Renderer during a run, which is what keeps the compositor's
// one-render-in-flight contract intact: renders happen strictly one after
// another, never in parallel.
type Renderer interface {
	RenderPNG(tmpl *models.CertificateTemplate, p models.Participant, opts models.CertificateOptions) ([]byte, error)
}

// AbortError reports a batch stopped by a fatal per-participant error. The
// archive is withheld entirely; partial success is reported, never hidden
// inside a truncated zip.
type AbortError struct {
	SucceededCount int
	ParticipantID  string
	Cause          error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("batch aborted after %d certificates at participant %q: %v",
		e.SucceededCount, e.ParticipantID, e.Cause)
}

func (e *AbortError) Unwrap() error { return e.Cause }

// ArchiveFinalizeError reports a packaging failure after every render
// succeeded. Render success and delivery success are distinct facts: the
// operator is told that 0 files were delivered despite N successful renders.
type ArchiveFinalizeError struct {
	SucceededCount int
	Err            error
}

func (e *ArchiveFinalizeError) Error() string {
	return fmt.Sprintf("failed to finalize archive: %d certificates rendered, 0 delivered: %v",
		e.SucceededCount, e.Err)
}

func (e *ArchiveFinalizeError) Unwrap() error { return e.Err }

// Result is one finished batch: a zip with one PNG entry per participant.
type Result struct {
	ArchiveName    string
	Data           []byte
	SucceededCount int
}

// Pipeline renders a caller-selected set of participants against one shared
// template and collects the outputs into a zip archive.
type Pipeline struct {
	renderer Renderer
	numbers  *certnum.Generator
	log      zerolog.Logger
}

// New creates a Pipeline. The Pipeline owns the renderer for the duration of
// each Run.
func New(renderer Renderer, numbers *certnum.Generator, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		renderer: renderer,
		numbers:  numbers,
		log:      log,
	}
}

// Run sequentially renders every participant in input order, buffering each
// PNG into an in-memory archive. Certificate numbers are assigned from a
// single base sequence so SEQ segments are distinct within the run.
//
// Rendering is intentionally sequential: the renderer's drawing surface is a
// shared mutable resource and the archive writer accepts one producer. The
// context is checked between participants; a single render is atomic.
//
// A fatal error aborts the whole run with an AbortError instead of producing
// a partial archive, leaving the operator free to retry the same batch.
func (pl *Pipeline) Run(ctx context.Context, tmpl *models.CertificateTemplate, participants []models.Participant) (*Result, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("no participants selected")
	}

	numbers := pl.numbers.GenerateBatch(certnum.BatchConfig{
		EventName: participants[0].Event,
		EventDate: certnum.ParseEventDate(participants[0].EventDate),
	}, len(participants))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for i, p := range participants {
		if err := ctx.Err(); err != nil {
			return nil, &AbortError{SucceededCount: i, ParticipantID: p.ID, Cause: err}
		}

		data, err := pl.renderer.RenderPNG(tmpl, p, models.CertificateOptions{
			CertificateNumber: numbers[i],
		})
		if err != nil {
			pl.log.Error().Err(err).Str("participant", p.ID).Int("succeeded", i).Msg("batch aborted")
			return nil, &AbortError{SucceededCount: i, ParticipantID: p.ID, Cause: err}
		}

		name := fmt.Sprintf("%s_%s.png", p.ID, SanitizeName(p.Name))
		w, err := zw.Create(name)
		if err != nil {
			return nil, &AbortError{SucceededCount: i, ParticipantID: p.ID, Cause: err}
		}
		if _, err := w.Write(data); err != nil {
			return nil, &AbortError{SucceededCount: i, ParticipantID: p.ID, Cause: err}
		}

		pl.log.Debug().Str("participant", p.ID).Str("entry", name).Msg("certificate archived")
	}

	if err := zw.Close(); err != nil {
		return nil, &ArchiveFinalizeError{SucceededCount: len(participants), Err: err}
	}

	result := &Result{
		ArchiveName:    fmt.Sprintf("Certificates_%d.zip", time.Now().UnixMilli()),
		Data:           buf.Bytes(),
		SucceededCount: len(participants),
	}
	pl.log.Info().Int("count", result.SucceededCount).Str("archive", result.ArchiveName).Msg("batch complete")
	return result, nil
}

// SanitizeName normalizes a participant name for archive entries: every
// non-alphanumeric character becomes "_" and the result is lowercased.
func SanitizeName(name string) string {
	return strings.ToLower(nonAlnumRegex.ReplaceAllString(name, "_"))
}
