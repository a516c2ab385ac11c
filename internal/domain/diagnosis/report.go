package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/SamuelFortes/plataforma-virtual/internal/platform/auth"
)

var ErrUnsupportedFormat = errors.New("unsupported report format")

// ReportRenderer turns a report input into a document.
type ReportRenderer interface {
	Format() string
	ContentType() string
	Render(in *ReportInput) ([]byte, error)
}

// ReportAttachment carries the image bytes for embeddable attachments. Data
// is nil for other content types or when the blob could not be read.
type ReportAttachment struct {
	Attachment
	Data []byte
}

type ReportInput struct {
	Diagnosis    *FullDiagnosis
	Attachments  []ReportAttachment
	Municipality string
	GeneratedAt  time.Time
}

// AttachmentsFor returns the attachments filed under section, in upload order.
func (in *ReportInput) AttachmentsFor(section string) []ReportAttachment {
	want := NormalizeSection(section)
	var out []ReportAttachment
	for _, a := range in.Attachments {
		if NormalizeSection(a.Section) == want {
			out = append(out, a)
		}
	}
	return out
}

type Report struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SafeFilename keeps letters, digits and "-_. ", replaces everything else
// with '_' and turns spaces into underscores.
func SafeFilename(value, fallback string) string {
	if value == "" {
		return fallback
	}
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("-_. ", r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	name := strings.TrimSpace(b.String())
	name = strings.ReplaceAll(name, "  ", " ")
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" {
		return fallback
	}
	return name
}

// ReportFilename names the export after nome_relatorio, falling back to
// nome_ubs.
func ReportFilename(u *UBS) string {
	base := ""
	if u.NomeRelatorio != nil {
		base = strings.TrimSpace(*u.NomeRelatorio)
	}
	if base == "" {
		base = u.NomeUBS
	}
	if base == "" {
		base = "UBS"
	}
	return SafeFilename(base, "relatorio_situacional")
}

// ExportReport renders the diagnosis read model in the requested format.
func (s *Service) ExportReport(ctx context.Context, p auth.Principal, ubsID int64, format string) (*Report, error) {
	renderer, ok := s.renderers[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	diag, err := s.GetDiagnosis(ctx, p, ubsID)
	if err != nil {
		return nil, err
	}
	attachments, err := s.repo.ListAttachments(ctx, ubsID)
	if err != nil {
		return nil, err
	}

	in := &ReportInput{
		Diagnosis:    diag,
		Attachments:  s.loadReportAttachments(ctx, attachments),
		Municipality: s.municipality,
		GeneratedAt:  s.now(),
	}
	data, err := renderer.Render(in)
	if err != nil {
		return nil, fmt.Errorf("render %s report: %w", renderer.Format(), err)
	}
	s.metrics.observeReport(renderer.Format())

	return &Report{
		Filename:    ReportFilename(diag.UBS) + "." + renderer.Format(),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

func (s *Service) loadReportAttachments(ctx context.Context, attachments []Attachment) []ReportAttachment {
	out := make([]ReportAttachment, 0, len(attachments))
	for _, a := range attachments {
		ra := ReportAttachment{Attachment: a}
		if a.IsImage() && s.blobs != nil {
			data, err := s.readBlob(ctx, a.StoragePath)
			if err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Int64("attachment_id", a.ID).Msg("attachment image not embedded")
			} else {
				ra.Data = data
			}
		}
		out = append(out, ra)
	}
	return out
}

func (s *Service) readBlob(ctx context.Context, key string) ([]byte, error) {
	rc, _, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, s.maxUploadBytes))
}
