package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/SamuelFortes/plataforma-virtual/internal/platform/auth"
	"github.com/SamuelFortes/plataforma-virtual/internal/platform/blobstore"
)

// Report sections an attachment can be filed under.
const (
	SectionGeral           = "GERAL"
	SectionTerritorio      = "TERRITORIO"
	SectionPotencialidades = "POTENCIALIDADES"
	SectionRiscos          = "RISCOS"
	SectionProblemas       = "PROBLEMAS"
	SectionNecEquipInsumos = "NEC_EQUIP_INSUMOS"
	SectionNecACS          = "NEC_ACS"
	SectionNecInfra        = "NEC_INFRA"
)

var knownSections = map[string]bool{
	SectionGeral: true, SectionTerritorio: true, SectionPotencialidades: true, SectionRiscos: true,
	SectionProblemas: true, SectionNecEquipInsumos: true, SectionNecACS: true, SectionNecInfra: true,
}

// NormalizeSection upper-cases s; anything unknown or empty files the
// attachment under PROBLEMAS.
func NormalizeSection(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if knownSections[s] {
		return s
	}
	return SectionProblemas
}

var ErrStorageUnavailable = errors.New("attachment storage is not configured")

// Upload is one multipart file plus its form metadata.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Section     string
	Description string
	Body        io.Reader
}

func attachmentKey(ubsID int64, filename string) string {
	return fmt.Sprintf("ubs/%d/%s-%s", ubsID, uuid.NewString(), blobstore.SanitizeFilename(filename, "arquivo"))
}

func (s *Service) tooLarge() error {
	return newValidationError("file", CodeTooLarge, fmt.Sprintf("Arquivo excede o limite de %d bytes", s.maxUploadBytes))
}

// UploadAttachment stores the bytes first and then records the row. If the
// row cannot be written the blob is removed again.
func (s *Service) UploadAttachment(ctx context.Context, p auth.Principal, ubsID int64, up Upload) (*Attachment, error) {
	if s.blobs == nil {
		return nil, ErrStorageUnavailable
	}
	if up.Size > s.maxUploadBytes {
		return nil, s.tooLarge()
	}
	if strings.TrimSpace(up.Filename) == "" {
		return nil, requiredField("file")
	}
	if _, err := s.fetchUBS(ctx, p, ubsID, false); err != nil {
		return nil, err
	}

	contentType := strings.TrimSpace(up.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := attachmentKey(ubsID, up.Filename)
	info, err := s.blobs.Put(ctx, key, io.LimitReader(up.Body, s.maxUploadBytes+1), contentType)
	if err != nil {
		return nil, fmt.Errorf("store attachment: %w", err)
	}
	if info.Size > s.maxUploadBytes {
		s.removeBlob(ctx, key)
		return nil, s.tooLarge()
	}

	a := &Attachment{
		UBSID:            ubsID,
		OriginalFilename: up.Filename,
		ContentType:      contentType,
		SizeBytes:        info.Size,
		StoragePath:      key,
		Section:          NormalizeSection(up.Section),
		CreatedBy:        &p.ID,
	}
	if d := strings.TrimSpace(up.Description); d != "" {
		a.Description = &d
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.fetchUBS(ctx, p, ubsID, true); err != nil {
			return err
		}
		return s.repo.CreateAttachment(ctx, a)
	})
	if err != nil {
		s.removeBlob(ctx, key)
		return nil, err
	}
	return a, nil
}

func (s *Service) ListAttachments(ctx context.Context, p auth.Principal, ubsID int64) ([]Attachment, error) {
	u, err := s.fetchUBS(ctx, p, ubsID, false)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAttachments(ctx, u.ID)
}

// OpenAttachment returns the row and a reader over its bytes. The caller
// closes the reader.
func (s *Service) OpenAttachment(ctx context.Context, p auth.Principal, ubsID, id int64) (*Attachment, io.ReadCloser, error) {
	if s.blobs == nil {
		return nil, nil, ErrStorageUnavailable
	}
	u, err := s.fetchUBS(ctx, p, ubsID, false)
	if err != nil {
		return nil, nil, err
	}
	a, err := s.repo.GetAttachment(ctx, u.ID, id)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.blobs.Get(ctx, a.StoragePath)
	if errors.Is(err, blobstore.ErrBlobNotFound) {
		return nil, nil, ErrAttachmentNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open attachment: %w", err)
	}
	return a, rc, nil
}

// DeleteAttachment removes the row, then the blob. A blob that cannot be
// removed is logged and left behind.
func (s *Service) DeleteAttachment(ctx context.Context, p auth.Principal, ubsID, id int64) error {
	var storagePath string
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		u, err := s.fetchUBS(ctx, p, ubsID, true)
		if err != nil {
			return err
		}
		a, err := s.repo.GetAttachment(ctx, u.ID, id)
		if err != nil {
			return err
		}
		storagePath = a.StoragePath
		return s.repo.DeleteAttachment(ctx, u.ID, id)
	})
	if err != nil {
		return err
	}
	s.removeBlob(ctx, storagePath)
	return nil
}

func (s *Service) removeBlob(ctx context.Context, key string) bool {
	if s.blobs == nil || key == "" {
		return false
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("failed to remove attachment blob")
		return false
	}
	return true
}
