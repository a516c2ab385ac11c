package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/SamuelFortes/plataforma-virtual/internal/platform/auth"
	"github.com/SamuelFortes/plataforma-virtual/internal/platform/blobstore"
	"github.com/SamuelFortes/plataforma-virtual/internal/platform/db"
)

const defaultMaxUploadBytes = 10 << 20

type Service struct {
	repo           Repository
	tx             db.TxRunner
	blobs          blobstore.Store
	metrics        *Metrics
	renderers      map[string]ReportRenderer
	municipality   string
	maxUploadBytes int64
	now            func() time.Time
}

func NewService(repo Repository, tx db.TxRunner) *Service {
	return &Service{
		repo:           repo,
		tx:             tx,
		renderers:      make(map[string]ReportRenderer),
		municipality:   "Município",
		maxUploadBytes: defaultMaxUploadBytes,
		now:            time.Now,
	}
}

// SetBlobStore attaches the store used for attachment bytes.
func (s *Service) SetBlobStore(store blobstore.Store) { s.blobs = store }

func (s *Service) SetMetrics(m *Metrics) { s.metrics = m }

func (s *Service) SetMunicipality(name string) {
	if name != "" {
		s.municipality = name
	}
}

func (s *Service) SetMaxUploadBytes(n int64) {
	if n > 0 {
		s.maxUploadBytes = n
	}
}

// RegisterRenderer makes a report format available to ExportReport.
func (s *Service) RegisterRenderer(r ReportRenderer) { s.renderers[r.Format()] = r }

// fetchUBS is the tenant-scoped accessor every operation goes through. It
// must be called inside the transaction that acts on the result.
func (s *Service) fetchUBS(ctx context.Context, p auth.Principal, id int64, forUpdate bool) (*UBS, error) {
	return s.repo.GetUBS(ctx, p.ID, id, forUpdate)
}

// -- UBS --

func (s *Service) CreateUBS(ctx context.Context, p auth.Principal, in UBSInput) (*UBS, error) {
	u := in.newUBS(p.ID)
	if err := s.repo.CreateUBS(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) ListUBS(ctx context.Context, p auth.Principal, f UBSFilter) ([]*UBS, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, newValidationError("status", CodeInvalid, "Status inválido")
	}
	items, total, err := s.repo.ListUBS(ctx, p.ID, f)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []*UBS{}
	}
	return items, total, nil
}

func (s *Service) GetUBS(ctx context.Context, p auth.Principal, id int64) (*UBS, error) {
	return s.fetchUBS(ctx, p, id, false)
}

func (s *Service) UpdateUBS(ctx context.Context, p auth.Principal, id int64, patch UBSPatch) (*UBS, error) {
	var out *UBS
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		u, err := s.fetchUBS(ctx, p, id, true)
		if err != nil {
			return err
		}
		patch.Apply(u)
		if err := s.repo.UpdateUBS(ctx, u); err != nil {
			return err
		}
		out = u
		return nil
	})
	return out, err
}

// DeleteUBS flips the soft-delete flag. Children stay in storage but can no
// longer be reached.
func (s *Service) DeleteUBS(ctx context.Context, p auth.Principal, id int64) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		u, err := s.fetchUBS(ctx, p, id, true)
		if err != nil {
			return err
		}
		return s.repo.SoftDeleteUBS(ctx, u.ID)
	})
}

// PurgeUBS hard-deletes a UBS and, through the foreign keys, all of its
// children. It ignores tenant and soft-delete state and is only reachable
// from the command line. Attachment blobs are removed after the commit.
func (s *Service) PurgeUBS(ctx context.Context, id int64) (int, error) {
	var attachments []Attachment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		attachments, err = s.repo.ListAttachments(ctx, id)
		if err != nil {
			return err
		}
		return s.repo.PurgeUBS(ctx, id)
	})
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, a := range attachments {
		if s.removeBlob(ctx, a.StoragePath) {
			removed++
		}
	}
	return removed, nil
}

// -- Services --

func (s *Service) GetServices(ctx context.Context, p auth.Principal, ubsID int64) (*ServicesView, error) {
	u, err := s.fetchUBS(ctx, p, ubsID, false)
	if err != nil {
		return nil, err
	}
	services, err := s.repo.ListUBSServices(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &ServicesView{Services: services, OutrosServicos: u.OutrosServicos}, nil
}

// ReplaceServices swaps the full service set of a UBS. Unknown ids reject the
// call before any link is touched.
func (s *Service) ReplaceServices(ctx context.Context, p auth.Principal, ubsID int64, in ServicesInput) (*ServicesView, error) {
	ids := dedupeIDs(in.ServiceIDs)

	var out *ServicesView
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		u, err := s.fetchUBS(ctx, p, ubsID, true)
		if err != nil {
			return err
		}

		if len(ids) > 0 {
			found, err := s.repo.FindServices(ctx, ids)
			if err != nil {
				return err
			}
			if missing := missingIDs(ids, found); len(missing) > 0 {
				return newValidationError("service_ids", CodeInvalidRefs,
					"Serviços não encontrados para ids: "+formatIDs(missing))
			}
		}

		if err := s.repo.ReplaceUBSServices(ctx, u.ID, ids); err != nil {
			return err
		}
		u.OutrosServicos = in.OutrosServicos
		if err := s.repo.UpdateUBS(ctx, u); err != nil {
			return err
		}

		services, err := s.repo.ListUBSServices(ctx, u.ID)
		if err != nil {
			return err
		}
		out = &ServicesView{Services: services, OutrosServicos: u.OutrosServicos}
		return nil
	})
	return out, err
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func missingIDs(wanted []int64, found []CatalogService) []int64 {
	have := make(map[int64]bool, len(found))
	for _, svc := range found {
		have[svc.ID] = true
	}
	var missing []int64
	for _, id := range wanted {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

// -- Indicators --

// ListIndicators returns the full history, newest first.
func (s *Service) ListIndicators(ctx context.Context, p auth.Principal, ubsID int64, f IndicatorFilter) ([]Indicator, error) {
	u, err := s.fetchUBS(ctx, p, ubsID, false)
	if err != nil {
		return nil, err
	}
	if tipo, ok := NormalizeTipoDado(f.TipoDado); ok {
		f.TipoDado = tipo
	}
	return s.repo.ListIndicators(ctx, u.ID, f)
}

// CreateIndicator always appends; earlier values with the same name are kept
// as history.
func (s *Service) CreateIndicator(ctx context.Context, p auth.Principal, ubsID int64, in IndicatorInput) (*Indicator, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var out *Indicator
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		u, err := s.fetchUBS(ctx, p, ubsID, true)
		if err != nil {
			return err
		}
		ind := &Indicator{
			UBSID:             u.ID,
			NomeIndicador:     in.NomeIndicador,
			TipoDado:          in.TipoDado,
			GrauPrecisaoValor: in.GrauPrecisaoValor,
			Valor:             *in.Valor,
			PeriodoReferencia: in.PeriodoReferencia,
			Observacoes:       in.Observacoes,
			CreatedBy:         &p.ID,
		}
		if err := s.repo.CreateIndicator(ctx, ind); err != nil {
			return err
		}
		out = ind
		return nil
	})
	return out, err
}

func (s *Service) GetIndicator(ctx context.Context, p auth.Principal, id int64) (*Indicator, error) {
	return s.repo.GetIndicator(ctx, p.ID, id, false)
}

func (s *Service) UpdateIndicator(ctx context.Context, p auth.Principal, id int64, patch IndicatorPatch) (*Indicator, error) {
	var out *Indicator
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		ind, err := s.repo.GetIndicator(ctx, p.ID, id, true)
		if err != nil {
			return err
		}
		if err := patch.Apply(ind); err != nil {
			return err
		}
		ind.UpdatedBy = &p.ID
		if err := s.repo.UpdateIndicator(ctx, ind); err != nil {
			return err
		}
		out = ind
		return nil
	})
	return out, err
}

// -- Professional groups --

// ListProfessionalGroups returns the groups ordered by cargo_funcao.
func (s *Service) ListProfessionalGroups(ctx context.Context, p auth.Principal, ubsID int64) ([]ProfessionalGroup, error) {
	u, err := s.fetchUBS(ctx, p, ubsID, false)
	if err != nil {
		return nil, err
	}
	groups, err := s.repo.ListProfessionalGroups(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].CargoFuncao < groups[j].CargoFuncao })
	return groups, nil
}

func (s *Service) CreateProfessionalGroup(ctx context.Context, p auth.Principal, ubsID int64, in ProfessionalGroupInput) (*ProfessionalGroup, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var out *ProfessionalGroup
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		u, err := s.fetchUBS(ctx, p, ubsID, true)
		if err != nil {
			return err
		}
		g := &ProfessionalGroup{
			UBSID:       u.ID,
			CargoFuncao: in.CargoFuncao,
			Quantidade:  *in.Quantidade,
			TipoVinculo: in.TipoVinculo,
			Observacoes: in.Observacoes,
			CreatedBy:   &p.ID,
		}
		if err := s.repo.CreateProfessionalGroup(ctx, g); err != nil {
			return err
		}
		out = g
		return nil
	})
	return out, err
}

func (s *Service) GetProfessionalGroup(ctx context.Context, p auth.Principal, id int64) (*ProfessionalGroup, error) {
	return s.repo.GetProfessionalGroup(ctx, p.ID, id, false)
}

func (s *Service) UpdateProfessionalGroup(ctx context.Context, p auth.Principal, id int64, patch ProfessionalGroupPatch) (*ProfessionalGroup, error) {
	var out *ProfessionalGroup
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		g, err := s.repo.GetProfessionalGroup(ctx, p.ID, id, true)
		if err != nil {
			return err
		}
		if err := patch.Apply(g); err != nil {
			return err
		}
		g.UpdatedBy = &p.ID
		if err := s.repo.UpdateProfessionalGroup(ctx, g); err != nil {
			return err
		}
		out = g
		return nil
	})
	return out, err
}

// -- Territory profile and needs --

func (s *Service) GetTerritory(ctx context.Context, p auth.Principal, ubsID int64) (*TerritoryProfile, error) {
	u, err := s.fetchUBS(ctx, p, ubsID, false)
	if err != nil {
		return nil, err
	}
	t, err := s.repo.GetTerritory(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTerritoryNotFound
	}
	return t, nil
}

// UpsertTerritory updates the existing profile with the fields present in
// patch, or creates it when descricao_territorio is given.
func (s *Service) UpsertTerritory(ctx context.Context, p auth.Principal, ubsID int64, patch TerritoryPatch) (*TerritoryProfile, error) {
	var out *TerritoryProfile
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		u, err := s.fetchUBS(ctx, p, ubsID, true)
		if err != nil {
			return err
		}
		existing, err := s.repo.GetTerritory(ctx, u.ID)
		if err != nil {
			return err
		}

		if existing != nil {
			if err := patch.Apply(existing); err != nil {
				return err
			}
			existing.UpdatedBy = &p.ID
			if err := s.repo.UpdateTerritory(ctx, existing); err != nil {
				return err
			}
			out = existing
			return nil
		}

		t, err := patch.newProfile(u.ID, p.ID)
		if err != nil {
			return err
		}
		if err := s.repo.CreateTerritory(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

func (s *Service) GetNeeds(ctx context.Context, p auth.Principal, ubsID int64) (*Needs, error) {
	u, err := s.fetchUBS(ctx, p, ubsID, false)
	if err != nil {
		return nil, err
	}
	n, err := s.repo.GetNeeds(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, ErrNeedsNotFound
	}
	return n, nil
}

func (s *Service) UpsertNeeds(ctx context.Context, p auth.Principal, ubsID int64, patch NeedsPatch) (*Needs, error) {
	var out *Needs
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		u, err := s.fetchUBS(ctx, p, ubsID, true)
		if err != nil {
			return err
		}
		existing, err := s.repo.GetNeeds(ctx, u.ID)
		if err != nil {
			return err
		}

		if existing != nil {
			if err := patch.Apply(existing); err != nil {
				return err
			}
			existing.UpdatedBy = &p.ID
			if err := s.repo.UpdateNeeds(ctx, existing); err != nil {
				return err
			}
			out = existing
			return nil
		}

		n, err := patch.newNeeds(u.ID, p.ID)
		if err != nil {
			return err
		}
		if err := s.repo.CreateNeeds(ctx, n); err != nil {
			return err
		}
		out = n
		return nil
	})
	return out, err
}

// -- Submission and read model --

func (s *Service) loadAggregate(ctx context.Context, u *UBS) (*Aggregate, error) {
	services, err := s.repo.ListUBSServices(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	indicators, err := s.repo.ListIndicators(ctx, u.ID, IndicatorFilter{})
	if err != nil {
		return nil, fmt.Errorf("load indicators: %w", err)
	}
	groups, err := s.repo.ListProfessionalGroups(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("load professional groups: %w", err)
	}
	territory, err := s.repo.GetTerritory(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	needs, err := s.repo.GetNeeds(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &Aggregate{
		UBS:                u,
		Services:           services,
		Indicators:         indicators,
		ProfessionalGroups: groups,
		Territory:          territory,
		Needs:              needs,
	}, nil
}

func (s *Service) GetDiagnosis(ctx context.Context, p auth.Principal, ubsID int64) (*FullDiagnosis, error) {
	var out *FullDiagnosis
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		u, err := s.fetchUBS(ctx, p, ubsID, false)
		if err != nil {
			return err
		}
		agg, err := s.loadAggregate(ctx, u)
		if err != nil {
			return err
		}
		out = BuildFullDiagnosis(agg)
		return nil
	})
	return out, err
}

// Submit validates the aggregate and moves it to SUBMITTED. A failed
// validation returns a *SubmissionValidationError with every problem found
// and leaves the row untouched. Submitting an already submitted UBS
// re-validates it and stamps it again.
func (s *Service) Submit(ctx context.Context, p auth.Principal, ubsID int64) (*FullDiagnosis, error) {
	var out *FullDiagnosis
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		u, err := s.fetchUBS(ctx, p, ubsID, true)
		if err != nil {
			return err
		}
		agg, err := s.loadAggregate(ctx, u)
		if err != nil {
			return err
		}
		if errs := Validate(agg); len(errs) > 0 {
			return &SubmissionValidationError{Errors: errs}
		}

		at := s.now().UTC().Truncate(time.Microsecond)
		if err := s.repo.MarkSubmitted(ctx, u.ID, at, p.ID); err != nil {
			return err
		}

		// Re-read so the response matches what a later GET returns.
		if agg.UBS, err = s.fetchUBS(ctx, p, ubsID, false); err != nil {
			return err
		}
		out = BuildFullDiagnosis(agg)
		return nil
	})

	var sve *SubmissionValidationError
	switch {
	case err == nil:
		s.metrics.observeSubmission(outcomeAccepted)
		zerolog.Ctx(ctx).Info().Int64("ubs_id", ubsID).Int64("submitted_by", p.ID).Msg("ubs submitted")
	case errors.As(err, &sve):
		s.metrics.observeSubmission(outcomeRejected)
	}
	return out, err
}
