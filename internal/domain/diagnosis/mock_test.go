package diagnosis

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/SamuelFortes/plataforma-virtual/internal/platform/auth"
	"github.com/SamuelFortes/plataforma-virtual/internal/platform/blobstore"
)

// -- Mock Repository --

// mockRepo keeps copies of every row so callers only see their changes after
// an explicit write, the way a real store behaves.
type mockRepo struct {
	nextID      int64
	clock       time.Time
	ubs         map[int64]*UBS
	catalog     []CatalogService
	links       map[int64][]int64
	indicators  []Indicator
	groups      []ProfessionalGroup
	territory   map[int64]*TerritoryProfile
	needs       map[int64]*Needs
	attachments []Attachment

	failCreateAttachment error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		clock:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		ubs:       make(map[int64]*UBS),
		links:     make(map[int64][]int64),
		territory: make(map[int64]*TerritoryProfile),
		needs:     make(map[int64]*Needs),
	}
}

func (m *mockRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *mockRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *mockRepo) CreateUBS(_ context.Context, u *UBS) error {
	u.ID = m.id()
	u.CreatedAt = m.tick()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.ubs[u.ID] = &cp
	return nil
}

func (m *mockRepo) GetUBS(_ context.Context, tenantID, id int64, _ bool) (*UBS, error) {
	u, ok := m.ubs[id]
	if !ok || u.TenantID != tenantID || u.IsDeleted {
		return nil, ErrUBSNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockRepo) ListUBS(_ context.Context, tenantID int64, f UBSFilter) ([]*UBS, int, error) {
	var all []*UBS
	for _, u := range m.ubs {
		if u.TenantID != tenantID || u.IsDeleted {
			continue
		}
		if f.Status != "" && u.Status != f.Status {
			continue
		}
		cp := *u
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < total {
		end = f.Offset + f.Limit
	}
	return all[f.Offset:end], total, nil
}

func (m *mockRepo) UpdateUBS(_ context.Context, u *UBS) error {
	if _, ok := m.ubs[u.ID]; !ok {
		return ErrUBSNotFound
	}
	u.UpdatedAt = m.tick()
	cp := *u
	m.ubs[u.ID] = &cp
	return nil
}

func (m *mockRepo) MarkSubmitted(_ context.Context, id int64, at time.Time, by int64) error {
	u, ok := m.ubs[id]
	if !ok {
		return ErrUBSNotFound
	}
	u.Status = StatusSubmitted
	u.SubmittedAt = &at
	u.SubmittedBy = &by
	u.UpdatedAt = at
	return nil
}

func (m *mockRepo) SoftDeleteUBS(_ context.Context, id int64) error {
	u, ok := m.ubs[id]
	if !ok {
		return ErrUBSNotFound
	}
	u.IsDeleted = true
	return nil
}

func (m *mockRepo) PurgeUBS(_ context.Context, id int64) error {
	if _, ok := m.ubs[id]; !ok {
		return ErrUBSNotFound
	}
	delete(m.ubs, id)
	delete(m.links, id)
	delete(m.territory, id)
	delete(m.needs, id)
	var atts []Attachment
	for _, a := range m.attachments {
		if a.UBSID != id {
			atts = append(atts, a)
		}
	}
	m.attachments = atts
	return nil
}

func (m *mockRepo) ListCatalog(_ context.Context) ([]CatalogService, error) {
	out := make([]CatalogService, len(m.catalog))
	copy(out, m.catalog)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockRepo) FindServices(_ context.Context, ids []int64) ([]CatalogService, error) {
	var out []CatalogService
	for _, svc := range m.catalog {
		for _, id := range ids {
			if svc.ID == id {
				out = append(out, svc)
			}
		}
	}
	return out, nil
}

func (m *mockRepo) CountCatalog(_ context.Context) (int, error) { return len(m.catalog), nil }

func (m *mockRepo) InsertCatalog(_ context.Context, names []string) (int, error) {
	for _, n := range names {
		m.catalog = append(m.catalog, CatalogService{ID: m.id(), Name: n})
	}
	return len(names), nil
}

func (m *mockRepo) ListUBSServices(_ context.Context, ubsID int64) ([]CatalogService, error) {
	out := []CatalogService{}
	for _, id := range m.links[ubsID] {
		for _, svc := range m.catalog {
			if svc.ID == id {
				out = append(out, svc)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockRepo) ReplaceUBSServices(_ context.Context, ubsID int64, serviceIDs []int64) error {
	m.links[ubsID] = append([]int64(nil), serviceIDs...)
	return nil
}

func (m *mockRepo) CreateIndicator(_ context.Context, ind *Indicator) error {
	ind.ID = m.id()
	ind.CreatedAt = m.tick()
	ind.UpdatedAt = ind.CreatedAt
	m.indicators = append(m.indicators, *ind)
	return nil
}

func (m *mockRepo) ListIndicators(_ context.Context, ubsID int64, f IndicatorFilter) ([]Indicator, error) {
	out := []Indicator{}
	for i := len(m.indicators) - 1; i >= 0; i-- {
		ind := m.indicators[i]
		if ind.UBSID != ubsID {
			continue
		}
		if f.TipoDado != "" && ind.TipoDado != f.TipoDado {
			continue
		}
		if f.PeriodoReferencia != "" && ind.PeriodoReferencia != f.PeriodoReferencia {
			continue
		}
		out = append(out, ind)
	}
	return out, nil
}

func (m *mockRepo) GetIndicator(ctx context.Context, tenantID, id int64, forUpdate bool) (*Indicator, error) {
	for _, ind := range m.indicators {
		if ind.ID != id {
			continue
		}
		if _, err := m.GetUBS(ctx, tenantID, ind.UBSID, forUpdate); err != nil {
			return nil, ErrIndicatorNotFound
		}
		cp := ind
		return &cp, nil
	}
	return nil, ErrIndicatorNotFound
}

func (m *mockRepo) UpdateIndicator(_ context.Context, ind *Indicator) error {
	for i := range m.indicators {
		if m.indicators[i].ID == ind.ID {
			ind.UpdatedAt = m.tick()
			m.indicators[i] = *ind
			return nil
		}
	}
	return ErrIndicatorNotFound
}

func (m *mockRepo) CreateProfessionalGroup(_ context.Context, g *ProfessionalGroup) error {
	g.ID = m.id()
	g.CreatedAt = m.tick()
	g.UpdatedAt = g.CreatedAt
	m.groups = append(m.groups, *g)
	return nil
}

func (m *mockRepo) ListProfessionalGroups(_ context.Context, ubsID int64) ([]ProfessionalGroup, error) {
	out := []ProfessionalGroup{}
	for _, g := range m.groups {
		if g.UBSID == ubsID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *mockRepo) GetProfessionalGroup(ctx context.Context, tenantID, id int64, forUpdate bool) (*ProfessionalGroup, error) {
	for _, g := range m.groups {
		if g.ID != id {
			continue
		}
		if _, err := m.GetUBS(ctx, tenantID, g.UBSID, forUpdate); err != nil {
			return nil, ErrProfessionalNotFound
		}
		cp := g
		return &cp, nil
	}
	return nil, ErrProfessionalNotFound
}

func (m *mockRepo) UpdateProfessionalGroup(_ context.Context, g *ProfessionalGroup) error {
	for i := range m.groups {
		if m.groups[i].ID == g.ID {
			g.UpdatedAt = m.tick()
			m.groups[i] = *g
			return nil
		}
	}
	return ErrProfessionalNotFound
}

func (m *mockRepo) GetTerritory(_ context.Context, ubsID int64) (*TerritoryProfile, error) {
	t, ok := m.territory[ubsID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *mockRepo) CreateTerritory(_ context.Context, t *TerritoryProfile) error {
	if _, ok := m.territory[t.UBSID]; ok {
		return errors.New("duplicate territory profile")
	}
	t.ID = m.id()
	t.CreatedAt = m.tick()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	m.territory[t.UBSID] = &cp
	return nil
}

func (m *mockRepo) UpdateTerritory(_ context.Context, t *TerritoryProfile) error {
	t.UpdatedAt = m.tick()
	cp := *t
	m.territory[t.UBSID] = &cp
	return nil
}

func (m *mockRepo) GetNeeds(_ context.Context, ubsID int64) (*Needs, error) {
	n, ok := m.needs[ubsID]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (m *mockRepo) CreateNeeds(_ context.Context, n *Needs) error {
	if _, ok := m.needs[n.UBSID]; ok {
		return errors.New("duplicate needs record")
	}
	n.ID = m.id()
	n.CreatedAt = m.tick()
	n.UpdatedAt = n.CreatedAt
	cp := *n
	m.needs[n.UBSID] = &cp
	return nil
}

func (m *mockRepo) UpdateNeeds(_ context.Context, n *Needs) error {
	n.UpdatedAt = m.tick()
	cp := *n
	m.needs[n.UBSID] = &cp
	return nil
}

func (m *mockRepo) CreateAttachment(_ context.Context, a *Attachment) error {
	if m.failCreateAttachment != nil {
		return m.failCreateAttachment
	}
	a.ID = m.id()
	a.CreatedAt = m.tick()
	m.attachments = append(m.attachments, *a)
	return nil
}

func (m *mockRepo) ListAttachments(_ context.Context, ubsID int64) ([]Attachment, error) {
	out := []Attachment{}
	for _, a := range m.attachments {
		if a.UBSID == ubsID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockRepo) GetAttachment(_ context.Context, ubsID, id int64) (*Attachment, error) {
	for _, a := range m.attachments {
		if a.ID == id && a.UBSID == ubsID {
			cp := a
			return &cp, nil
		}
	}
	return nil, ErrAttachmentNotFound
}

func (m *mockRepo) DeleteAttachment(_ context.Context, ubsID, id int64) error {
	for i, a := range m.attachments {
		if a.ID == id && a.UBSID == ubsID {
			m.attachments = append(m.attachments[:i], m.attachments[i+1:]...)
			return nil
		}
	}
	return ErrAttachmentNotFound
}

// -- Test fixtures --

type noopTx struct{}

func (noopTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

var (
	alice = auth.Principal{ID: 1, Name: "Alice", Email: "alice@example.com", Active: true}
	bob   = auth.Principal{ID: 2, Name: "Bob", Email: "bob@example.com", Active: true}
)

var fixedNow = time.Date(2024, 6, 10, 14, 30, 0, 0, time.UTC)

func newTestService() (*Service, *mockRepo, *blobstore.MemoryStore) {
	repo := newMockRepo()
	blobs := blobstore.NewMemoryStore()
	svc := NewService(repo, noopTx{})
	svc.SetBlobStore(blobs)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, blobs
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func datePtr(y int, m time.Month, d int) *Date {
	v := NewDate(y, m, d)
	return &v
}

// seedSubmittable creates the "Posto Central" UBS with territory and needs
// and a reform date that is valid unless the caller changes it.
func seedSubmittable(t *testing.T, svc *Service, p auth.Principal) *UBS {
	t.Helper()
	ctx := context.Background()
	u, err := svc.CreateUBS(ctx, p, UBSInput{
		NomeUBS:           "Posto Central",
		CNES:              "1234567",
		AreaAtuacao:       "Centro",
		DataInauguracao:   datePtr(2020, 1, 1),
		DataUltimaReforma: datePtr(2021, 1, 1),
	})
	if err != nil {
		t.Fatalf("create ubs: %v", err)
	}
	if _, err := svc.UpsertTerritory(ctx, p, u.ID, TerritoryPatch{DescricaoTerritorio: Some("Área urbana central")}); err != nil {
		t.Fatalf("upsert territory: %v", err)
	}
	if _, err := svc.UpsertNeeds(ctx, p, u.ID, NeedsPatch{ProblemasIdentificados: Some("Falta de médicos")}); err != nil {
		t.Fatalf("upsert needs: %v", err)
	}
	return u
}

func floatPtr(f float64) *float64 { return &f }

func bytesReader(s string) *strings.Reader { return strings.NewReader(s) }
