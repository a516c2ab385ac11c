package diagnosis

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestCreateUBS_Defaults(t *testing.T) {
	svc, _, _ := newTestService()

	u, err := svc.CreateUBS(context.Background(), alice, UBSInput{NomeUBS: "UBS Norte", CNES: "7654321"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Status != StatusDraft {
		t.Errorf("expected DRAFT, got %s", u.Status)
	}
	if u.TenantID != alice.ID || u.OwnerUserID != alice.ID {
		t.Errorf("expected tenant and owner %d, got %d/%d", alice.ID, u.TenantID, u.OwnerUserID)
	}
	for name, v := range map[string]*int{
		"numero_habitantes_ativos":    u.NumeroHabitantesAtivos,
		"numero_microareas":           u.NumeroMicroareas,
		"numero_familias_cadastradas": u.NumeroFamiliasCadastradas,
		"numero_domicilios":           u.NumeroDomicilios,
	} {
		if v == nil || *v != 0 {
			t.Errorf("expected %s to default to 0, got %v", name, v)
		}
	}
	if u.SubmittedAt != nil {
		t.Error("expected no submission stamp on a new draft")
	}
}

func TestTenantIsolation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	u, _ := svc.CreateUBS(ctx, alice, UBSInput{NomeUBS: "UBS Sul"})
	ind, err := svc.CreateIndicator(ctx, alice, u.ID, IndicatorInput{
		NomeIndicador: "Cobertura vacinal", TipoDado: "TAXA", GrauPrecisaoValor: "UMA_CASA",
		Valor: floatPtr(92.5), PeriodoReferencia: "2024-T1",
	})
	if err != nil {
		t.Fatalf("create indicator: %v", err)
	}

	if _, err := svc.GetUBS(ctx, bob, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found for another tenant, got %v", err)
	}
	if _, err := svc.UpdateUBS(ctx, bob, u.ID, UBSPatch{NomeUBS: Some("Invadida")}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found on update, got %v", err)
	}
	if _, err := svc.GetIndicator(ctx, bob, ind.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected indicator hidden from another tenant, got %v", err)
	}
	if _, err := svc.ListIndicators(ctx, bob, u.ID, IndicatorFilter{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found listing another tenant's indicators, got %v", err)
	}

	items, total, err := svc.ListUBS(ctx, bob, UBSFilter{Limit: 20})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Errorf("expected empty listing for bob, got %d items", total)
	}
}

func TestDeleteUBS_HidesAggregate(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	u := seedSubmittable(t, svc, alice)

	if err := svc.DeleteUBS(ctx, alice, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetUBS(ctx, alice, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if _, err := svc.GetTerritory(ctx, alice, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected territory unreachable after delete, got %v", err)
	}
	if err := svc.DeleteUBS(ctx, alice, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected second delete to report not found, got %v", err)
	}
	if _, ok := repo.territory[u.ID]; !ok {
		t.Error("expected soft delete to leave children in storage")
	}
}

func TestPurgeUBS_RemovesBlobs(t *testing.T) {
	svc, repo, blobs := newTestService()
	ctx := context.Background()
	u := seedSubmittable(t, svc, alice)

	if _, err := svc.UploadAttachment(ctx, alice, u.ID, Upload{
		Filename: "mapa.png", ContentType: "image/png", Size: 4, Body: bytesReader("abcd"),
	}); err != nil {
		t.Fatalf("upload: %v", err)
	}

	removed, err := svc.PurgeUBS(ctx, u.ID)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 blob removed, got %d", removed)
	}
	if blobs.Len() != 0 {
		t.Errorf("expected empty blob store, got %d", blobs.Len())
	}
	if _, ok := repo.ubs[u.ID]; ok {
		t.Error("expected the row to be gone")
	}
}

func TestUpdateUBS_AppliesOnlySentFields(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	u, _ := svc.CreateUBS(ctx, alice, UBSInput{
		NomeUBS:           "UBS Leste",
		CNES:              "111",
		PeriodoReferencia: strPtr("2023"),
		ResponsavelNome:   strPtr("Maria"),
	})

	var patch UBSPatch
	if err := json.Unmarshal([]byte(`{"nome_ubs":"UBS Leste II","periodo_referencia":null}`), &patch); err != nil {
		t.Fatalf("unmarshal patch: %v", err)
	}
	updated, err := svc.UpdateUBS(ctx, alice, u.ID, patch)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.NomeUBS != "UBS Leste II" {
		t.Errorf("expected new name, got %s", updated.NomeUBS)
	}
	if updated.PeriodoReferencia != nil {
		t.Errorf("expected periodo_referencia cleared, got %v", *updated.PeriodoReferencia)
	}
	if updated.CNES != "111" {
		t.Errorf("expected cnes untouched, got %s", updated.CNES)
	}
	if updated.ResponsavelNome == nil || *updated.ResponsavelNome != "Maria" {
		t.Error("expected responsavel_nome untouched")
	}
	if updated.Status != StatusDraft || updated.TenantID != alice.ID {
		t.Error("expected status and tenant to be unchanged")
	}
}

func TestListUBS_InvalidStatus(t *testing.T) {
	svc, _, _ := newTestService()

	_, _, err := svc.ListUBS(context.Background(), alice, UBSFilter{Status: "ARCHIVED"})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "status" {
		t.Fatalf("expected status validation error, got %v", err)
	}
}

func TestSeedCatalog_Idempotent(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	n, err := svc.SeedCatalog(ctx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != len(DefaultCatalog) {
		t.Errorf("expected %d inserted, got %d", len(DefaultCatalog), n)
	}

	n, err = svc.SeedCatalog(ctx)
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected second seed to insert nothing, got %d", n)
	}
	if len(repo.catalog) != len(DefaultCatalog) {
		t.Errorf("expected %d catalog rows, got %d", len(DefaultCatalog), len(repo.catalog))
	}
}

func catalogID(t *testing.T, repo *mockRepo, name string) int64 {
	t.Helper()
	for _, s := range repo.catalog {
		if s.Name == name {
			return s.ID
		}
	}
	t.Fatalf("catalog entry %q not found", name)
	return 0
}

func TestReplaceServices_SortedAndIdempotent(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	svc.SeedCatalog(ctx)
	u, _ := svc.CreateUBS(ctx, alice, UBSInput{NomeUBS: "UBS Oeste"})

	vacina := catalogID(t, repo, "Sala de vacina")
	medico := catalogID(t, repo, "Atendimento médico")
	in := ServicesInput{ServiceIDs: []int64{vacina, medico, vacina}, OutrosServicos: strPtr("Farmácia popular")}

	first, err := svc.ReplaceServices(ctx, alice, u.ID, in)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	second, err := svc.ReplaceServices(ctx, alice, u.ID, in)
	if err != nil {
		t.Fatalf("second replace: %v", err)
	}

	if len(second.Services) != 2 {
		t.Fatalf("expected 2 services, got %d", len(second.Services))
	}
	if second.Services[0].Name != "Atendimento médico" || second.Services[1].Name != "Sala de vacina" {
		t.Errorf("expected services sorted by name, got %v", second.Services)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("expected replace to be idempotent")
	}
	if len(repo.links[u.ID]) != 2 {
		t.Errorf("expected 2 link rows, got %d", len(repo.links[u.ID]))
	}

	view, _ := svc.GetServices(ctx, alice, u.ID)
	if view.OutrosServicos == nil || *view.OutrosServicos != "Farmácia popular" {
		t.Error("expected outros_servicos to be stored on the UBS")
	}
}

func TestReplaceServices_UnknownIDLeavesLinks(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	svc.SeedCatalog(ctx)
	u, _ := svc.CreateUBS(ctx, alice, UBSInput{NomeUBS: "UBS Oeste"})

	vacina := catalogID(t, repo, "Sala de vacina")
	if _, err := svc.ReplaceServices(ctx, alice, u.ID, ServicesInput{ServiceIDs: []int64{vacina}}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	_, err := svc.ReplaceServices(ctx, alice, u.ID, ServicesInput{ServiceIDs: []int64{vacina, 9999}})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if ve.Message != "Serviços não encontrados para ids: [9999]" {
		t.Errorf("unexpected message: %s", ve.Message)
	}

	view, _ := svc.GetServices(ctx, alice, u.ID)
	if len(view.Services) != 1 || view.Services[0].ID != vacina {
		t.Errorf("expected prior link set to survive, got %v", view.Services)
	}
}

func TestCreateIndicator_NormalizesClassifiers(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	u, _ := svc.CreateUBS(ctx, alice, UBSInput{NomeUBS: "UBS Centro"})

	ind, err := svc.CreateIndicator(ctx, alice, u.ID, IndicatorInput{
		NomeIndicador: "Cobertura", TipoDado: "percentual", GrauPrecisaoValor: "duas-casas",
		Valor: floatPtr(80), PeriodoReferencia: "2024",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ind.TipoDado != TipoDadoTaxa || ind.GrauPrecisaoValor != PrecisaoDuasCasas {
		t.Errorf("expected canonical classifiers, got %s/%s", ind.TipoDado, ind.GrauPrecisaoValor)
	}
	if ind.CreatedBy == nil || *ind.CreatedBy != alice.ID {
		t.Error("expected created_by to be the caller")
	}

	_, err = svc.CreateIndicator(ctx, alice, u.ID, IndicatorInput{
		NomeIndicador: "Cobertura", TipoDado: "MEDIA", GrauPrecisaoValor: "UNIDADE",
		Valor: floatPtr(1), PeriodoReferencia: "2024",
	})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "tipo_dado" {
		t.Errorf("expected tipo_dado validation error, got %v", err)
	}
}

func TestCreateIndicator_KeepsHistory(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	u, _ := svc.CreateUBS(ctx, alice, UBSInput{NomeUBS: "UBS Centro"})

	for _, v := range []float64{10, 20, 30} {
		if _, err := svc.CreateIndicator(ctx, alice, u.ID, IndicatorInput{
			NomeIndicador: "Consultas", TipoDado: "ABSOLUTO", GrauPrecisaoValor: "UNIDADE",
			Valor: floatPtr(v), PeriodoReferencia: "2024",
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if len(repo.indicators) != 3 {
		t.Errorf("expected 3 stored rows, got %d", len(repo.indicators))
	}

	d, err := svc.GetDiagnosis(ctx, alice, u.ID)
	if err != nil {
		t.Fatalf("diagnosis: %v", err)
	}
	if len(d.IndicatorsLatest) != 1 || d.IndicatorsLatest[0].Valor != 30 {
		t.Errorf("expected only the latest value, got %v", d.IndicatorsLatest)
	}
}

func TestUpdateIndicator_RejectsNullValue(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	u, _ := svc.CreateUBS(ctx, alice, UBSInput{NomeUBS: "UBS Centro"})
	ind, _ := svc.CreateIndicator(ctx, alice, u.ID, IndicatorInput{
		NomeIndicador: "Consultas", TipoDado: "ABSOLUTO", GrauPrecisaoValor: "UNIDADE",
		Valor: floatPtr(5), PeriodoReferencia: "2024",
	})

	_, err := svc.UpdateIndicator(ctx, alice, ind.ID, IndicatorPatch{Valor: Null[float64]()})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Code != CodeRequired {
		t.Fatalf("expected required error, got %v", err)
	}

	updated, err := svc.UpdateIndicator(ctx, alice, ind.ID, IndicatorPatch{Valor: Some(7.0), TipoDado: Some("taxa1000")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Valor != 7 || updated.TipoDado != TipoDadoTaxa1000 {
		t.Errorf("unexpected indicator after update: %+v", updated)
	}
	if updated.UpdatedBy == nil || *updated.UpdatedBy != alice.ID {
		t.Error("expected updated_by to be the caller")
	}
}

func TestProfessionalGroups_SortedByCargo(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	u, _ := svc.CreateUBS(ctx, alice, UBSInput{NomeUBS: "UBS Centro"})

	for _, cargo := range []string{"Médico", "Enfermeiro", "Agente Comunitário"} {
		if _, err := svc.CreateProfessionalGroup(ctx, alice, u.ID, ProfessionalGroupInput{CargoFuncao: cargo, Quantidade: intPtr(2)}); err != nil {
			t.Fatalf("create %s: %v", cargo, err)
		}
	}

	groups, err := svc.ListProfessionalGroups(ctx, alice, u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"Agente Comunitário", "Enfermeiro", "Médico"}
	for i, g := range groups {
		if g.CargoFuncao != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], g.CargoFuncao)
		}
	}

	_, err = svc.CreateProfessionalGroup(ctx, alice, u.ID, ProfessionalGroupInput{CargoFuncao: "Dentista", Quantidade: intPtr(-1)})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Code != CodeRange {
		t.Errorf("expected range error, got %v", err)
	}
}

func TestUpsertTerritory_Singleton(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	u, _ := svc.CreateUBS(ctx, alice, UBSInput{NomeUBS: "UBS Centro"})

	_, err := svc.UpsertTerritory(ctx, alice, u.ID, TerritoryPatch{PotencialidadesTerritorio: Some("Praças")})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Code != CodeRequired || ve.Field != "descricao_territorio" {
		t.Fatalf("expected required error on first call, got %v", err)
	}
	if _, err := svc.GetTerritory(ctx, alice, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected no profile yet, got %v", err)
	}

	created, err := svc.UpsertTerritory(ctx, alice, u.ID, TerritoryPatch{DescricaoTerritorio: Some("Zona rural")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.UpsertTerritory(ctx, alice, u.ID, TerritoryPatch{PotencialidadesTerritorio: Some("Praças")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != created.ID {
		t.Errorf("expected the same row to be updated, got ids %d and %d", created.ID, updated.ID)
	}
	if updated.DescricaoTerritorio != "Zona rural" {
		t.Errorf("expected descricao kept, got %s", updated.DescricaoTerritorio)
	}
	if len(repo.territory) != 1 {
		t.Errorf("expected exactly one profile, got %d", len(repo.territory))
	}

	_, err = svc.UpsertTerritory(ctx, alice, u.ID, TerritoryPatch{DescricaoTerritorio: Null[string]()})
	if !errors.As(err, &ve) || ve.Code != CodeRequired {
		t.Errorf("expected null descricao to be rejected, got %v", err)
	}
}

func TestUpsertNeeds_Singleton(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	u, _ := svc.CreateUBS(ctx, alice, UBSInput{NomeUBS: "UBS Centro"})

	_, err := svc.UpsertNeeds(ctx, alice, u.ID, NeedsPatch{NecessidadesEspecificasACS: Some("Tablets")})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "problemas_identificados" {
		t.Fatalf("expected required error on first call, got %v", err)
	}

	if _, err := svc.UpsertNeeds(ctx, alice, u.ID, NeedsPatch{ProblemasIdentificados: Some("Filas longas")}); err != nil {
		t.Fatalf("create: %v", err)
	}
	n, err := svc.UpsertNeeds(ctx, alice, u.ID, NeedsPatch{NecessidadesEspecificasACS: Some("Tablets")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if n.ProblemasIdentificados != "Filas longas" || n.NecessidadesEspecificasACS == nil {
		t.Errorf("unexpected needs after update: %+v", n)
	}
	if len(repo.needs) != 1 {
		t.Errorf("expected exactly one needs record, got %d", len(repo.needs))
	}
}

func TestSubmit_DateLogicBlocks(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	u := seedSubmittable(t, svc, alice)

	if _, err := svc.UpdateUBS(ctx, alice, u.ID, UBSPatch{DataUltimaReforma: Some(NewDate(2019, 1, 1))}); err != nil {
		t.Fatalf("update: %v", err)
	}

	_, err := svc.Submit(ctx, alice, u.ID)
	var sve *SubmissionValidationError
	if !errors.As(err, &sve) {
		t.Fatalf("expected submission validation error, got %v", err)
	}
	if len(sve.Errors) != 1 {
		t.Fatalf("expected exactly one error, got %v", sve.Errors)
	}
	if sve.Errors[0].Field != "data_ultima_reforma" || sve.Errors[0].Code != CodeDateLogic {
		t.Errorf("unexpected error: %+v", sve.Errors[0])
	}

	still, _ := svc.GetUBS(ctx, alice, u.ID)
	if still.Status != StatusDraft || still.SubmittedAt != nil {
		t.Error("expected the UBS to remain a draft")
	}
}

func TestSubmit_ResponseMatchesLaterRead(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	u := seedSubmittable(t, svc, alice)

	submitted, err := svc.Submit(ctx, alice, u.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted.Submission.Status != StatusSubmitted {
		t.Errorf("expected SUBMITTED, got %s", submitted.Submission.Status)
	}
	if submitted.Submission.SubmittedAt == nil || !submitted.Submission.SubmittedAt.Equal(fixedNow) {
		t.Errorf("expected submitted_at %v, got %v", fixedNow, submitted.Submission.SubmittedAt)
	}
	if submitted.Submission.SubmittedBy == nil || *submitted.Submission.SubmittedBy != alice.ID {
		t.Error("expected submitted_by to be the caller")
	}

	read, err := svc.GetDiagnosis(ctx, alice, u.ID)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	a, _ := json.Marshal(submitted)
	b, _ := json.Marshal(read)
	if string(a) != string(b) {
		t.Errorf("submit response differs from later read:\n%s\n%s", a, b)
	}
}

func TestSubmit_MissingSingletonsAndNegativeCount(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	u, _ := svc.CreateUBS(ctx, alice, UBSInput{NomeUBS: "UBS", CNES: "1", AreaAtuacao: "X", NumeroMicroareas: intPtr(-3)})

	_, err := svc.Submit(ctx, alice, u.ID)
	var sve *SubmissionValidationError
	if !errors.As(err, &sve) {
		t.Fatalf("expected submission validation error, got %v", err)
	}
	fields := make([]string, len(sve.Errors))
	for i, fe := range sve.Errors {
		fields[i] = fe.Field
	}
	want := []string{"numero_microareas", "territory_profile.descricao_territorio", "needs.problemas_identificados"}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("expected %v, got %v", want, fields)
	}
}

func TestSubmit_Resubmission(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	u := seedSubmittable(t, svc, alice)

	if _, err := svc.Submit(ctx, alice, u.ID); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	again, err := svc.Submit(ctx, alice, u.ID)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if again.Submission.Status != StatusSubmitted {
		t.Error("expected the UBS to stay submitted")
	}
}
