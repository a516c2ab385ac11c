package diagnosis

import (
	"encoding/json"
	"testing"
)

func TestDate_JSON(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2021-03-04"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.String() != "2021-03-04" {
		t.Errorf("expected 2021-03-04, got %s", d)
	}

	if err := json.Unmarshal([]byte(`"2021-03-04T10:00:00Z"`), &d); err != nil {
		t.Fatalf("unmarshal timestamp: %v", err)
	}
	out, _ := json.Marshal(d)
	if string(out) != `"2021-03-04"` {
		t.Errorf("expected date-only output, got %s", out)
	}

	if err := json.Unmarshal([]byte(`"04/03/2021"`), &d); err == nil {
		t.Error("expected error for an unsupported layout")
	}
}

func TestNormalizeTipoDado(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"ABSOLUTO", TipoDadoAbsoluto, true},
		{"taxa", TipoDadoTaxa, true},
		{"Percentual", TipoDadoTaxa, true},
		{"taxa-1000", TipoDadoTaxa1000, true},
		{"TAXA1000", TipoDadoTaxa1000, true},
		{"media", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeTipoDado(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeTipoDado(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizePrecisao(t *testing.T) {
	if got, ok := NormalizePrecisao("uma-casa"); !ok || got != PrecisaoUmaCasa {
		t.Errorf("expected UMA_CASA, got %q", got)
	}
	if _, ok := NormalizePrecisao("TRES_CASAS"); ok {
		t.Error("expected unknown precision to be rejected")
	}
}

func TestOptional_Unmarshal(t *testing.T) {
	var p UBSPatch
	if err := json.Unmarshal([]byte(`{"cnes":"999","nome_relatorio":null}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !p.CNES.Set || p.CNES.Value == nil || *p.CNES.Value != "999" {
		t.Errorf("expected cnes set, got %+v", p.CNES)
	}
	if !p.NomeRelatorio.Set || p.NomeRelatorio.Value != nil {
		t.Errorf("expected nome_relatorio explicitly null, got %+v", p.NomeRelatorio)
	}
	if p.NomeUBS.Set {
		t.Error("expected nome_ubs to be omitted")
	}
}

func TestUBSPatch_Apply(t *testing.T) {
	u := &UBS{NomeUBS: "A", CNES: "1", NomeRelatorio: strPtr("Relatório"), NumeroMicroareas: intPtr(3)}
	UBSPatch{
		NomeUBS:          Some("B"),
		NomeRelatorio:    Null[string](),
		NumeroMicroareas: Some(4),
	}.Apply(u)

	if u.NomeUBS != "B" {
		t.Errorf("expected B, got %s", u.NomeUBS)
	}
	if u.NomeRelatorio != nil {
		t.Error("expected nome_relatorio cleared")
	}
	if *u.NumeroMicroareas != 4 {
		t.Errorf("expected 4 microareas, got %d", *u.NumeroMicroareas)
	}
	if u.CNES != "1" {
		t.Error("expected cnes untouched")
	}
}

func TestIndicatorPatch_NoChangeOnError(t *testing.T) {
	ind := &Indicator{NomeIndicador: "Consultas", TipoDado: TipoDadoAbsoluto, Valor: 3}
	err := IndicatorPatch{Valor: Some(9.0), TipoDado: Some("bogus")}.Apply(ind)
	if err == nil {
		t.Fatal("expected error for invalid tipo_dado")
	}
	if ind.Valor != 3 {
		t.Error("expected indicator untouched after a failed patch")
	}
}

func TestNotFoundError_Is(t *testing.T) {
	var err error = ErrAttachmentNotFound
	if err.Error() != "Anexo não encontrado" {
		t.Errorf("unexpected message: %s", err)
	}
	if !isNotFound(err) {
		t.Error("expected NotFoundError to match ErrNotFound")
	}
}

func isNotFound(err error) bool {
	nf, ok := err.(*NotFoundError)
	return ok && nf.Is(ErrNotFound)
}

func TestSubmissionValidationError(t *testing.T) {
	err := &SubmissionValidationError{Errors: []FieldError{{Field: "cnes"}, {Field: "nome_ubs"}}}
	if err.Detail() != "Falha na validação para envio do diagnóstico" {
		t.Errorf("unexpected detail: %s", err.Detail())
	}
	if err.Error() != "Falha na validação para envio do diagnóstico: cnes, nome_ubs" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}
