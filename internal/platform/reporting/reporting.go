// Package reporting renders the situational report of a UBS diagnosis as PDF
// or XLSX. Renderers are pure: everything they print comes in through
// diagnosis.ReportInput.
package reporting

import (
	"strconv"
	"strings"
	"time"

	"github.com/SamuelFortes/plataforma-virtual/internal/domain/diagnosis"
)

const (
	reportTitle = "RELATÓRIO SITUACIONAL"
	empty       = "-"
)

// attachmentBlock names the attachment list printed under a report
// subsection.
type attachmentBlock struct {
	Title   string
	Section string
}

var (
	blockGeral           = attachmentBlock{"Anexos (identificação)", diagnosis.SectionGeral}
	blockTerritorio      = attachmentBlock{"Anexos (território)", diagnosis.SectionTerritorio}
	blockPotencialidades = attachmentBlock{"Anexos (potencialidades)", diagnosis.SectionPotencialidades}
	blockRiscos          = attachmentBlock{"Anexos (riscos e vulnerabilidades)", diagnosis.SectionRiscos}
	blockProblemas       = attachmentBlock{"Anexos (problemas)", diagnosis.SectionProblemas}
	blockEquipInsumos    = attachmentBlock{"Anexos (equipamentos e insumos)", diagnosis.SectionNecEquipInsumos}
	blockACS             = attachmentBlock{"Anexos (ACS)", diagnosis.SectionNecACS}
	blockInfra           = attachmentBlock{"Anexos (infraestrutura e manutenção)", diagnosis.SectionNecInfra}
)

func text(s string) string {
	if strings.TrimSpace(s) == "" {
		return empty
	}
	return s
}

func textPtr(s *string) string {
	if s == nil {
		return empty
	}
	return text(*s)
}

func intText(v *int) string {
	if v == nil {
		return empty
	}
	return strconv.Itoa(*v)
}

func dateText(d *diagnosis.Date) string {
	if d == nil {
		return empty
	}
	return d.Format("02/01/2006")
}

func timestampText(t *time.Time) string {
	if t == nil {
		return empty
	}
	return t.Format("02/01/2006 15:04")
}

// valorText prints an indicator value with the number of decimals its
// precision asks for, using a decimal comma.
func valorText(ind diagnosis.Indicator) string {
	decimals := -1
	switch ind.GrauPrecisaoValor {
	case diagnosis.PrecisaoUnidade:
		decimals = 0
	case diagnosis.PrecisaoUmaCasa:
		decimals = 1
	case diagnosis.PrecisaoDuasCasas:
		decimals = 2
	}
	return strings.Replace(strconv.FormatFloat(ind.Valor, 'f', decimals, 64), ".", ",", 1)
}

// responsavel joins the non-empty responsible-person fields, or returns ""
// when there are none.
func responsavel(u *diagnosis.UBS) string {
	var parts []string
	for _, p := range []*string{u.ResponsavelNome, u.ResponsavelCargo, u.ResponsavelContato} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, *p)
		}
	}
	return strings.Join(parts, " - ")
}

func reportName(u *diagnosis.UBS) string {
	return textPtr(u.NomeRelatorio)
}

// identificationRows is the field table of section 1.
func identificationRows(u *diagnosis.UBS) [][]string {
	return [][]string{
		{"Nome do relatório", reportName(u)},
		{"Período de referência", textPtr(u.PeriodoReferencia)},
		{"Área de atuação", text(u.AreaAtuacao)},
		{"Habitantes ativos", intText(u.NumeroHabitantesAtivos)},
		{"Microáreas", intText(u.NumeroMicroareas)},
		{"Famílias cadastradas", intText(u.NumeroFamiliasCadastradas)},
		{"Domicílios", intText(u.NumeroDomicilios)},
		{"Domicílios rurais", intText(u.DomiciliosRurais)},
		{"Data de inauguração", dateText(u.DataInauguracao)},
		{"Data da última reforma", dateText(u.DataUltimaReforma)},
	}
}

func submissionRows(s diagnosis.SubmissionMetadata) [][]string {
	return [][]string{
		{"Status", text(string(s.Status))},
		{"Submetido em", timestampText(s.SubmittedAt)},
	}
}

func territoryField(t *diagnosis.TerritoryProfile, get func(*diagnosis.TerritoryProfile) *string) string {
	if t == nil {
		return empty
	}
	return textPtr(get(t))
}

func needsField(n *diagnosis.Needs, get func(*diagnosis.Needs) *string) string {
	if n == nil {
		return empty
	}
	return textPtr(get(n))
}
