package reporting

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/SamuelFortes/plataforma-virtual/internal/domain/diagnosis"
)

const (
	sheetIdentificacao = "Identificação"
	sheetServicos      = "Serviços"
	sheetIndicadores   = "Indicadores"
	sheetProfissionais = "Profissionais"
	sheetTerritorio    = "Território e Necessidades"
	sheetAnexos        = "Anexos"
)

// XLSXRenderer writes the diagnosis as a workbook with one sheet per report
// section. Attachments are listed, not embedded.
type XLSXRenderer struct{}

func NewXLSXRenderer() *XLSXRenderer { return &XLSXRenderer{} }

func (r *XLSXRenderer) Format() string { return "xlsx" }

func (r *XLSXRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (r *XLSXRenderer) Render(in *diagnosis.ReportInput) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	w, err := newWorkbook(f)
	if err != nil {
		return nil, err
	}
	d := in.Diagnosis
	u := d.UBS

	header := [][]string{
		{"Relatório", reportTitle},
		{"Município", text(in.Municipality)},
		{"UBS", text(u.NomeUBS)},
		{"CNES", text(u.CNES)},
		{"Equipe", textPtr(u.IdentificacaoEquipe)},
		{"Responsável", text(responsavel(u))},
		{"Gerado em", in.GeneratedAt.Format("02/01/2006 15:04")},
	}
	rows := append(header, identificationRows(u)...)
	rows = append(rows,
		[]string{"Descritivos gerais", textPtr(u.DescritivosGerais)},
		[]string{"Observações gerais", textPtr(u.ObservacoesGerais)},
		[]string{"Fluxo / agenda / acesso", textPtr(u.FluxoAgendaAcesso)},
	)
	rows = append(rows, submissionRows(d.Submission)...)
	if err := w.sheet(sheetIdentificacao, []string{"Campo", "Valor"}, []float64{30, 80}, rows); err != nil {
		return nil, err
	}

	rows = rows[:0:0]
	for _, s := range d.Services.Services {
		rows = append(rows, []string{s.Name})
	}
	rows = append(rows, []string{"Outros serviços: " + textPtr(d.Services.OutrosServicos)})
	if err := w.sheet(sheetServicos, []string{"Serviço"}, []float64{70}, rows); err != nil {
		return nil, err
	}

	rows = rows[:0:0]
	for _, ind := range d.IndicatorsLatest {
		rows = append(rows, []string{ind.NomeIndicador, valorText(ind), text(ind.PeriodoReferencia), ind.TipoDado, ind.GrauPrecisaoValor, textPtr(ind.Observacoes)})
	}
	if err := w.sheet(sheetIndicadores,
		[]string{"Indicador", "Valor", "Período", "Tipo", "Precisão", "Observações"},
		[]float64{40, 12, 16, 12, 14, 40}, rows); err != nil {
		return nil, err
	}

	rows = rows[:0:0]
	for _, g := range d.ProfessionalGroups {
		q := g.Quantidade
		rows = append(rows, []string{g.CargoFuncao, intText(&q), textPtr(g.TipoVinculo), textPtr(g.Observacoes)})
	}
	if err := w.sheet(sheetProfissionais,
		[]string{"Cargo/Função", "Qtd.", "Vínculo", "Observações"},
		[]float64{35, 8, 25, 40}, rows); err != nil {
		return nil, err
	}

	t, n := d.TerritoryProfile, d.Needs
	rows = [][]string{
		{"Descrição do território", territoryField(t, func(t *diagnosis.TerritoryProfile) *string { return &t.DescricaoTerritorio })},
		{"Potencialidades", territoryField(t, func(t *diagnosis.TerritoryProfile) *string { return t.PotencialidadesTerritorio })},
		{"Riscos e vulnerabilidades", territoryField(t, func(t *diagnosis.TerritoryProfile) *string { return t.RiscosVulnerabilidades })},
		{"Problemas identificados", needsField(n, func(n *diagnosis.Needs) *string { return &n.ProblemasIdentificados })},
		{"Necessidades (equipamentos e insumos)", needsField(n, func(n *diagnosis.Needs) *string { return n.NecessidadesEquipamentosInsumos })},
		{"Necessidades específicas dos ACS", needsField(n, func(n *diagnosis.Needs) *string { return n.NecessidadesEspecificasACS })},
		{"Infraestrutura e manutenção", needsField(n, func(n *diagnosis.Needs) *string { return n.NecessidadesInfraestruturaManutencao })},
	}
	if err := w.sheet(sheetTerritorio, []string{"Campo", "Valor"}, []float64{38, 80}, rows); err != nil {
		return nil, err
	}

	rows = nil
	for _, a := range in.Attachments {
		rows = append(rows, []string{a.Section, a.OriginalFilename, textPtr(a.Description), a.ContentType, fmt.Sprintf("%d", a.SizeBytes)})
	}
	if err := w.sheet(sheetAnexos,
		[]string{"Seção", "Arquivo", "Descrição", "Tipo", "Bytes"},
		[]float64{22, 35, 40, 20, 10}, rows); err != nil {
		return nil, err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

type workbook struct {
	f           *excelize.File
	headerStyle int
	wrapStyle   int
}

func newWorkbook(f *excelize.File) (*workbook, error) {
	border := []excelize.Border{
		{Type: "left", Color: "D0D0D0", Style: 1},
		{Type: "top", Color: "D0D0D0", Style: 1},
		{Type: "bottom", Color: "D0D0D0", Style: 1},
		{Type: "right", Color: "D0D0D0", Style: 1},
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#F0F0F0"}, Pattern: 1},
		Border:    border,
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	wrapStyle, err := f.NewStyle(&excelize.Style{
		Border:    border,
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cell style: %w", err)
	}
	return &workbook{f: f, headerStyle: headerStyle, wrapStyle: wrapStyle}, nil
}

// sheet creates name with a styled header row followed by rows. An empty
// row set still gets its header.
func (w *workbook) sheet(name string, headers []string, widths []float64, rows [][]string) error {
	if _, err := w.f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	if err := w.writeRow(name, 1, headers, w.headerStyle); err != nil {
		return err
	}
	for i, r := range rows {
		if err := w.writeRow(name, i+2, r, w.wrapStyle); err != nil {
			return err
		}
	}
	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := w.f.SetColWidth(name, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	return nil
}

func (w *workbook) writeRow(sheet string, row int, values []string, style int) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	end, err := excelize.CoordinatesToCellName(len(values), row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := w.f.SetSheetRow(sheet, start, &cells); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	if err := w.f.SetCellStyle(sheet, start, end, style); err != nil {
		return fmt.Errorf("failed to set style on %s: %w", sheet, err)
	}
	return nil
}
