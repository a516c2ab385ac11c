package reporting

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/SamuelFortes/plataforma-virtual/internal/domain/diagnosis"
)

// Layout in millimetres on A4.
const (
	pageMargin    = 22.0
	contentWidth  = 210.0 - 2*pageMargin
	lineHeight    = 5.0
	maxImageWidth = 160.0
	maxImageHigh  = 180.0
)

var (
	fieldTableWidths     = []float64{53, 107}
	indicatorTableWidths = []float64{68, 24, 30, 28}
	groupTableWidths     = []float64{70, 20, 60}
)

// PDFRenderer lays the report out with the core Helvetica fonts. Text is
// translated to cp1252, which covers Portuguese.
type PDFRenderer struct {
	compress bool
}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{compress: true}
}

func (r *PDFRenderer) Format() string      { return "pdf" }
func (r *PDFRenderer) ContentType() string { return "application/pdf" }

func (r *PDFRenderer) Render(in *diagnosis.ReportInput) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle("Relatório Situacional UBS", true)
	pdf.SetAuthor("Plataforma Digital", true)
	pdf.SetCreationDate(in.GeneratedAt)
	pdf.AddPage()

	doc := &pdfDoc{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), in: in}
	doc.header()
	doc.identification()
	doc.services()
	doc.indicators()
	doc.professionals()
	doc.territory()
	doc.needs()
	doc.submission()

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("build pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type pdfDoc struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
	in  *diagnosis.ReportInput
}

func (d *pdfDoc) ubs() *diagnosis.UBS { return d.in.Diagnosis.UBS }

func (d *pdfDoc) space(h float64) { d.pdf.Ln(h) }

func (d *pdfDoc) title(s string) {
	d.pdf.SetFont("Helvetica", "B", 18)
	d.pdf.CellFormat(0, 10, d.tr(s), "", 1, "C", false, 0, "")
}

func (d *pdfDoc) h2(s string) {
	d.pdf.SetFont("Helvetica", "B", 14)
	d.pdf.MultiCell(0, 7, d.tr(s), "", "L", false)
	d.space(2)
}

func (d *pdfDoc) h3(s string) {
	d.pdf.SetFont("Helvetica", "B", 11)
	d.pdf.MultiCell(0, 6, d.tr(s), "", "L", false)
}

func (d *pdfDoc) body(s string) {
	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.MultiCell(0, lineHeight, d.tr(s), "", "L", false)
}

// labeled prints "<b>label</b> value" on one flowing line.
func (d *pdfDoc) labeled(label, value string) {
	d.pdf.SetFont("Helvetica", "B", 10)
	d.pdf.Write(lineHeight, d.tr(label+" "))
	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.Write(lineHeight, d.tr(value))
	d.pdf.Ln(lineHeight)
}

func (d *pdfDoc) bullets(items []string) {
	var cleaned []string
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		d.body(empty)
		return
	}
	d.pdf.SetFont("Helvetica", "", 10)
	for _, it := range cleaned {
		d.pdf.SetX(pageMargin + 4)
		d.pdf.MultiCell(contentWidth-4, lineHeight, d.tr("• "+it), "", "L", false)
	}
}

// table draws a bordered grid with a shaded header row. Rows grow to fit
// wrapped text and never split across pages.
func (d *pdfDoc) table(widths []float64, header []string, rows [][]string, zebra bool) {
	d.pdf.SetDrawColor(208, 208, 208)
	d.pdf.SetLineWidth(0.1)
	d.row(widths, header, "B", [3]int{240, 240, 240})
	for i, r := range rows {
		fill := [3]int{255, 255, 255}
		if zebra && i%2 == 1 {
			fill = [3]int{250, 250, 250}
		}
		if !d.fits(d.rowHeight(widths, r, "")) {
			d.pdf.AddPage()
			d.row(widths, header, "B", [3]int{240, 240, 240})
		}
		d.row(widths, r, "", fill)
	}
}

func (d *pdfDoc) rowHeight(widths []float64, cells []string, style string) float64 {
	d.pdf.SetFont("Helvetica", style, 10)
	lines := 1
	for i, c := range cells {
		if n := len(d.pdf.SplitLines([]byte(d.tr(c)), widths[i])); n > lines {
			lines = n
		}
	}
	return float64(lines)*lineHeight + 1
}

func (d *pdfDoc) fits(h float64) bool {
	_, pageH := d.pdf.GetPageSize()
	return d.pdf.GetY()+h <= pageH-pageMargin
}

func (d *pdfDoc) row(widths []float64, cells []string, style string, fill [3]int) {
	h := d.rowHeight(widths, cells, style)
	if !d.fits(h) {
		d.pdf.AddPage()
	}
	x, y := pageMargin, d.pdf.GetY()
	d.pdf.SetFillColor(fill[0], fill[1], fill[2])
	for i, c := range cells {
		d.pdf.Rect(x, y, widths[i], h, "FD")
		d.pdf.SetXY(x, y+0.5)
		d.pdf.MultiCell(widths[i], lineHeight, d.tr(c), "", "L", false)
		x += widths[i]
	}
	d.pdf.SetXY(pageMargin, y+h)
}

func (d *pdfDoc) attachments(b attachmentBlock) {
	items := d.in.AttachmentsFor(b.Section)
	if len(items) == 0 {
		return
	}
	d.h3(b.Title)
	d.space(2)
	for _, a := range items {
		name := a.OriginalFilename
		if strings.TrimSpace(name) == "" {
			name = "arquivo"
		}
		d.pdf.SetFont("Helvetica", "B", 10)
		d.pdf.Write(lineHeight, d.tr(name))
		if a.Description != nil && strings.TrimSpace(*a.Description) != "" {
			d.pdf.SetFont("Helvetica", "", 10)
			d.pdf.Write(lineHeight, d.tr(" - "+strings.TrimSpace(*a.Description)))
		}
		d.pdf.Ln(lineHeight)
		if a.Data != nil {
			d.image(a)
		}
		d.space(3)
	}
}

// image embeds a PNG or JPEG at 16cm wide, keeping the aspect ratio and
// capping the height at 18cm. Images fpdf cannot parse are skipped.
func (d *pdfDoc) image(a diagnosis.ReportAttachment) {
	imageType := "JPG"
	if strings.EqualFold(a.ContentType, "image/png") {
		imageType = "PNG"
	}
	opts := fpdf.ImageOptions{ImageType: imageType}
	name := fmt.Sprintf("attachment-%d", a.ID)

	info := d.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(a.Data))
	if d.pdf.Err() || info == nil || info.Width() <= 0 {
		d.pdf.ClearError()
		return
	}

	w := maxImageWidth
	h := info.Height() * w / info.Width()
	if h > maxImageHigh {
		w *= maxImageHigh / h
		h = maxImageHigh
	}
	d.space(1.5)
	if !d.fits(h) {
		d.pdf.AddPage()
	}
	y := d.pdf.GetY()
	d.pdf.ImageOptions(name, pageMargin, y, w, h, false, opts, 0, "")
	d.pdf.SetY(y + h)
}

func (d *pdfDoc) header() {
	u := d.ubs()
	d.title(reportTitle)
	d.space(3)
	d.body(text(d.in.Municipality))
	if u.PeriodoReferencia != nil && strings.TrimSpace(*u.PeriodoReferencia) != "" {
		d.body(*u.PeriodoReferencia)
	}
	d.space(2)

	nome := u.NomeUBS
	if strings.TrimSpace(nome) == "" {
		nome = "UBS"
	}
	d.labeled("UBS:", nome)
	d.labeled("CNES:", text(u.CNES))
	if u.IdentificacaoEquipe != nil && strings.TrimSpace(*u.IdentificacaoEquipe) != "" {
		d.labeled("Equipe:", *u.IdentificacaoEquipe)
	}
	if r := responsavel(u); r != "" {
		d.labeled("Responsável:", r)
	}
	d.labeled("Gerado em:", d.in.GeneratedAt.Format("02/01/2006 15:04"))
	d.space(5)
}

func (d *pdfDoc) identification() {
	u := d.ubs()
	d.h2("1. Identificação e Caracterização")
	d.table(fieldTableWidths, []string{"Campo", "Valor"}, identificationRows(u), true)
	d.space(4)

	d.h3("Descritivos gerais")
	d.body(textPtr(u.DescritivosGerais))
	d.space(3)
	d.h3("Observações gerais")
	d.body(textPtr(u.ObservacoesGerais))
	d.space(5)
	d.h3("Fluxo / agenda / acesso")
	d.body(textPtr(u.FluxoAgendaAcesso))
	d.space(5)

	d.attachments(blockGeral)
	d.space(2)
}

func (d *pdfDoc) services() {
	d.h2("2. Serviços Oferecidos")
	var names []string
	for _, s := range d.in.Diagnosis.Services.Services {
		names = append(names, s.Name)
	}
	d.bullets(names)
	d.space(2)
	d.labeled("Outros serviços:", textPtr(d.in.Diagnosis.Services.OutrosServicos))
	d.space(5)
}

func (d *pdfDoc) indicators() {
	d.h2("3. Indicadores Epidemiológicos (último valor)")
	items := d.in.Diagnosis.IndicatorsLatest
	if len(items) == 0 {
		d.body(empty)
	} else {
		rows := make([][]string, 0, len(items))
		for _, ind := range items {
			rows = append(rows, []string{ind.NomeIndicador, valorText(ind), text(ind.PeriodoReferencia), ind.TipoDado})
		}
		d.table(indicatorTableWidths, []string{"Indicador", "Valor", "Período", "Tipo"}, rows, false)
	}
	d.space(5)
}

func (d *pdfDoc) professionals() {
	d.h2("4. Recursos Humanos (grupos profissionais)")
	groups := d.in.Diagnosis.ProfessionalGroups
	if len(groups) == 0 {
		d.body(empty)
	} else {
		rows := make([][]string, 0, len(groups))
		for _, g := range groups {
			q := g.Quantidade
			rows = append(rows, []string{g.CargoFuncao, intText(&q), textPtr(g.TipoVinculo)})
		}
		d.table(groupTableWidths, []string{"Cargo/Função", "Qtd.", "Vínculo"}, rows, false)
	}
	d.space(5)
}

func (d *pdfDoc) territory() {
	t := d.in.Diagnosis.TerritoryProfile
	d.h2("5. Perfil do Território")

	d.h3("Descrição do território")
	d.body(territoryField(t, func(t *diagnosis.TerritoryProfile) *string { return &t.DescricaoTerritorio }))
	d.space(2)
	d.attachments(blockTerritorio)

	d.h3("Potencialidades")
	d.body(territoryField(t, func(t *diagnosis.TerritoryProfile) *string { return t.PotencialidadesTerritorio }))
	d.space(2)
	d.attachments(blockPotencialidades)

	d.h3("Riscos e vulnerabilidades")
	d.body(territoryField(t, func(t *diagnosis.TerritoryProfile) *string { return t.RiscosVulnerabilidades }))
	d.space(5)
	d.attachments(blockRiscos)
}

func (d *pdfDoc) needs() {
	n := d.in.Diagnosis.Needs
	d.h2("6. Problemas Identificados e Necessidades")

	d.h3("Problemas identificados")
	d.body(needsField(n, func(n *diagnosis.Needs) *string { return &n.ProblemasIdentificados }))
	d.space(2)
	d.attachments(blockProblemas)

	d.h3("Necessidades (equipamentos e insumos)")
	d.body(needsField(n, func(n *diagnosis.Needs) *string { return n.NecessidadesEquipamentosInsumos }))
	d.space(2)
	d.attachments(blockEquipInsumos)

	d.h3("Necessidades específicas dos ACS")
	d.body(needsField(n, func(n *diagnosis.Needs) *string { return n.NecessidadesEspecificasACS }))
	d.space(2)
	d.attachments(blockACS)

	d.h3("Infraestrutura e manutenção")
	d.body(needsField(n, func(n *diagnosis.Needs) *string { return n.NecessidadesInfraestruturaManutencao }))
	d.space(5)
	d.attachments(blockInfra)
	d.space(3)
}

func (d *pdfDoc) submission() {
	d.h2("7. Metadados de Envio")
	d.table(fieldTableWidths, []string{"Campo", "Valor"}, submissionRows(d.in.Diagnosis.Submission), false)
}
