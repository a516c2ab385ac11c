package diagnosis

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
)

func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusSubmitted
}

// Date is a calendar day. It travels as "YYYY-MM-DD".
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

func (d Date) String() string { return d.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func dateFromTime(t *time.Time) *Date {
	if t == nil {
		return nil
	}
	d := NewDate(t.Year(), t.Month(), t.Day())
	return &d
}

func (d *Date) timePtr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

// UBS is the aggregate root. TenantID is fixed at creation.
type UBS struct {
	ID                        int64      `json:"id"`
	TenantID                  int64      `json:"tenant_id"`
	OwnerUserID               int64      `json:"owner_user_id"`
	NomeRelatorio             *string    `json:"nome_relatorio"`
	NomeUBS                   string     `json:"nome_ubs"`
	CNES                      string     `json:"cnes"`
	AreaAtuacao               string     `json:"area_atuacao"`
	NumeroHabitantesAtivos    *int       `json:"numero_habitantes_ativos"`
	NumeroMicroareas          *int       `json:"numero_microareas"`
	NumeroFamiliasCadastradas *int       `json:"numero_familias_cadastradas"`
	NumeroDomicilios          *int       `json:"numero_domicilios"`
	DomiciliosRurais          *int       `json:"domicilios_rurais"`
	DataInauguracao           *Date      `json:"data_inauguracao"`
	DataUltimaReforma         *Date      `json:"data_ultima_reforma"`
	DescritivosGerais         *string    `json:"descritivos_gerais"`
	ObservacoesGerais         *string    `json:"observacoes_gerais"`
	OutrosServicos            *string    `json:"outros_servicos"`
	FluxoAgendaAcesso         *string    `json:"fluxo_agenda_acesso"`
	PeriodoReferencia         *string    `json:"periodo_referencia"`
	IdentificacaoEquipe       *string    `json:"identificacao_equipe"`
	ResponsavelNome           *string    `json:"responsavel_nome"`
	ResponsavelCargo          *string    `json:"responsavel_cargo"`
	ResponsavelContato        *string    `json:"responsavel_contato"`
	Status                    Status     `json:"status"`
	IsDeleted                 bool       `json:"-"`
	SubmittedAt               *time.Time `json:"submitted_at"`
	SubmittedBy               *int64     `json:"submitted_by"`
	CreatedAt                 time.Time  `json:"created_at"`
	UpdatedAt                 time.Time  `json:"updated_at"`
}

// CatalogService is a catalog entry. The catalog is global, not tenant scoped.
type CatalogService struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type ServicesView struct {
	Services       []CatalogService `json:"services"`
	OutrosServicos *string          `json:"outros_servicos"`
}

type Indicator struct {
	ID                int64     `json:"id"`
	UBSID             int64     `json:"ubs_id"`
	NomeIndicador     string    `json:"nome_indicador"`
	TipoDado          string    `json:"tipo_dado"`
	GrauPrecisaoValor string    `json:"grau_precisao_valor"`
	Valor             float64   `json:"valor"`
	PeriodoReferencia string    `json:"periodo_referencia"`
	Observacoes       *string   `json:"observacoes"`
	CreatedBy         *int64    `json:"created_by"`
	UpdatedBy         *int64    `json:"updated_by"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type ProfessionalGroup struct {
	ID          int64     `json:"id"`
	UBSID       int64     `json:"ubs_id"`
	CargoFuncao string    `json:"cargo_funcao"`
	Quantidade  int       `json:"quantidade"`
	TipoVinculo *string   `json:"tipo_vinculo"`
	Observacoes *string   `json:"observacoes"`
	CreatedBy   *int64    `json:"created_by"`
	UpdatedBy   *int64    `json:"updated_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TerritoryProfile exists at most once per UBS.
type TerritoryProfile struct {
	ID                        int64     `json:"id"`
	UBSID                     int64     `json:"ubs_id"`
	DescricaoTerritorio       string    `json:"descricao_territorio"`
	PotencialidadesTerritorio *string   `json:"potencialidades_territorio"`
	RiscosVulnerabilidades    *string   `json:"riscos_vulnerabilidades"`
	CreatedBy                 *int64    `json:"created_by"`
	UpdatedBy                 *int64    `json:"updated_by"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// Needs exists at most once per UBS.
type Needs struct {
	ID                                   int64     `json:"id"`
	UBSID                                int64     `json:"ubs_id"`
	ProblemasIdentificados               string    `json:"problemas_identificados"`
	NecessidadesEquipamentosInsumos      *string   `json:"necessidades_equipamentos_insumos"`
	NecessidadesEspecificasACS           *string   `json:"necessidades_especificas_acs"`
	NecessidadesInfraestruturaManutencao *string   `json:"necessidades_infraestrutura_manutencao"`
	CreatedBy                            *int64    `json:"created_by"`
	UpdatedBy                            *int64    `json:"updated_by"`
	CreatedAt                            time.Time `json:"created_at"`
	UpdatedAt                            time.Time `json:"updated_at"`
}

type Attachment struct {
	ID               int64     `json:"id"`
	UBSID            int64     `json:"ubs_id"`
	OriginalFilename string    `json:"original_filename"`
	ContentType      string    `json:"content_type"`
	SizeBytes        int64     `json:"size_bytes"`
	StoragePath      string    `json:"-"`
	Section          string    `json:"section"`
	Description      *string   `json:"description"`
	CreatedBy        *int64    `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
}

// IsImage reports whether the attachment can be embedded in a report.
func (a *Attachment) IsImage() bool {
	ct := strings.ToLower(a.ContentType)
	return ct == "image/png" || ct == "image/jpeg" || ct == "image/jpg"
}

// Aggregate is a UBS with every child relation loaded.
type Aggregate struct {
	UBS                *UBS
	Services           []CatalogService
	Indicators         []Indicator
	ProfessionalGroups []ProfessionalGroup
	Territory          *TerritoryProfile
	Needs              *Needs
}

type SubmissionMetadata struct {
	Status      Status     `json:"status"`
	SubmittedAt *time.Time `json:"submitted_at"`
	SubmittedBy *int64     `json:"submitted_by"`
}

// FullDiagnosis is the denormalized read model served by the diagnosis and
// submit endpoints and fed to the report renderers.
type FullDiagnosis struct {
	UBS                *UBS                `json:"ubs"`
	Services           ServicesView        `json:"services"`
	IndicatorsLatest   []Indicator         `json:"indicators_latest"`
	ProfessionalGroups []ProfessionalGroup `json:"professional_groups"`
	TerritoryProfile   *TerritoryProfile   `json:"territory_profile"`
	Needs              *Needs              `json:"needs"`
	Submission         SubmissionMetadata  `json:"submission"`
}

// Indicator classifiers. Input is normalised case-insensitively and the
// hyphenated spellings used by the web form are accepted.
const (
	TipoDadoAbsoluto = "ABSOLUTO"
	TipoDadoTaxa     = "TAXA"
	TipoDadoTaxa1000 = "TAXA_1000"

	PrecisaoUnidade   = "UNIDADE"
	PrecisaoUmaCasa   = "UMA_CASA"
	PrecisaoDuasCasas = "DUAS_CASAS"
)

var tipoDadoAliases = map[string]string{
	"ABSOLUTO":   TipoDadoAbsoluto,
	"TAXA":       TipoDadoTaxa,
	"PERCENTUAL": TipoDadoTaxa,
	"TAXA1000":   TipoDadoTaxa1000,
	"TAXA_1000":  TipoDadoTaxa1000,
}

var precisaoAliases = map[string]string{
	"UNIDADE":    PrecisaoUnidade,
	"UMA_CASA":   PrecisaoUmaCasa,
	"DUAS_CASAS": PrecisaoDuasCasas,
}

func classifierKey(s string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_")
}

// NormalizeTipoDado returns the canonical tipo_dado or false when unknown.
func NormalizeTipoDado(s string) (string, bool) {
	v, ok := tipoDadoAliases[classifierKey(s)]
	return v, ok
}

// NormalizePrecisao returns the canonical grau_precisao_valor or false when
// unknown.
func NormalizePrecisao(s string) (string, bool) {
	v, ok := precisaoAliases[classifierKey(s)]
	return v, ok
}
