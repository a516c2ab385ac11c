package diagnosis

import (
	"bytes"
	"encoding/json"
)

// Optional distinguishes a field that was omitted from one that was sent,
// possibly as null. Patches apply only the fields that were sent.
type Optional[T any] struct {
	Set   bool
	Value *T
}

func Some[T any](v T) Optional[T] { return Optional[T]{Set: true, Value: &v} }

func Null[T any]() Optional[T] { return Optional[T]{Set: true} }

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (o Optional[T]) apply(dst **T) {
	if o.Set {
		*dst = o.Value
	}
}

// applyValue writes into a non-nullable destination; null becomes the zero
// value.
func (o Optional[T]) applyValue(dst *T) {
	if !o.Set {
		return
	}
	if o.Value == nil {
		var zero T
		*dst = zero
		return
	}
	*dst = *o.Value
}

func (o Optional[T]) isNull() bool { return o.Set && o.Value == nil }

// UBSInput is the create payload. Counts left out default to zero.
type UBSInput struct {
	NomeRelatorio             *string `json:"nome_relatorio"`
	NomeUBS                   string  `json:"nome_ubs"`
	CNES                      string  `json:"cnes"`
	AreaAtuacao               string  `json:"area_atuacao"`
	NumeroHabitantesAtivos    *int    `json:"numero_habitantes_ativos"`
	NumeroMicroareas          *int    `json:"numero_microareas"`
	NumeroFamiliasCadastradas *int    `json:"numero_familias_cadastradas"`
	NumeroDomicilios          *int    `json:"numero_domicilios"`
	DomiciliosRurais          *int    `json:"domicilios_rurais"`
	DataInauguracao           *Date   `json:"data_inauguracao"`
	DataUltimaReforma         *Date   `json:"data_ultima_reforma"`
	DescritivosGerais         *string `json:"descritivos_gerais"`
	ObservacoesGerais         *string `json:"observacoes_gerais"`
	OutrosServicos            *string `json:"outros_servicos"`
	FluxoAgendaAcesso         *string `json:"fluxo_agenda_acesso"`
	PeriodoReferencia         *string `json:"periodo_referencia"`
	IdentificacaoEquipe       *string `json:"identificacao_equipe"`
	ResponsavelNome           *string `json:"responsavel_nome"`
	ResponsavelCargo          *string `json:"responsavel_cargo"`
	ResponsavelContato        *string `json:"responsavel_contato"`
}

func zeroIfNil(v *int) *int {
	if v != nil {
		return v
	}
	zero := 0
	return &zero
}

// newUBS builds a draft owned by tenantID.
func (in UBSInput) newUBS(tenantID int64) *UBS {
	return &UBS{
		TenantID:                  tenantID,
		OwnerUserID:               tenantID,
		NomeRelatorio:             in.NomeRelatorio,
		NomeUBS:                   in.NomeUBS,
		CNES:                      in.CNES,
		AreaAtuacao:               in.AreaAtuacao,
		NumeroHabitantesAtivos:    zeroIfNil(in.NumeroHabitantesAtivos),
		NumeroMicroareas:          zeroIfNil(in.NumeroMicroareas),
		NumeroFamiliasCadastradas: zeroIfNil(in.NumeroFamiliasCadastradas),
		NumeroDomicilios:          zeroIfNil(in.NumeroDomicilios),
		DomiciliosRurais:          in.DomiciliosRurais,
		DataInauguracao:           in.DataInauguracao,
		DataUltimaReforma:         in.DataUltimaReforma,
		DescritivosGerais:         in.DescritivosGerais,
		ObservacoesGerais:         in.ObservacoesGerais,
		OutrosServicos:            in.OutrosServicos,
		FluxoAgendaAcesso:         in.FluxoAgendaAcesso,
		PeriodoReferencia:         in.PeriodoReferencia,
		IdentificacaoEquipe:       in.IdentificacaoEquipe,
		ResponsavelNome:           in.ResponsavelNome,
		ResponsavelCargo:          in.ResponsavelCargo,
		ResponsavelContato:        in.ResponsavelContato,
		Status:                    StatusDraft,
	}
}

// UBSPatch lists every field a caller may change. Ownership, status and
// submission stamps cannot be patched.
type UBSPatch struct {
	NomeRelatorio             Optional[string] `json:"nome_relatorio"`
	NomeUBS                   Optional[string] `json:"nome_ubs"`
	CNES                      Optional[string] `json:"cnes"`
	AreaAtuacao               Optional[string] `json:"area_atuacao"`
	NumeroHabitantesAtivos    Optional[int]    `json:"numero_habitantes_ativos"`
	NumeroMicroareas          Optional[int]    `json:"numero_microareas"`
	NumeroFamiliasCadastradas Optional[int]    `json:"numero_familias_cadastradas"`
	NumeroDomicilios          Optional[int]    `json:"numero_domicilios"`
	DomiciliosRurais          Optional[int]    `json:"domicilios_rurais"`
	DataInauguracao           Optional[Date]   `json:"data_inauguracao"`
	DataUltimaReforma         Optional[Date]   `json:"data_ultima_reforma"`
	DescritivosGerais         Optional[string] `json:"descritivos_gerais"`
	ObservacoesGerais         Optional[string] `json:"observacoes_gerais"`
	OutrosServicos            Optional[string] `json:"outros_servicos"`
	FluxoAgendaAcesso         Optional[string] `json:"fluxo_agenda_acesso"`
	PeriodoReferencia         Optional[string] `json:"periodo_referencia"`
	IdentificacaoEquipe       Optional[string] `json:"identificacao_equipe"`
	ResponsavelNome           Optional[string] `json:"responsavel_nome"`
	ResponsavelCargo          Optional[string] `json:"responsavel_cargo"`
	ResponsavelContato        Optional[string] `json:"responsavel_contato"`
}

func (p UBSPatch) Apply(u *UBS) {
	p.NomeRelatorio.apply(&u.NomeRelatorio)
	p.NomeUBS.applyValue(&u.NomeUBS)
	p.CNES.applyValue(&u.CNES)
	p.AreaAtuacao.applyValue(&u.AreaAtuacao)
	p.NumeroHabitantesAtivos.apply(&u.NumeroHabitantesAtivos)
	p.NumeroMicroareas.apply(&u.NumeroMicroareas)
	p.NumeroFamiliasCadastradas.apply(&u.NumeroFamiliasCadastradas)
	p.NumeroDomicilios.apply(&u.NumeroDomicilios)
	p.DomiciliosRurais.apply(&u.DomiciliosRurais)
	p.DataInauguracao.apply(&u.DataInauguracao)
	p.DataUltimaReforma.apply(&u.DataUltimaReforma)
	p.DescritivosGerais.apply(&u.DescritivosGerais)
	p.ObservacoesGerais.apply(&u.ObservacoesGerais)
	p.OutrosServicos.apply(&u.OutrosServicos)
	p.FluxoAgendaAcesso.apply(&u.FluxoAgendaAcesso)
	p.PeriodoReferencia.apply(&u.PeriodoReferencia)
	p.IdentificacaoEquipe.apply(&u.IdentificacaoEquipe)
	p.ResponsavelNome.apply(&u.ResponsavelNome)
	p.ResponsavelCargo.apply(&u.ResponsavelCargo)
	p.ResponsavelContato.apply(&u.ResponsavelContato)
}

type IndicatorInput struct {
	NomeIndicador     string   `json:"nome_indicador"`
	TipoDado          string   `json:"tipo_dado"`
	GrauPrecisaoValor string   `json:"grau_precisao_valor"`
	Valor             *float64 `json:"valor"`
	PeriodoReferencia string   `json:"periodo_referencia"`
	Observacoes       *string  `json:"observacoes"`
}

// normalize validates the input and canonicalises the classifiers.
func (in *IndicatorInput) normalize() error {
	if isBlank(in.NomeIndicador) {
		return requiredField("nome_indicador")
	}
	tipo, ok := NormalizeTipoDado(in.TipoDado)
	if !ok {
		return newValidationError("tipo_dado", CodeInvalid, "Tipo de dado inválido")
	}
	precisao, ok := NormalizePrecisao(in.GrauPrecisaoValor)
	if !ok {
		return newValidationError("grau_precisao_valor", CodeInvalid, "Grau de precisão inválido")
	}
	if in.Valor == nil {
		return requiredField("valor")
	}
	if isBlank(in.PeriodoReferencia) {
		return requiredField("periodo_referencia")
	}
	in.TipoDado = tipo
	in.GrauPrecisaoValor = precisao
	return nil
}

type IndicatorPatch struct {
	NomeIndicador     Optional[string]  `json:"nome_indicador"`
	TipoDado          Optional[string]  `json:"tipo_dado"`
	GrauPrecisaoValor Optional[string]  `json:"grau_precisao_valor"`
	Valor             Optional[float64] `json:"valor"`
	PeriodoReferencia Optional[string]  `json:"periodo_referencia"`
	Observacoes       Optional[string]  `json:"observacoes"`
}

// Apply validates the patch and merges it into ind. Nothing is changed when
// an error is returned.
func (p IndicatorPatch) Apply(ind *Indicator) error {
	next := *ind
	if p.NomeIndicador.Set {
		if p.NomeIndicador.isNull() || isBlank(*p.NomeIndicador.Value) {
			return requiredField("nome_indicador")
		}
		next.NomeIndicador = *p.NomeIndicador.Value
	}
	if p.TipoDado.Set {
		if p.TipoDado.isNull() {
			return requiredField("tipo_dado")
		}
		tipo, ok := NormalizeTipoDado(*p.TipoDado.Value)
		if !ok {
			return newValidationError("tipo_dado", CodeInvalid, "Tipo de dado inválido")
		}
		next.TipoDado = tipo
	}
	if p.GrauPrecisaoValor.Set {
		if p.GrauPrecisaoValor.isNull() {
			return requiredField("grau_precisao_valor")
		}
		precisao, ok := NormalizePrecisao(*p.GrauPrecisaoValor.Value)
		if !ok {
			return newValidationError("grau_precisao_valor", CodeInvalid, "Grau de precisão inválido")
		}
		next.GrauPrecisaoValor = precisao
	}
	if p.Valor.isNull() {
		return requiredField("valor")
	}
	p.Valor.applyValue(&next.Valor)
	if p.PeriodoReferencia.Set {
		if p.PeriodoReferencia.isNull() || isBlank(*p.PeriodoReferencia.Value) {
			return requiredField("periodo_referencia")
		}
		next.PeriodoReferencia = *p.PeriodoReferencia.Value
	}
	p.Observacoes.apply(&next.Observacoes)
	*ind = next
	return nil
}

type ProfessionalGroupInput struct {
	CargoFuncao string  `json:"cargo_funcao"`
	Quantidade  *int    `json:"quantidade"`
	TipoVinculo *string `json:"tipo_vinculo"`
	Observacoes *string `json:"observacoes"`
}

func (in ProfessionalGroupInput) validate() error {
	if isBlank(in.CargoFuncao) {
		return requiredField("cargo_funcao")
	}
	if in.Quantidade == nil {
		return requiredField("quantidade")
	}
	if *in.Quantidade < 0 {
		return newValidationError("quantidade", CodeRange, "Valor não pode ser negativo")
	}
	return nil
}

type ProfessionalGroupPatch struct {
	CargoFuncao Optional[string] `json:"cargo_funcao"`
	Quantidade  Optional[int]    `json:"quantidade"`
	TipoVinculo Optional[string] `json:"tipo_vinculo"`
	Observacoes Optional[string] `json:"observacoes"`
}

func (p ProfessionalGroupPatch) Apply(g *ProfessionalGroup) error {
	next := *g
	if p.CargoFuncao.Set {
		if p.CargoFuncao.isNull() || isBlank(*p.CargoFuncao.Value) {
			return requiredField("cargo_funcao")
		}
		next.CargoFuncao = *p.CargoFuncao.Value
	}
	if p.Quantidade.Set {
		if p.Quantidade.isNull() {
			return requiredField("quantidade")
		}
		if *p.Quantidade.Value < 0 {
			return newValidationError("quantidade", CodeRange, "Valor não pode ser negativo")
		}
		next.Quantidade = *p.Quantidade.Value
	}
	p.TipoVinculo.apply(&next.TipoVinculo)
	p.Observacoes.apply(&next.Observacoes)
	*g = next
	return nil
}

// TerritoryPatch serves both the first PUT, which must carry
// descricao_territorio, and later partial updates.
type TerritoryPatch struct {
	DescricaoTerritorio       Optional[string] `json:"descricao_territorio"`
	PotencialidadesTerritorio Optional[string] `json:"potencialidades_territorio"`
	RiscosVulnerabilidades    Optional[string] `json:"riscos_vulnerabilidades"`
}

func (p TerritoryPatch) newProfile(ubsID, userID int64) (*TerritoryProfile, error) {
	if !p.DescricaoTerritorio.Set || p.DescricaoTerritorio.isNull() || isBlank(*p.DescricaoTerritorio.Value) {
		return nil, requiredField("descricao_territorio")
	}
	return &TerritoryProfile{
		UBSID:                     ubsID,
		DescricaoTerritorio:       *p.DescricaoTerritorio.Value,
		PotencialidadesTerritorio: p.PotencialidadesTerritorio.Value,
		RiscosVulnerabilidades:    p.RiscosVulnerabilidades.Value,
		CreatedBy:                 &userID,
	}, nil
}

func (p TerritoryPatch) Apply(t *TerritoryProfile) error {
	if p.DescricaoTerritorio.Set && (p.DescricaoTerritorio.isNull() || isBlank(*p.DescricaoTerritorio.Value)) {
		return requiredField("descricao_territorio")
	}
	p.DescricaoTerritorio.applyValue(&t.DescricaoTerritorio)
	p.PotencialidadesTerritorio.apply(&t.PotencialidadesTerritorio)
	p.RiscosVulnerabilidades.apply(&t.RiscosVulnerabilidades)
	return nil
}

type NeedsPatch struct {
	ProblemasIdentificados               Optional[string] `json:"problemas_identificados"`
	NecessidadesEquipamentosInsumos      Optional[string] `json:"necessidades_equipamentos_insumos"`
	NecessidadesEspecificasACS           Optional[string] `json:"necessidades_especificas_acs"`
	NecessidadesInfraestruturaManutencao Optional[string] `json:"necessidades_infraestrutura_manutencao"`
}

func (p NeedsPatch) newNeeds(ubsID, userID int64) (*Needs, error) {
	if !p.ProblemasIdentificados.Set || p.ProblemasIdentificados.isNull() || isBlank(*p.ProblemasIdentificados.Value) {
		return nil, requiredField("problemas_identificados")
	}
	return &Needs{
		UBSID:                                ubsID,
		ProblemasIdentificados:               *p.ProblemasIdentificados.Value,
		NecessidadesEquipamentosInsumos:      p.NecessidadesEquipamentosInsumos.Value,
		NecessidadesEspecificasACS:           p.NecessidadesEspecificasACS.Value,
		NecessidadesInfraestruturaManutencao: p.NecessidadesInfraestruturaManutencao.Value,
		CreatedBy:                            &userID,
	}, nil
}

func (p NeedsPatch) Apply(n *Needs) error {
	if p.ProblemasIdentificados.Set && (p.ProblemasIdentificados.isNull() || isBlank(*p.ProblemasIdentificados.Value)) {
		return requiredField("problemas_identificados")
	}
	p.ProblemasIdentificados.applyValue(&n.ProblemasIdentificados)
	p.NecessidadesEquipamentosInsumos.apply(&n.NecessidadesEquipamentosInsumos)
	p.NecessidadesEspecificasACS.apply(&n.NecessidadesEspecificasACS)
	p.NecessidadesInfraestruturaManutencao.apply(&n.NecessidadesInfraestruturaManutencao)
	return nil
}

// ServicesInput replaces the whole service set of a UBS.
type ServicesInput struct {
	ServiceIDs     []int64 `json:"service_ids"`
	OutrosServicos *string `json:"outros_servicos"`
}
