package diagnosis

import "strings"

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }

// Validate checks a fully loaded aggregate for submission. Every rule runs;
// an empty result means the UBS may be submitted.
func Validate(a *Aggregate) []FieldError {
	errs := []FieldError{}
	add := func(field, message, code string) {
		errs = append(errs, FieldError{Field: field, Message: message, Code: code})
	}

	u := a.UBS
	if isBlank(u.NomeUBS) {
		add("nome_ubs", "Nome da UBS é obrigatório", CodeRequired)
	}
	if isBlank(u.CNES) {
		add("cnes", "CNES é obrigatório", CodeRequired)
	}
	if isBlank(u.AreaAtuacao) {
		add("area_atuacao", "Área de atuação é obrigatória", CodeRequired)
	}

	counts := []struct {
		field string
		value *int
	}{
		{"numero_habitantes_ativos", u.NumeroHabitantesAtivos},
		{"numero_microareas", u.NumeroMicroareas},
		{"numero_familias_cadastradas", u.NumeroFamiliasCadastradas},
		{"numero_domicilios", u.NumeroDomicilios},
	}
	for _, c := range counts {
		switch {
		case c.value == nil:
			add(c.field, "Campo numérico obrigatório para envio", CodeRequired)
		case *c.value < 0:
			add(c.field, "Valor não pode ser negativo", CodeRange)
		}
	}

	if a.Territory == nil || isBlank(a.Territory.DescricaoTerritorio) {
		add("territory_profile.descricao_territorio", "Descrição do território é obrigatória", CodeRequired)
	}
	if a.Needs == nil || isBlank(a.Needs.ProblemasIdentificados) {
		add("needs.problemas_identificados", "Problemas identificados são obrigatórios", CodeRequired)
	}

	if u.DataInauguracao != nil && u.DataUltimaReforma != nil && u.DataUltimaReforma.Before(u.DataInauguracao.Time) {
		add("data_ultima_reforma", "Data da última reforma não pode ser anterior à data de inauguração", CodeDateLogic)
	}

	return errs
}
