package diagnosis

import "sort"

// BuildFullDiagnosis projects a loaded aggregate into the read model. It is
// the only place the projection happens; the diagnosis endpoint, the submit
// response and the report exports all go through it.
func BuildFullDiagnosis(a *Aggregate) *FullDiagnosis {
	services := make([]CatalogService, len(a.Services))
	copy(services, a.Services)
	sort.SliceStable(services, func(i, j int) bool { return services[i].Name < services[j].Name })

	groups := make([]ProfessionalGroup, len(a.ProfessionalGroups))
	copy(groups, a.ProfessionalGroups)

	u := a.UBS
	return &FullDiagnosis{
		UBS:                u,
		Services:           ServicesView{Services: services, OutrosServicos: u.OutrosServicos},
		IndicatorsLatest:   LatestIndicators(a.Indicators),
		ProfessionalGroups: groups,
		TerritoryProfile:   a.Territory,
		Needs:              a.Needs,
		Submission: SubmissionMetadata{
			Status:      u.Status,
			SubmittedAt: u.SubmittedAt,
			SubmittedBy: u.SubmittedBy,
		},
	}
}

// LatestIndicators keeps one indicator per nome_indicador: the one with the
// greatest (created_at, id). The result is ordered by name.
func LatestIndicators(indicators []Indicator) []Indicator {
	sorted := make([]Indicator, len(indicators))
	copy(sorted, indicators)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.NomeIndicador != b.NomeIndicador {
			return a.NomeIndicador < b.NomeIndicador
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	out := []Indicator{}
	for _, ind := range sorted {
		if n := len(out); n > 0 && out[n-1].NomeIndicador == ind.NomeIndicador {
			out[n-1] = ind
			continue
		}
		out = append(out, ind)
	}
	return out
}
