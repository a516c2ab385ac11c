package diagnosis

import "context"

// DefaultCatalog is the fixed service list seeded into an empty catalog.
var DefaultCatalog = []string{
	"Programa Saúde da Família",
	"Atendimento médico",
	"Atendimento de enfermagem",
	"Atendimento odontológico",
	"Atendimento de urgência / acolhimento",
	"Procedimentos (curativos, inalação, etc.)",
	"Sala de vacina",
	"Saúde da criança",
	"Saúde da mulher",
	"Saúde do homem",
	"Saúde do idoso",
	"Planejamento familiar",
	"Pré-natal",
	"Puericultura",
	"Atendimento a condições crônicas (hipertensão, diabetes, etc.)",
	"Programa Saúde na Escola (PSE)",
	"Saúde mental",
	"Atendimento multiprofissional (NASF ou equivalente)",
	"Testes rápidos de IST",
	"Vigilância epidemiológica",
	"Vigilância em saúde ambiental",
	"Visitas domiciliares",
	"Atividades coletivas e preventivas",
	"Grupos operativos (gestantes, tabagismo, etc.)",
}

// SeedCatalog inserts DefaultCatalog when the catalog is empty and reports how
// many rows were added. Running it again is a no-op.
func (s *Service) SeedCatalog(ctx context.Context) (int, error) {
	var inserted int
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		n, err := s.repo.CountCatalog(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		inserted, err = s.repo.InsertCatalog(ctx, DefaultCatalog)
		return err
	})
	return inserted, err
}

func (s *Service) ListCatalog(ctx context.Context) ([]CatalogService, error) {
	return s.repo.ListCatalog(ctx)
}
