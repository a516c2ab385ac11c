package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SamuelFortes/plataforma-virtual/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func lockClause(forUpdate bool) string {
	if forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

// -- UBS --

const ubsCols = `id, tenant_id, owner_user_id, nome_relatorio, nome_ubs, cnes, area_atuacao,
	numero_habitantes_ativos, numero_microareas, numero_familias_cadastradas, numero_domicilios,
	domicilios_rurais, data_inauguracao, data_ultima_reforma,
	descritivos_gerais, observacoes_gerais, outros_servicos, fluxo_agenda_acesso,
	periodo_referencia, identificacao_equipe, responsavel_nome, responsavel_cargo, responsavel_contato,
	status, is_deleted, submitted_at, submitted_by, created_at, updated_at`

func (r *repoPG) CreateUBS(ctx context.Context, u *UBS) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO ubs (
			tenant_id, owner_user_id, nome_relatorio, nome_ubs, cnes, area_atuacao,
			numero_habitantes_ativos, numero_microareas, numero_familias_cadastradas, numero_domicilios,
			domicilios_rurais, data_inauguracao, data_ultima_reforma,
			descritivos_gerais, observacoes_gerais, outros_servicos, fluxo_agenda_acesso,
			periodo_referencia, identificacao_equipe, responsavel_nome, responsavel_cargo, responsavel_contato,
			status
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,
			$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
			$21,$22,$23
		) RETURNING id, created_at, updated_at`,
		u.TenantID, u.OwnerUserID, u.NomeRelatorio, u.NomeUBS, u.CNES, u.AreaAtuacao,
		u.NumeroHabitantesAtivos, u.NumeroMicroareas, u.NumeroFamiliasCadastradas, u.NumeroDomicilios,
		u.DomiciliosRurais, u.DataInauguracao.timePtr(), u.DataUltimaReforma.timePtr(),
		u.DescritivosGerais, u.ObservacoesGerais, u.OutrosServicos, u.FluxoAgendaAcesso,
		u.PeriodoReferencia, u.IdentificacaoEquipe, u.ResponsavelNome, u.ResponsavelCargo, u.ResponsavelContato,
		string(u.Status),
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert ubs: %w", err)
	}
	return nil
}

func (r *repoPG) GetUBS(ctx context.Context, tenantID, id int64, forUpdate bool) (*UBS, error) {
	u, err := scanUBS(r.conn(ctx).QueryRow(ctx,
		`SELECT `+ubsCols+` FROM ubs WHERE id = $1 AND tenant_id = $2 AND is_deleted = FALSE`+lockClause(forUpdate),
		id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUBSNotFound
	}
	return u, err
}

func (r *repoPG) ListUBS(ctx context.Context, tenantID int64, f UBSFilter) ([]*UBS, int, error) {
	where := `tenant_id = $1 AND is_deleted = FALSE`
	args := []interface{}{tenantID}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM ubs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ubs: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(
		`SELECT `+ubsCols+` FROM ubs WHERE `+where+` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ubs: %w", err)
	}
	defer rows.Close()

	var items []*UBS
	for rows.Next() {
		u, err := scanUBS(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}

func (r *repoPG) UpdateUBS(ctx context.Context, u *UBS) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE ubs SET
			nome_relatorio = $2, nome_ubs = $3, cnes = $4, area_atuacao = $5,
			numero_habitantes_ativos = $6, numero_microareas = $7,
			numero_familias_cadastradas = $8, numero_domicilios = $9,
			domicilios_rurais = $10, data_inauguracao = $11, data_ultima_reforma = $12,
			descritivos_gerais = $13, observacoes_gerais = $14, outros_servicos = $15,
			fluxo_agenda_acesso = $16, periodo_referencia = $17, identificacao_equipe = $18,
			responsavel_nome = $19, responsavel_cargo = $20, responsavel_contato = $21,
			updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE
		RETURNING updated_at`,
		u.ID, u.NomeRelatorio, u.NomeUBS, u.CNES, u.AreaAtuacao,
		u.NumeroHabitantesAtivos, u.NumeroMicroareas,
		u.NumeroFamiliasCadastradas, u.NumeroDomicilios,
		u.DomiciliosRurais, u.DataInauguracao.timePtr(), u.DataUltimaReforma.timePtr(),
		u.DescritivosGerais, u.ObservacoesGerais, u.OutrosServicos,
		u.FluxoAgendaAcesso, u.PeriodoReferencia, u.IdentificacaoEquipe,
		u.ResponsavelNome, u.ResponsavelCargo, u.ResponsavelContato,
	).Scan(&u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUBSNotFound
	}
	if err != nil {
		return fmt.Errorf("update ubs: %w", err)
	}
	return nil
}

func (r *repoPG) MarkSubmitted(ctx context.Context, id int64, at time.Time, by int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE ubs SET status = $2, submitted_at = $3, submitted_by = $4, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE`,
		id, string(StatusSubmitted), at, by)
	if err != nil {
		return fmt.Errorf("mark ubs submitted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUBSNotFound
	}
	return nil
}

func (r *repoPG) SoftDeleteUBS(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE ubs SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1 AND is_deleted = FALSE`, id)
	if err != nil {
		return fmt.Errorf("soft delete ubs: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUBSNotFound
	}
	return nil
}

// PurgeUBS removes the row regardless of tenant or soft-delete state; the
// foreign keys cascade to every child table.
func (r *repoPG) PurgeUBS(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM ubs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("purge ubs: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUBSNotFound
	}
	return nil
}

func scanUBS(row pgx.Row) (*UBS, error) {
	var u UBS
	var status string
	var inauguracao, reforma *time.Time
	err := row.Scan(
		&u.ID, &u.TenantID, &u.OwnerUserID, &u.NomeRelatorio, &u.NomeUBS, &u.CNES, &u.AreaAtuacao,
		&u.NumeroHabitantesAtivos, &u.NumeroMicroareas, &u.NumeroFamiliasCadastradas, &u.NumeroDomicilios,
		&u.DomiciliosRurais, &inauguracao, &reforma,
		&u.DescritivosGerais, &u.ObservacoesGerais, &u.OutrosServicos, &u.FluxoAgendaAcesso,
		&u.PeriodoReferencia, &u.IdentificacaoEquipe, &u.ResponsavelNome, &u.ResponsavelCargo, &u.ResponsavelContato,
		&status, &u.IsDeleted, &u.SubmittedAt, &u.SubmittedBy, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Status = Status(status)
	u.DataInauguracao = dateFromTime(inauguracao)
	u.DataUltimaReforma = dateFromTime(reforma)
	return &u, nil
}

// -- Service catalog --

func (r *repoPG) ListCatalog(ctx context.Context) ([]CatalogService, error) {
	return r.queryServices(ctx, `SELECT id, name FROM services ORDER BY name`)
}

func (r *repoPG) FindServices(ctx context.Context, ids []int64) ([]CatalogService, error) {
	return r.queryServices(ctx, `SELECT id, name FROM services WHERE id = ANY($1) ORDER BY name`, ids)
}

func (r *repoPG) CountCatalog(ctx context.Context) (int, error) {
	var n int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM services`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count services: %w", err)
	}
	return n, nil
}

func (r *repoPG) InsertCatalog(ctx context.Context, names []string) (int, error) {
	inserted := 0
	for _, name := range names {
		tag, err := r.conn(ctx).Exec(ctx,
			`INSERT INTO services (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
		if err != nil {
			return inserted, fmt.Errorf("insert service %q: %w", name, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (r *repoPG) ListUBSServices(ctx context.Context, ubsID int64) ([]CatalogService, error) {
	return r.queryServices(ctx, `
		SELECT s.id, s.name FROM services s
		JOIN ubs_services us ON us.service_id = s.id
		WHERE us.ubs_id = $1
		ORDER BY s.name`, ubsID)
}

// ReplaceUBSServices must run inside the caller's transaction so the delete
// and insert are seen together.
func (r *repoPG) ReplaceUBSServices(ctx context.Context, ubsID int64, serviceIDs []int64) error {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM ubs_services WHERE ubs_id = $1`, ubsID); err != nil {
		return fmt.Errorf("clear ubs services: %w", err)
	}
	if len(serviceIDs) == 0 {
		return nil
	}
	if _, err := q.Exec(ctx, `
		INSERT INTO ubs_services (ubs_id, service_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING`, ubsID, serviceIDs); err != nil {
		return fmt.Errorf("link ubs services: %w", err)
	}
	return nil
}

func (r *repoPG) queryServices(ctx context.Context, sql string, args ...interface{}) ([]CatalogService, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	defer rows.Close()

	out := []CatalogService{}
	for rows.Next() {
		var s CatalogService
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// -- Indicators --

const indicatorCols = `i.id, i.ubs_id, i.nome_indicador, i.tipo_dado, i.grau_precisao_valor, i.valor,
	i.periodo_referencia, i.observacoes, i.created_by, i.updated_by, i.created_at, i.updated_at`

func (r *repoPG) CreateIndicator(ctx context.Context, ind *Indicator) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO indicators (
			ubs_id, nome_indicador, tipo_dado, grau_precisao_valor, valor,
			periodo_referencia, observacoes, created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at, updated_at`,
		ind.UBSID, ind.NomeIndicador, ind.TipoDado, ind.GrauPrecisaoValor, ind.Valor,
		ind.PeriodoReferencia, ind.Observacoes, ind.CreatedBy,
	).Scan(&ind.ID, &ind.CreatedAt, &ind.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert indicator: %w", err)
	}
	return nil
}

func (r *repoPG) ListIndicators(ctx context.Context, ubsID int64, f IndicatorFilter) ([]Indicator, error) {
	query := `SELECT ` + indicatorCols + ` FROM indicators i WHERE i.ubs_id = $1`
	args := []interface{}{ubsID}
	if f.TipoDado != "" {
		args = append(args, f.TipoDado)
		query += fmt.Sprintf(` AND i.tipo_dado = $%d`, len(args))
	}
	if f.PeriodoReferencia != "" {
		args = append(args, f.PeriodoReferencia)
		query += fmt.Sprintf(` AND i.periodo_referencia = $%d`, len(args))
	}
	query += ` ORDER BY i.created_at DESC, i.id DESC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list indicators: %w", err)
	}
	defer rows.Close()

	out := []Indicator{}
	for rows.Next() {
		ind, err := scanIndicator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ind)
	}
	return out, rows.Err()
}

func (r *repoPG) GetIndicator(ctx context.Context, tenantID, id int64, forUpdate bool) (*Indicator, error) {
	lock := ""
	if forUpdate {
		lock = " FOR UPDATE OF i"
	}
	ind, err := scanIndicator(r.conn(ctx).QueryRow(ctx, `
		SELECT `+indicatorCols+` FROM indicators i
		JOIN ubs u ON u.id = i.ubs_id
		WHERE i.id = $1 AND u.tenant_id = $2 AND u.is_deleted = FALSE`+lock, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrIndicatorNotFound
	}
	return ind, err
}

func (r *repoPG) UpdateIndicator(ctx context.Context, ind *Indicator) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE indicators SET
			nome_indicador = $2, tipo_dado = $3, grau_precisao_valor = $4, valor = $5,
			periodo_referencia = $6, observacoes = $7, updated_by = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		ind.ID, ind.NomeIndicador, ind.TipoDado, ind.GrauPrecisaoValor, ind.Valor,
		ind.PeriodoReferencia, ind.Observacoes, ind.UpdatedBy,
	).Scan(&ind.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrIndicatorNotFound
	}
	if err != nil {
		return fmt.Errorf("update indicator: %w", err)
	}
	return nil
}

func scanIndicator(row pgx.Row) (*Indicator, error) {
	var ind Indicator
	err := row.Scan(&ind.ID, &ind.UBSID, &ind.NomeIndicador, &ind.TipoDado, &ind.GrauPrecisaoValor, &ind.Valor,
		&ind.PeriodoReferencia, &ind.Observacoes, &ind.CreatedBy, &ind.UpdatedBy, &ind.CreatedAt, &ind.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ind, nil
}

// -- Professional groups --

const groupCols = `g.id, g.ubs_id, g.cargo_funcao, g.quantidade, g.tipo_vinculo, g.observacoes,
	g.created_by, g.updated_by, g.created_at, g.updated_at`

func (r *repoPG) CreateProfessionalGroup(ctx context.Context, g *ProfessionalGroup) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO professional_groups (ubs_id, cargo_funcao, quantidade, tipo_vinculo, observacoes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at, updated_at`,
		g.UBSID, g.CargoFuncao, g.Quantidade, g.TipoVinculo, g.Observacoes, g.CreatedBy,
	).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert professional group: %w", err)
	}
	return nil
}

// ListProfessionalGroups returns rows in insertion order.
func (r *repoPG) ListProfessionalGroups(ctx context.Context, ubsID int64) ([]ProfessionalGroup, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+groupCols+` FROM professional_groups g WHERE g.ubs_id = $1 ORDER BY g.id`, ubsID)
	if err != nil {
		return nil, fmt.Errorf("list professional groups: %w", err)
	}
	defer rows.Close()

	out := []ProfessionalGroup{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

func (r *repoPG) GetProfessionalGroup(ctx context.Context, tenantID, id int64, forUpdate bool) (*ProfessionalGroup, error) {
	lock := ""
	if forUpdate {
		lock = " FOR UPDATE OF g"
	}
	g, err := scanGroup(r.conn(ctx).QueryRow(ctx, `
		SELECT `+groupCols+` FROM professional_groups g
		JOIN ubs u ON u.id = g.ubs_id
		WHERE g.id = $1 AND u.tenant_id = $2 AND u.is_deleted = FALSE`+lock, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfessionalNotFound
	}
	return g, err
}

func (r *repoPG) UpdateProfessionalGroup(ctx context.Context, g *ProfessionalGroup) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE professional_groups SET
			cargo_funcao = $2, quantidade = $3, tipo_vinculo = $4, observacoes = $5,
			updated_by = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		g.ID, g.CargoFuncao, g.Quantidade, g.TipoVinculo, g.Observacoes, g.UpdatedBy,
	).Scan(&g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProfessionalNotFound
	}
	if err != nil {
		return fmt.Errorf("update professional group: %w", err)
	}
	return nil
}

func scanGroup(row pgx.Row) (*ProfessionalGroup, error) {
	var g ProfessionalGroup
	err := row.Scan(&g.ID, &g.UBSID, &g.CargoFuncao, &g.Quantidade, &g.TipoVinculo, &g.Observacoes,
		&g.CreatedBy, &g.UpdatedBy, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// -- Territory profile --

const territoryCols = `id, ubs_id, descricao_territorio, potencialidades_territorio, riscos_vulnerabilidades,
	created_by, updated_by, created_at, updated_at`

func (r *repoPG) GetTerritory(ctx context.Context, ubsID int64) (*TerritoryProfile, error) {
	var t TerritoryProfile
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+territoryCols+` FROM territory_profiles WHERE ubs_id = $1`, ubsID).Scan(
		&t.ID, &t.UBSID, &t.DescricaoTerritorio, &t.PotencialidadesTerritorio, &t.RiscosVulnerabilidades,
		&t.CreatedBy, &t.UpdatedBy, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get territory profile: %w", err)
	}
	return &t, nil
}

func (r *repoPG) CreateTerritory(ctx context.Context, t *TerritoryProfile) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO territory_profiles (ubs_id, descricao_territorio, potencialidades_territorio, riscos_vulnerabilidades, created_by)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at, updated_at`,
		t.UBSID, t.DescricaoTerritorio, t.PotencialidadesTerritorio, t.RiscosVulnerabilidades, t.CreatedBy,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert territory profile: %w", err)
	}
	return nil
}

func (r *repoPG) UpdateTerritory(ctx context.Context, t *TerritoryProfile) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE territory_profiles SET
			descricao_territorio = $2, potencialidades_territorio = $3, riscos_vulnerabilidades = $4,
			updated_by = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		t.ID, t.DescricaoTerritorio, t.PotencialidadesTerritorio, t.RiscosVulnerabilidades, t.UpdatedBy,
	).Scan(&t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update territory profile: %w", err)
	}
	return nil
}

// -- Needs --

const needsCols = `id, ubs_id, problemas_identificados, necessidades_equipamentos_insumos,
	necessidades_especificas_acs, necessidades_infraestrutura_manutencao,
	created_by, updated_by, created_at, updated_at`

func (r *repoPG) GetNeeds(ctx context.Context, ubsID int64) (*Needs, error) {
	var n Needs
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+needsCols+` FROM ubs_needs WHERE ubs_id = $1`, ubsID).Scan(
		&n.ID, &n.UBSID, &n.ProblemasIdentificados, &n.NecessidadesEquipamentosInsumos,
		&n.NecessidadesEspecificasACS, &n.NecessidadesInfraestruturaManutencao,
		&n.CreatedBy, &n.UpdatedBy, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ubs needs: %w", err)
	}
	return &n, nil
}

func (r *repoPG) CreateNeeds(ctx context.Context, n *Needs) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO ubs_needs (
			ubs_id, problemas_identificados, necessidades_equipamentos_insumos,
			necessidades_especificas_acs, necessidades_infraestrutura_manutencao, created_by
		) VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at, updated_at`,
		n.UBSID, n.ProblemasIdentificados, n.NecessidadesEquipamentosInsumos,
		n.NecessidadesEspecificasACS, n.NecessidadesInfraestruturaManutencao, n.CreatedBy,
	).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert ubs needs: %w", err)
	}
	return nil
}

func (r *repoPG) UpdateNeeds(ctx context.Context, n *Needs) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE ubs_needs SET
			problemas_identificados = $2, necessidades_equipamentos_insumos = $3,
			necessidades_especificas_acs = $4, necessidades_infraestrutura_manutencao = $5,
			updated_by = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		n.ID, n.ProblemasIdentificados, n.NecessidadesEquipamentosInsumos,
		n.NecessidadesEspecificasACS, n.NecessidadesInfraestruturaManutencao, n.UpdatedBy,
	).Scan(&n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update ubs needs: %w", err)
	}
	return nil
}

// -- Attachments --

const attachmentCols = `id, ubs_id, original_filename, COALESCE(content_type, ''), size_bytes, storage_path,
	section, description, created_by, created_at`

func (r *repoPG) CreateAttachment(ctx context.Context, a *Attachment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO ubs_attachments (
			ubs_id, original_filename, content_type, size_bytes, storage_path, section, description, created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at`,
		a.UBSID, a.OriginalFilename, a.ContentType, a.SizeBytes, a.StoragePath, a.Section, a.Description, a.CreatedBy,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (r *repoPG) ListAttachments(ctx context.Context, ubsID int64) ([]Attachment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+attachmentCols+` FROM ubs_attachments WHERE ubs_id = $1 ORDER BY created_at, id`, ubsID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	out := []Attachment{}
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *repoPG) GetAttachment(ctx context.Context, ubsID, id int64) (*Attachment, error) {
	a, err := scanAttachment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+attachmentCols+` FROM ubs_attachments WHERE id = $1 AND ubs_id = $2`, id, ubsID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAttachmentNotFound
	}
	return a, err
}

func (r *repoPG) DeleteAttachment(ctx context.Context, ubsID, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM ubs_attachments WHERE id = $1 AND ubs_id = $2`, id, ubsID)
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttachmentNotFound
	}
	return nil
}

func scanAttachment(row pgx.Row) (*Attachment, error) {
	var a Attachment
	err := row.Scan(&a.ID, &a.UBSID, &a.OriginalFilename, &a.ContentType, &a.SizeBytes, &a.StoragePath,
		&a.Section, &a.Description, &a.CreatedBy, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Section = strings.ToUpper(a.Section)
	return &a, nil
}
