package diagnosis

import (
	"context"
	"time"
)

// UBSFilter narrows a tenant's UBS listing.
type UBSFilter struct {
	Status Status
	Limit  int
	Offset int
}

type IndicatorFilter struct {
	TipoDado          string
	PeriodoReferencia string
}

// Repository is the entity store. Every UBS lookup takes the tenant id and
// skips soft-deleted rows; child lookups by child id join through the owning
// UBS with the same filter. Lookups with forUpdate lock the UBS row until the
// surrounding transaction ends.
type Repository interface {
	CreateUBS(ctx context.Context, u *UBS) error
	GetUBS(ctx context.Context, tenantID, id int64, forUpdate bool) (*UBS, error)
	ListUBS(ctx context.Context, tenantID int64, f UBSFilter) ([]*UBS, int, error)
	UpdateUBS(ctx context.Context, u *UBS) error
	MarkSubmitted(ctx context.Context, id int64, at time.Time, by int64) error
	SoftDeleteUBS(ctx context.Context, id int64) error
	PurgeUBS(ctx context.Context, id int64) error

	ListCatalog(ctx context.Context) ([]CatalogService, error)
	FindServices(ctx context.Context, ids []int64) ([]CatalogService, error)
	CountCatalog(ctx context.Context) (int, error)
	InsertCatalog(ctx context.Context, names []string) (int, error)
	ListUBSServices(ctx context.Context, ubsID int64) ([]CatalogService, error)
	ReplaceUBSServices(ctx context.Context, ubsID int64, serviceIDs []int64) error

	CreateIndicator(ctx context.Context, ind *Indicator) error
	ListIndicators(ctx context.Context, ubsID int64, f IndicatorFilter) ([]Indicator, error)
	GetIndicator(ctx context.Context, tenantID, id int64, forUpdate bool) (*Indicator, error)
	UpdateIndicator(ctx context.Context, ind *Indicator) error

	CreateProfessionalGroup(ctx context.Context, g *ProfessionalGroup) error
	ListProfessionalGroups(ctx context.Context, ubsID int64) ([]ProfessionalGroup, error)
	GetProfessionalGroup(ctx context.Context, tenantID, id int64, forUpdate bool) (*ProfessionalGroup, error)
	UpdateProfessionalGroup(ctx context.Context, g *ProfessionalGroup) error

	// Singletons return (nil, nil) when the UBS has none yet.
	GetTerritory(ctx context.Context, ubsID int64) (*TerritoryProfile, error)
	CreateTerritory(ctx context.Context, t *TerritoryProfile) error
	UpdateTerritory(ctx context.Context, t *TerritoryProfile) error
	GetNeeds(ctx context.Context, ubsID int64) (*Needs, error)
	CreateNeeds(ctx context.Context, n *Needs) error
	UpdateNeeds(ctx context.Context, n *Needs) error

	CreateAttachment(ctx context.Context, a *Attachment) error
	ListAttachments(ctx context.Context, ubsID int64) ([]Attachment, error)
	GetAttachment(ctx context.Context, ubsID, id int64) (*Attachment, error)
	DeleteAttachment(ctx context.Context, ubsID, id int64) error
}
