package diagnosis

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/SamuelFortes/plataforma-virtual/internal/platform/auth"
	"github.com/SamuelFortes/plataforma-virtual/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the diagnosis API on a group that already runs the
// JWT middleware.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/ubs")

	g.GET("/services/catalog", h.ListCatalog)

	g.POST("", h.CreateUBS)
	g.GET("", h.ListUBS)
	g.GET("/:id", h.GetUBS)
	g.PATCH("/:id", h.UpdateUBS)
	g.DELETE("/:id", h.DeleteUBS)

	g.GET("/:id/services", h.GetServices)
	g.PATCH("/:id/services", h.ReplaceServices)

	g.GET("/:id/indicators", h.ListIndicators)
	g.POST("/:id/indicators", h.CreateIndicator)
	g.GET("/indicators/:iid", h.GetIndicator)
	g.PATCH("/indicators/:iid", h.UpdateIndicator)

	g.GET("/:id/professionals", h.ListProfessionalGroups)
	g.POST("/:id/professionals", h.CreateProfessionalGroup)
	g.GET("/professionals/:gid", h.GetProfessionalGroup)
	g.PATCH("/professionals/:gid", h.UpdateProfessionalGroup)

	g.GET("/:id/territory", h.GetTerritory)
	g.PUT("/:id/territory", h.UpsertTerritory)
	g.GET("/:id/needs", h.GetNeeds)
	g.PUT("/:id/needs", h.UpsertNeeds)

	g.POST("/:id/submit", h.Submit)
	g.GET("/:id/diagnosis", h.GetDiagnosis)

	g.GET("/:id/attachments", h.ListAttachments)
	g.POST("/:id/attachments", h.UploadAttachment)
	g.GET("/:id/attachments/:aid/download", h.DownloadAttachment)
	g.DELETE("/:id/attachments/:aid", h.DeleteAttachment)

	g.GET("/:id/report.pdf", h.exportReport("pdf"))
	g.GET("/:id/report.xlsx", h.exportReport("xlsx"))
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// respondError maps domain errors onto HTTP responses.
func respondError(c echo.Context, err error) error {
	var (
		nf  *NotFoundError
		ve  *ValidationError
		sve *SubmissionValidationError
	)
	switch {
	case errors.As(err, &sve):
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"detail": sve.Detail(),
			"errors": sve.Errors,
		})
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, ve)
	case errors.As(err, &nf):
		return echo.NewHTTPError(http.StatusNotFound, nf.Message)
	case errors.Is(err, ErrUnsupportedFormat):
		return echo.NewHTTPError(http.StatusNotFound, "formato de relatório não suportado")
	case errors.Is(err, ErrStorageUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "armazenamento de anexos indisponível")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func bindBody(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	return nil
}

// -- Catalog and UBS --

func (h *Handler) ListCatalog(c echo.Context) error {
	items, err := h.svc.ListCatalog(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateUBS(c echo.Context) error {
	var in UBSInput
	if err := bindBody(c, &in); err != nil {
		return err
	}
	u, err := h.svc.CreateUBS(c.Request().Context(), auth.MustPrincipal(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) ListUBS(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := UBSFilter{
		Status: Status(c.QueryParam("status")),
		Limit:  pg.Limit(),
		Offset: pg.Offset(),
	}
	items, total, err := h.svc.ListUBS(c.Request().Context(), auth.MustPrincipal(c), f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetUBS(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	u, err := h.svc.GetUBS(c.Request().Context(), auth.MustPrincipal(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateUBS(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var patch UBSPatch
	if err := bindBody(c, &patch); err != nil {
		return err
	}
	u, err := h.svc.UpdateUBS(c.Request().Context(), auth.MustPrincipal(c), id, patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteUBS(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteUBS(c.Request().Context(), auth.MustPrincipal(c), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Services --

func (h *Handler) GetServices(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	view, err := h.svc.GetServices(c.Request().Context(), auth.MustPrincipal(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) ReplaceServices(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in ServicesInput
	if err := bindBody(c, &in); err != nil {
		return err
	}
	view, err := h.svc.ReplaceServices(c.Request().Context(), auth.MustPrincipal(c), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// -- Indicators --

func (h *Handler) ListIndicators(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	f := IndicatorFilter{
		TipoDado:          c.QueryParam("tipo_dado"),
		PeriodoReferencia: c.QueryParam("periodo_referencia"),
	}
	items, err := h.svc.ListIndicators(c.Request().Context(), auth.MustPrincipal(c), id, f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateIndicator(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in IndicatorInput
	if err := bindBody(c, &in); err != nil {
		return err
	}
	ind, err := h.svc.CreateIndicator(c.Request().Context(), auth.MustPrincipal(c), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, ind)
}

func (h *Handler) GetIndicator(c echo.Context) error {
	id, err := pathID(c, "iid")
	if err != nil {
		return err
	}
	ind, err := h.svc.GetIndicator(c.Request().Context(), auth.MustPrincipal(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ind)
}

func (h *Handler) UpdateIndicator(c echo.Context) error {
	id, err := pathID(c, "iid")
	if err != nil {
		return err
	}
	var patch IndicatorPatch
	if err := bindBody(c, &patch); err != nil {
		return err
	}
	ind, err := h.svc.UpdateIndicator(c.Request().Context(), auth.MustPrincipal(c), id, patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ind)
}

// -- Professional groups --

func (h *Handler) ListProfessionalGroups(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListProfessionalGroups(c.Request().Context(), auth.MustPrincipal(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateProfessionalGroup(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in ProfessionalGroupInput
	if err := bindBody(c, &in); err != nil {
		return err
	}
	g, err := h.svc.CreateProfessionalGroup(c.Request().Context(), auth.MustPrincipal(c), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, g)
}

func (h *Handler) GetProfessionalGroup(c echo.Context) error {
	id, err := pathID(c, "gid")
	if err != nil {
		return err
	}
	g, err := h.svc.GetProfessionalGroup(c.Request().Context(), auth.MustPrincipal(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) UpdateProfessionalGroup(c echo.Context) error {
	id, err := pathID(c, "gid")
	if err != nil {
		return err
	}
	var patch ProfessionalGroupPatch
	if err := bindBody(c, &patch); err != nil {
		return err
	}
	g, err := h.svc.UpdateProfessionalGroup(c.Request().Context(), auth.MustPrincipal(c), id, patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, g)
}

// -- Territory and needs --

func (h *Handler) GetTerritory(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.svc.GetTerritory(c.Request().Context(), auth.MustPrincipal(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) UpsertTerritory(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var patch TerritoryPatch
	if err := bindBody(c, &patch); err != nil {
		return err
	}
	t, err := h.svc.UpsertTerritory(c.Request().Context(), auth.MustPrincipal(c), id, patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) GetNeeds(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	n, err := h.svc.GetNeeds(c.Request().Context(), auth.MustPrincipal(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) UpsertNeeds(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var patch NeedsPatch
	if err := bindBody(c, &patch); err != nil {
		return err
	}
	n, err := h.svc.UpsertNeeds(c.Request().Context(), auth.MustPrincipal(c), id, patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, n)
}

// -- Submission and read model --

func (h *Handler) Submit(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.Submit(c.Request().Context(), auth.MustPrincipal(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetDiagnosis(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.GetDiagnosis(c.Request().Context(), auth.MustPrincipal(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// -- Attachments --

func (h *Handler) ListAttachments(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListAttachments(c.Request().Context(), auth.MustPrincipal(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UploadAttachment(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return respondError(c, requiredField("file"))
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid upload").SetInternal(err)
	}
	defer f.Close()

	up := Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Section:     c.FormValue("section"),
		Description: c.FormValue("description"),
		Body:        f,
	}
	a, err := h.svc.UploadAttachment(c.Request().Context(), auth.MustPrincipal(c), id, up)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) DownloadAttachment(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	aid, err := pathID(c, "aid")
	if err != nil {
		return err
	}
	a, rc, err := h.svc.OpenAttachment(c.Request().Context(), auth.MustPrincipal(c), id, aid)
	if err != nil {
		return respondError(c, err)
	}
	defer rc.Close()

	setDisposition(c, "attachment", a.OriginalFilename)
	return c.Stream(http.StatusOK, a.ContentType, rc)
}

func (h *Handler) DeleteAttachment(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	aid, err := pathID(c, "aid")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAttachment(c.Request().Context(), auth.MustPrincipal(c), id, aid); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Reports --

func (h *Handler) exportReport(format string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return err
		}
		r, err := h.svc.ExportReport(c.Request().Context(), auth.MustPrincipal(c), id, format)
		if err != nil {
			return respondError(c, err)
		}
		setDisposition(c, "attachment", r.Filename)
		return c.Blob(http.StatusOK, r.ContentType, r.Data)
	}
}

func setDisposition(c echo.Context, kind, filename string) {
	value := mime.FormatMediaType(kind, map[string]string{"filename": filename})
	if value == "" {
		value = kind
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, value)
}
