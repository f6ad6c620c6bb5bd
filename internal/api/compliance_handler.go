package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/banking/regional-compliance/internal/crypto"
	"github.com/banking/regional-compliance/internal/domain"
	"github.com/banking/regional-compliance/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TenantHeader names the tenant a request is made on behalf of
const TenantHeader = "X-Tenant-ID"

type ComplianceHandler struct {
	compliance *service.ComplianceService
	decisions  *service.DecisionRecorder
	logger     *zap.Logger
	maskPII    bool
}

func NewComplianceHandler(compliance *service.ComplianceService, decisions *service.DecisionRecorder, logger *zap.Logger, maskPII bool) *ComplianceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplianceHandler{
		compliance: compliance,
		decisions:  decisions,
		logger:     logger,
		maskPII:    maskPII,
	}
}

// target reads the routing hints: tenant header, ?provider= and ?country=
func target(c echo.Context) service.Target {
	tenant := c.Request().Header.Get(TenantHeader)
	if tenant == "" {
		tenant = c.QueryParam("tenant_id")
	}
	return service.Target{
		TenantID:          tenant,
		PreferredProvider: c.QueryParam("provider"),
		CountryHint:       c.QueryParam("country"),
	}
}

func (h *ComplianceHandler) email(v string) string {
	if h.maskPII {
		return crypto.MaskPII(v, "email")
	}
	return v
}

// PerformKYC handles POST /compliance/kyc
func (h *ComplianceHandler) PerformKYC(c echo.Context) error {
	var req domain.KYCRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.compliance.PerformKYC(c.Request().Context(), target(c), req)
	if err != nil {
		return h.respondError(c, err)
	}
	h.logger.Info("KYC performed",
		zap.String("provider", res.Provider),
		zap.String("user_email", h.email(req.User.Email)),
		zap.Bool("verified", res.Verified),
	)
	return c.JSON(http.StatusOK, res)
}

// CheckAML handles POST /compliance/aml
func (h *ComplianceHandler) CheckAML(c echo.Context) error {
	var req domain.AMLRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.compliance.CheckAML(c.Request().Context(), target(c), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// CheckSanctions handles POST /compliance/sanctions
func (h *ComplianceHandler) CheckSanctions(c echo.Context) error {
	var req domain.SanctionsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.compliance.CheckSanctions(c.Request().Context(), target(c), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type monitoringRequest struct {
	UserID       string                  `json:"user_id"`
	LookbackDays int                     `json:"lookback_days"`
	Checks       *domain.MonitoringFlags `json:"checks"`
}

// MonitorTransactions handles POST /compliance/monitoring
func (h *ComplianceHandler) MonitorTransactions(c echo.Context) error {
	var body monitoringRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.LookbackDays < 0 {
		return badRequest(c, "lookback_days must not be negative")
	}

	req := domain.MonitoringRequest{
		UserID:         body.UserID,
		LookbackPeriod: time.Duration(body.LookbackDays) * 24 * time.Hour,
		Checks:         domain.AllMonitoringChecks(),
	}
	if body.Checks != nil {
		req.Checks = *body.Checks
	}

	res, err := h.compliance.MonitorTransactions(c.Request().Context(), target(c), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// PerformComprehensiveCheck handles POST /compliance/comprehensive
func (h *ComplianceHandler) PerformComprehensiveCheck(c echo.Context) error {
	var req domain.ComprehensiveRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.compliance.PerformComprehensiveCheck(c.Request().Context(), target(c), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// GenerateReport handles POST /compliance/reports
func (h *ComplianceHandler) GenerateReport(c echo.Context) error {
	var req domain.ReportRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	report, err := h.compliance.GenerateReport(c.Request().Context(), target(c), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, report)
}

// SubmitReport handles POST /compliance/reports/submit
func (h *ComplianceHandler) SubmitReport(c echo.Context) error {
	var report domain.ComplianceReport
	if err := c.Bind(&report); err != nil {
		return badRequest(c, "invalid request body")
	}
	if report.ReportID == "" {
		return badRequest(c, "missing report_id")
	}

	res, err := h.compliance.SubmitReport(c.Request().Context(), target(c), &report)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// GetReport handles GET /compliance/reports/:report_id
func (h *ComplianceHandler) GetReport(c echo.Context) error {
	report, err := h.compliance.GetReport(c.Request().Context(), target(c), c.Param("report_id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// UpdateReportStatus handles PATCH /compliance/reports/:report_id/status
func (h *ComplianceHandler) UpdateReportStatus(c echo.Context) error {
	var body struct {
		Status domain.ReportStatus `json:"status"`
	}
	if err := c.Bind(&body); err != nil || body.Status == "" {
		return badRequest(c, "missing status")
	}

	report, err := h.compliance.UpdateReportStatus(c.Request().Context(), target(c), c.Param("report_id"), body.Status)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// GetRegulatoryLimits handles GET /compliance/limits
func (h *ComplianceHandler) GetRegulatoryLimits(c echo.Context) error {
	limits, err := h.compliance.GetRegulatoryLimits(c.Request().Context(), target(c), c.QueryParam("currency"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, limits)
}

// GetRequiredKYCLevel handles GET /compliance/kyc-level
func (h *ComplianceHandler) GetRequiredKYCLevel(c echo.Context) error {
	amount, err := decimal.NewFromString(c.QueryParam("amount"))
	if err != nil {
		return badRequest(c, "invalid amount")
	}
	op := domain.TransactionType(c.QueryParam("operation"))

	level, err := h.compliance.GetRequiredKYCLevel(c.Request().Context(), target(c), op, amount, c.QueryParam("currency"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"required_kyc_level": string(level)})
}

// IsOperationCompliant handles POST /compliance/operations/:operation/compliance
func (h *ComplianceHandler) IsOperationCompliant(c echo.Context) error {
	var octx domain.OperationContext
	if err := c.Bind(&octx); err != nil {
		return badRequest(c, "invalid request body")
	}
	op := domain.TransactionType(c.Param("operation"))

	decision, err := h.compliance.IsOperationCompliant(c.Request().Context(), target(c), op, octx)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, decision)
}

// GetRiskScore handles GET /compliance/users/:user_id/risk-score
func (h *ComplianceHandler) GetRiskScore(c echo.Context) error {
	score, ok, err := h.compliance.LastRiskScore(c.Request().Context(), target(c), c.Param("user_id"))
	if err != nil {
		return h.respondError(c, err)
	}
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no risk score recorded for user"})
	}
	return c.JSON(http.StatusOK, score)
}

// ListProviders handles GET /compliance/providers
func (h *ComplianceHandler) ListProviders(c echo.Context) error {
	return c.JSON(http.StatusOK, h.compliance.ListProviders())
}

// GetAvailableProviders handles GET /compliance/providers/available
func (h *ComplianceHandler) GetAvailableProviders(c echo.Context) error {
	providers, err := h.compliance.GetAvailableProviders(c.Request().Context(), target(c).TenantID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, providers)
}

// GetProviderCapabilities handles GET /compliance/providers/:name/capabilities
func (h *ComplianceHandler) GetProviderCapabilities(c echo.Context) error {
	caps, err := h.compliance.GetProviderCapabilities(c.Param("name"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, caps)
}

func decisionFilter(c echo.Context) (domain.DecisionFilter, error) {
	filter := domain.DecisionFilter{Limit: 50}
	if v := c.QueryParam("decision_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, err
		}
		filter.DecisionID = &id
	}
	if v := c.QueryParam("user_id"); v != "" {
		filter.UserID = &v
	}
	if v := c.QueryParam("subject_id"); v != "" {
		filter.SubjectID = &v
	}
	if v := c.QueryParam("kind"); v != "" {
		kind := domain.DecisionKind(v)
		filter.Kind = &kind
	}
	if v := c.QueryParam("provider"); v != "" {
		filter.Provider = &v
	}
	for param, dst := range map[string]**time.Time{"start": &filter.StartTime, "end": &filter.EndTime} {
		if v := c.QueryParam(param); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return filter, err
			}
			*dst = &t
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return filter, strconv.ErrSyntax
		}
		filter.Limit = n
	}
	filter.Offset, _ = strconv.Atoi(c.QueryParam("offset"))
	return filter, nil
}

// GetDecisions handles GET /compliance/decisions
func (h *ComplianceHandler) GetDecisions(c echo.Context) error {
	filter, err := decisionFilter(c)
	if err != nil {
		return badRequest(c, "invalid decision filter")
	}

	page, err := h.decisions.GetDecisions(c.Request().Context(), filter)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// VerifyDecision handles GET /compliance/decisions/:decision_id/verify
func (h *ComplianceHandler) VerifyDecision(c echo.Context) error {
	id := c.Param("decision_id")
	valid, err := h.decisions.VerifyDecision(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"decision_id": id, "valid": valid})
}

// SearchDecisions handles GET /compliance/decisions/search
func (h *ComplianceHandler) SearchDecisions(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return badRequest(c, "missing query parameter 'q'")
	}

	from, _ := strconv.Atoi(c.QueryParam("from"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	if size == 0 {
		size = 20
	}

	page, err := h.decisions.SearchDecisions(c.Request().Context(), query, from, size)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// RegisterRoutes registers the API routes
func (h *ComplianceHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/kyc", h.PerformKYC)
	g.POST("/aml", h.CheckAML)
	g.POST("/sanctions", h.CheckSanctions)
	g.POST("/monitoring", h.MonitorTransactions)
	g.POST("/comprehensive", h.PerformComprehensiveCheck)

	g.POST("/reports", h.GenerateReport)
	g.POST("/reports/submit", h.SubmitReport)
	g.GET("/reports/:report_id", h.GetReport)
	g.PATCH("/reports/:report_id/status", h.UpdateReportStatus)

	g.GET("/limits", h.GetRegulatoryLimits)
	g.GET("/kyc-level", h.GetRequiredKYCLevel)
	g.POST("/operations/:operation/compliance", h.IsOperationCompliant)
	g.GET("/users/:user_id/risk-score", h.GetRiskScore)

	g.GET("/providers", h.ListProviders)
	g.GET("/providers/available", h.GetAvailableProviders)
	g.GET("/providers/:name/capabilities", h.GetProviderCapabilities)

	g.GET("/decisions", h.GetDecisions)
	g.GET("/decisions/search", h.SearchDecisions)
	g.GET("/decisions/:decision_id/verify", h.VerifyDecision)
}
