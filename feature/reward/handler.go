package reward

import (
	"errors"
	"strings"

	"reward-settler/core/logger"
	"reward-settler/feature/reward/models"
	"reward-settler/feature/reward/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for reward settlement operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the reward routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/rewards")
	group.Post("/", h.HandleCreateReward)
	group.Get("/", h.HandleListRewards)
	group.Get("/:id", h.HandleGetReward)
	group.Post("/:id/repair", h.HandleRepair)
	group.Post("/:id/reopen", h.HandleReopen)
	group.Post("/repair", h.HandleRepairLatestPending)

	app.Post("/reconcile/run", h.HandleRunReconcile)
	app.Post("/settle/run", h.HandleRunSettlement)
	app.Post("/audit/export", h.HandleExportAudit)
}

type createRewardRequest struct {
	RecipientAddress string `json:"recipient_address"`
	Amount           int64  `json:"amount"`
	SourceReference  string `json:"source_reference"`
}

// HandleCreateReward records a new reward intent.
// @Summary Create Reward
// @Description Record a reward intent in state pending; the settlement worker picks it up.
// @Tags rewards
// @Accept json
// @Produce json
// @Param request body createRewardRequest true "Reward intent"
// @Success 201 {object} models.RewardRecord "Created record"
// @Failure 400 {object} map[string]string "Validation error"
// @Router /rewards [post]
func (h *Handler) HandleCreateReward(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req createRewardRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	rec := &models.RewardRecord{
		RecipientAddress: req.RecipientAddress,
		Amount:           req.Amount,
		SourceReference:  req.SourceReference,
	}
	if err := h.service.CreateReward(c.Context(), rec); err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Error()})
		}
		l.Error("Create reward failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(rec)
}

// HandleListRewards lists reward records, filterable by status.
// @Summary List Rewards
// @Description List reward records. Use status=anomalous,failed to pull the operator review queue.
// @Tags rewards
// @Produce json
// @Param status query string false "Comma-separated statuses"
// @Param recipient query string false "Recipient address"
// @Param cursor query string false "Last seen record ID"
// @Param limit query int false "Page size"
// @Success 200 {array} models.RewardRecord "Records"
// @Router /rewards [get]
func (h *Handler) HandleListRewards(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var statuses []models.Status
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			s := models.Status(strings.TrimSpace(part))
			if !s.Valid() {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown status: " + string(s)})
			}
			statuses = append(statuses, s)
		}
	}

	recs, err := h.service.ListRewards(c.Context(), store.Filter{
		Statuses:  statuses,
		Recipient: c.Query("recipient"),
		Cursor:    c.Query("cursor"),
		Limit:     c.QueryInt("limit"),
	})
	if err != nil {
		l.Error("List rewards failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(recs)
}

// HandleGetReward returns a single reward record.
// @Summary Get Reward
// @Description Get one reward record by ID.
// @Tags rewards
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} models.RewardRecord "Record"
// @Failure 404 {object} map[string]string "Not found"
// @Router /rewards/{id} [get]
func (h *Handler) HandleGetReward(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	rec, err := h.service.GetReward(c.Context(), c.Params("id"))
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "record not found"})
	}
	if err != nil {
		l.Error("Get reward failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(rec)
}

type repairRequest struct {
	TransactionRef   string `json:"transaction_ref"`
	RecipientAddress string `json:"recipient_address,omitempty"`
}

// HandleRepair force-completes a record with an operator-supplied reference.
// @Summary Repair Reward
// @Description Attach a known ledger reference to a record and force-complete it.
// @Tags repair
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param request body repairRequest true "Ledger reference"
// @Success 200 {object} repair.Result "Repair outcome"
// @Router /rewards/{id}/repair [post]
func (h *Handler) HandleRepair(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req repairRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.TransactionRef == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "transaction_ref is required"})
	}

	res, err := h.service.Repair(c.Context(), c.Params("id"), req.TransactionRef)
	if err != nil {
		l.Error("Repair failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(res)
}

// HandleRepairLatestPending repairs the recipient's most recent pending record.
// @Summary Repair Latest Pending
// @Description Attach a known ledger reference to the recipient's most recent pending record.
// @Tags repair
// @Accept json
// @Produce json
// @Param request body repairRequest true "Recipient and ledger reference"
// @Success 200 {object} repair.Result "Repair outcome"
// @Router /rewards/repair [post]
func (h *Handler) HandleRepairLatestPending(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req repairRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.TransactionRef == "" || req.RecipientAddress == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "recipient_address and transaction_ref are required"})
	}

	res, err := h.service.RepairLatestPending(c.Context(), req.RecipientAddress, req.TransactionRef)
	if err != nil {
		l.Error("Repair failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(res)
}

// HandleReopen returns a failed record to pending.
// @Summary Reopen Failed Reward
// @Description Manually reopen a failed record so the worker resubmits it.
// @Tags repair
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} repair.Result "Reopen outcome"
// @Router /rewards/{id}/reopen [post]
func (h *Handler) HandleReopen(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	res, err := h.service.Reopen(c.Context(), c.Params("id"))
	if err != nil {
		l.Error("Reopen failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(res)
}

// HandleRunReconcile triggers one reconciliation pass.
// @Summary Run Reconciliation
// @Description Cross-reference non-terminal records against the ledger and repair divergence.
// @Tags reconcile
// @Produce json
// @Success 200 {object} reconcile.Summary "Pass summary"
// @Router /reconcile/run [post]
func (h *Handler) HandleRunReconcile(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	sum, err := h.service.RunReconcile(c.Context())
	if err != nil {
		l.Error("Reconciliation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(sum)
}

// HandleRunSettlement triggers one settlement cycle.
// @Summary Run Settlement Cycle
// @Description Submit due pending records to the ledger, then reconcile.
// @Tags settle
// @Produce json
// @Success 200 {object} settle.CycleSummary "Cycle summary"
// @Router /settle/run [post]
func (h *Handler) HandleRunSettlement(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	sum, err := h.service.RunSettlement(c.Context())
	if err != nil {
		l.Error("Settlement cycle failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(sum)
}

type exportRequest struct {
	Statuses []models.Status `json:"statuses"`
}

// HandleExportAudit writes an audit snapshot to the archive.
// @Summary Export Audit Report
// @Description Export reward records (default: anomalous and failed) to the audit archive.
// @Tags audit
// @Accept json
// @Produce json
// @Param request body exportRequest false "Statuses to export"
// @Success 200 {object} map[string]string "Object name"
// @Router /audit/export [post]
func (h *Handler) HandleExportAudit(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req exportRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}
	for _, s := range req.Statuses {
		if !s.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown status: " + string(s)})
		}
	}

	object, err := h.service.ExportAudit(c.Context(), req.Statuses)
	if err != nil {
		l.Error("Audit export failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"object": object})
}
