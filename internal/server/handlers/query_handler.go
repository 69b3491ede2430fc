package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/repository"
)

// QueryHandler serves read-only views over the aggregates.
type QueryHandler struct {
	store  repository.Store
	logger *zap.Logger
}

// NewQueryHandler constructs the read-side handler.
func NewQueryHandler(store repository.Store, logger *zap.Logger) *QueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{store: store, logger: logger}
}

// ListInventory returns inventory items, optionally filtered by type.
func (h *QueryHandler) ListInventory(c *gin.Context) {
	filter := repository.InventoryFilter{
		Type:         models.ItemType(c.Query("type")),
		PositiveOnly: c.Query("in_stock") == "true",
	}
	items, err := h.store.ListInventoryItems(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// ItemLogs returns the movement history of one inventory item.
func (h *QueryHandler) ItemLogs(c *gin.Context) {
	logs, err := h.store.ListInventoryLogs(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// DailyByDate returns one day's aggregate.
func (h *QueryHandler) DailyByDate(c *gin.Context) {
	row, err := h.store.DailyByDate(c.Request.Context(), c.Param("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// DailyRange returns daily aggregates between from and to, inclusive.
func (h *QueryHandler) DailyRange(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to are required"})
		return
	}
	rows, err := h.store.ListDailyRange(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ListFlocks returns flocks; active=true narrows to active flocks.
func (h *QueryHandler) ListFlocks(c *gin.Context) {
	flocks, err := h.store.ListFlocks(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, flocks)
}

// FlockVaccinations returns one flock's vaccination history.
func (h *QueryHandler) FlockVaccinations(c *gin.Context) {
	records, err := h.store.ListVaccinations(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// ListContacts returns contacts, optionally narrowed by role.
func (h *QueryHandler) ListContacts(c *gin.Context) {
	contacts, err := h.store.ListContacts(c.Request.Context(), models.ContactRole(c.Query("role")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, contacts)
}

// LedgerRange returns financial ledger rows between from and to, inclusive.
func (h *QueryHandler) LedgerRange(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to are required"})
		return
	}
	rows, err := h.store.ListLedger(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *QueryHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	h.logger.Error("query failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
