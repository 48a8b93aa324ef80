package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"menfess/internal/ledger"
	"menfess/internal/models"
)

// ViolatorHandler exposes the warning/ban ledger to moderators.
type ViolatorHandler interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Unban(c *gin.Context)
}

type violatorHandler struct {
	ledger *ledger.Ledger
	log    *logrus.Logger
}

func NewViolatorHandler(violationLedger *ledger.Ledger, log *logrus.Logger) ViolatorHandler {
	return &violatorHandler{ledger: violationLedger, log: log}
}

type violatorResponse struct {
	SubmitterID  int64               `json:"submitter_id"`
	DisplayName  string              `json:"display_name"`
	WarningCount uint                `json:"warning_count"`
	Banned       bool                `json:"banned"`
	Violations   []violationResponse `json:"violations"`
}

type violationResponse struct {
	Term       string `json:"term"`
	RawMessage string `json:"raw_message"`
	CreatedAt  string `json:"created_at"`
}

func toViolatorResponse(record *models.SubmitterRecord) violatorResponse {
	resp := violatorResponse{
		SubmitterID:  record.SubmitterID,
		DisplayName:  record.DisplayName,
		WarningCount: record.WarningCount,
		Banned:       record.Banned,
		Violations:   []violationResponse{},
	}
	for _, v := range record.Violations {
		resp.Violations = append(resp.Violations, violationResponse{
			Term:       v.Term,
			RawMessage: v.RawMessage, // verbatim, for moderator review
			CreatedAt:  v.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return resp
}

func (h *violatorHandler) List(c *gin.Context) {
	records, err := h.ledger.List()
	if err != nil {
		h.log.Errorf("Failed to list violators: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list violators"})
		return
	}

	out := make([]violatorResponse, 0, len(records))
	for _, record := range records {
		out = append(out, toViolatorResponse(record))
	}
	c.JSON(http.StatusOK, out)
}

func (h *violatorHandler) Get(c *gin.Context) {
	submitterID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid submitter id"})
		return
	}

	records, err := h.ledger.List()
	if err != nil {
		h.log.Errorf("Failed to list violators: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load violator"})
		return
	}
	for _, record := range records {
		if record.SubmitterID == submitterID {
			c.JSON(http.StatusOK, toViolatorResponse(record))
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Violator not found"})
}

// Unban clears the ban flag for a submitter. This is an administrative
// extension; the ledger itself never un-bans anyone.
func (h *violatorHandler) Unban(c *gin.Context) {
	submitterID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid submitter id"})
		return
	}

	if err := h.ledger.Unban(submitterID); err != nil {
		h.log.Errorf("Failed to unban submitter %d: %v", submitterID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unban submitter"})
		return
	}

	username := c.MustGet("username").(string)
	h.log.Infof("Submitter %d unbanned by %s", submitterID, username)
	c.JSON(http.StatusOK, gin.H{"message": "Submitter unbanned"})
}
