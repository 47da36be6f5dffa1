package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/olvesh/airsportslivetracking/internal/feed"
	"github.com/olvesh/airsportslivetracking/internal/models"
	"github.com/olvesh/airsportslivetracking/internal/repository"
	"github.com/olvesh/airsportslivetracking/pkg/utils"
)

// defaultTrackLimit количество точек трека по умолчанию
const defaultTrackLimit = 2000

// RESTHandler обработчик REST API endpoints
type RESTHandler struct {
	live    repository.LiveRepository
	tasks   repository.TaskRepository
	logger  *utils.Logger
	timeout time.Duration
}

// competitorView участник вместе с его живым состоянием
type competitorView struct {
	Competitor *models.Competitor      `json:"competitor"`
	State      *models.CompetitorState `json:"state,omitempty"`
}

// NewRESTHandler создает новый REST handler
func NewRESTHandler(live repository.LiveRepository, tasks repository.TaskRepository, logger *utils.Logger) *RESTHandler {
	return &RESTHandler{
		live:    live,
		tasks:   tasks,
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

// GetCompetitors возвращает участников с их живыми состояниями
// GET /api/v1/competitors
func (h *RESTHandler) GetCompetitors(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	competitors, err := h.tasks.LoadCompetitors(ctx)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to load competitors")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "Failed to retrieve competitors",
		})
		return
	}

	views := make([]*competitorView, 0, len(competitors))
	for _, competitor := range competitors {
		view := &competitorView{Competitor: competitor}

		// Отсутствие состояния не ошибка, расчет мог не начаться
		state, err := h.live.GetCompetitorState(ctx, competitor.ID)
		if err != nil {
			h.logger.WithFields(map[string]interface{}{
				"competitor_id": competitor.ID,
				"error":         err,
			}).Warn("Failed to load competitor state")
		} else {
			view.State = state
		}

		views = append(views, view)
	}

	c.JSON(http.StatusOK, gin.H{
		"competitors": views,
		"count":       len(views),
	})
}

// GetCompetitor возвращает одного участника с состоянием
// GET /api/v1/competitors/:id
func (h *RESTHandler) GetCompetitor(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	competitorID, ok := h.competitorID(c)
	if !ok {
		return
	}

	competitor, err := h.tasks.GetCompetitor(ctx, competitorID)
	if err != nil {
		h.competitorError(c, competitorID, err)
		return
	}

	view := &competitorView{Competitor: competitor}
	if state, err := h.live.GetCompetitorState(ctx, competitorID); err == nil {
		view.State = state
	}

	c.JSON(http.StatusOK, view)
}

// GetScoreLog возвращает журнал начислений участника
// GET /api/v1/competitors/:id/score
func (h *RESTHandler) GetScoreLog(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	competitorID, ok := h.competitorID(c)
	if !ok {
		return
	}

	entries, err := h.live.GetScoreLog(ctx, competitorID)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to load score log")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "Failed to retrieve score log",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"competitor_id": competitorID,
		"entries":       entries,
		"count":         len(entries),
	})
}

// GetAnnotations возвращает аннотации трека участника
// GET /api/v1/competitors/:id/annotations
func (h *RESTHandler) GetAnnotations(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	competitorID, ok := h.competitorID(c)
	if !ok {
		return
	}

	annotations, err := h.live.GetAnnotations(ctx, competitorID)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to load annotations")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "Failed to retrieve annotations",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"competitor_id": competitorID,
		"annotations":   annotations,
		"count":         len(annotations),
	})
}

// GetGateCrossings возвращает пересечения гейтов участника
// GET /api/v1/competitors/:id/gates
func (h *RESTHandler) GetGateCrossings(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	competitorID, ok := h.competitorID(c)
	if !ok {
		return
	}

	crossings, err := h.live.GetGateCrossings(ctx, competitorID)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to load gate crossings")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "Failed to retrieve gate crossings",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"competitor_id": competitorID,
		"gates":         crossings,
		"count":         len(crossings),
	})
}

// GetRoute возвращает маршрут участника вместе с вьюпортом карты
// GET /api/v1/competitors/:id/route
func (h *RESTHandler) GetRoute(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	competitorID, ok := h.competitorID(c)
	if !ok {
		return
	}

	competitor, err := h.tasks.GetCompetitor(ctx, competitorID)
	if err != nil {
		h.competitorError(c, competitorID, err)
		return
	}

	route, err := h.tasks.LoadRoute(ctx, competitor.RouteID)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to load route")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "Failed to retrieve route",
		})
		return
	}

	// Вьюпорт карты: рамка маршрута с полями в 5% диагонали,
	// но не меньше двух километров
	bounds := route.Bounds()
	padding := bounds.DiagonalKm() * 0.05
	if padding < 2 {
		padding = 2
	}

	c.JSON(http.StatusOK, gin.H{
		"competitor_id": competitorID,
		"route":         route,
		"viewport":      bounds.Expand(padding),
	})
}

// GetTrack возвращает сохраненный трек участника
// GET /api/v1/competitors/:id/track?limit=500
func (h *RESTHandler) GetTrack(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	competitorID, ok := h.competitorID(c)
	if !ok {
		return
	}

	limit := defaultTrackLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "invalid_limit",
				"message": "Limit must be a positive integer",
			})
			return
		}
		limit = parsed
	}

	track, err := h.live.GetTrack(ctx, competitorID, limit)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to load track")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "Failed to retrieve track",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"competitor_id": competitorID,
		"track":         track,
		"count":         len(track),
	})
}

// PostTerminate запрашивает досрочное завершение расчета участника
// POST /api/v1/competitors/:id/terminate
func (h *RESTHandler) PostTerminate(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	competitorID, ok := h.competitorID(c)
	if !ok {
		return
	}

	// Завершать можно только существующего участника
	if _, err := h.tasks.GetCompetitor(ctx, competitorID); err != nil {
		h.competitorError(c, competitorID, err)
		return
	}

	if err := h.live.RequestTermination(ctx, competitorID); err != nil {
		h.logger.WithField("error", err).Error("Failed to request termination")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "Failed to request termination",
		})
		return
	}

	h.logger.WithField("competitor_id", competitorID).Info("Termination requested")

	c.JSON(http.StatusAccepted, gin.H{
		"competitor_id": competitorID,
		"status":        "termination_requested",
	})
}

// competitorID разбирает параметр :id, при ошибке пишет ответ сам
func (h *RESTHandler) competitorID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_competitor_id",
			"message": "Competitor ID must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

// competitorError пишет ответ об ошибке загрузки участника
func (h *RESTHandler) competitorError(c *gin.Context, competitorID int, err error) {
	if errors.Is(err, feed.ErrCompetitorNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "competitor_not_found",
			"message": "Competitor does not exist",
		})
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"competitor_id": competitorID,
		"error":         err,
	}).Error("Failed to load competitor")

	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "Failed to retrieve competitor",
	})
}
