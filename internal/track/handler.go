package track

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/track-room-system/internal/auth"
	"github.com/track-room-system/pkg/database"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/rooms")
	{
		rooms.GET("/:id/queue", h.listQueue)
		rooms.POST("/:id/queue", h.addTrack)
		rooms.GET("/:id/events", h.subscribeSSE)
		rooms.GET("/:id/events/ws", h.subscribeWebSocket)
	}

	tracks := r.Group("/tracks")
	{
		tracks.POST("/find/youtube", h.findYouTube)
		tracks.GET("/search", h.search)
	}
}

type FindYouTubeRequest struct {
	RoomID    string `json:"room_uuid" binding:"required,uuid"`
	YouTubeID string `json:"youtube_id" binding:"required"`
}

func (h *Handler) findYouTube(c *gin.Context) {
	var req FindYouTubeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pretrackID, err := h.service.FindYouTube(
		c.Request.Context(), uuid.MustParse(req.RoomID), auth.MemberID(c), req.YouTubeID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"pretrack_uuid": pretrackID})
}

func (h *Handler) search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}

	candidates, err := h.service.Search(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tracks": candidates})
}

type AddTrackRequest struct {
	PretrackID string `json:"pretrack_uuid" binding:"required,uuid"`
}

func (h *Handler) addTrack(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}

	var req AddTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	queued, err := h.service.AddTrack(
		c.Request.Context(), roomID, auth.MemberID(c), uuid.MustParse(req.PretrackID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, queued)
}

func (h *Handler) listQueue(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}

	tracks, err := h.service.ListQueue(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tracks": tracks})
}

func roomParam(c *gin.Context) (uuid.UUID, bool) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return uuid.Nil, false
	}
	return roomID, true
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
