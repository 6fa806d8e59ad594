package room

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

// RegisterPublicRoutes adds routes reachable without a session.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/rooms")
	{
		rooms.POST("", h.createRoom)
		rooms.POST("/join", h.joinRoom)
	}
}

// RegisterRoutes adds session-protected routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/rooms")
	{
		rooms.GET("/:id", h.getRoom)
		rooms.GET("/:id/members", h.listMembers)
		rooms.POST("/:id/leave", h.leaveRoom)
	}
	r.GET("/members/me", h.getSelf)
}

type CreateRoomRequest struct {
	Name      string `json:"name" binding:"required,max=64"`
	OwnerName string `json:"owner_name" binding:"required,max=64"`
}

func (h *Handler) createRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.service.CreateRoom(c.Request.Context(), req.Name, req.OwnerName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

type JoinRoomRequest struct {
	JoinCode   string `json:"room_join_code" binding:"required,len=6"`
	MemberName string `json:"member_name" binding:"required,max=64"`
}

func (h *Handler) joinRoom(c *gin.Context) {
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.service.JoinRoom(c.Request.Context(), req.JoinCode, req.MemberName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *Handler) getRoom(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}

	info, err := h.service.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

func (h *Handler) listMembers(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}

	members, err := h.service.ListMembers(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (h *Handler) leaveRoom(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}

	result, err := h.service.LeaveRoom(c.Request.Context(), roomID, auth.MemberID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) getSelf(c *gin.Context) {
	member, err := h.service.GetMember(c.Request.Context(), auth.MemberID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, member)
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
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
