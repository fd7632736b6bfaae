package rooms

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/groupquest/partyboard/internal/gamedata"
	"github.com/groupquest/partyboard/internal/models"
	"github.com/groupquest/partyboard/internal/profiles"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func getAccountID(c *gin.Context) uuid.UUID {
	return uuid.MustParse(c.GetString("account_id"))
}

type createRequest struct {
	Title         string     `json:"title" binding:"required"`
	Description   string     `json:"description"`
	Activity      string     `json:"activity" binding:"required,oneof=boss hunt quest"`
	Targets       []string   `json:"targets"`
	MinLevel      int        `json:"min_level"`
	MaxMembers    int        `json:"max_members" binding:"required"`
	CharacterName string     `json:"character_name" binding:"required"`
	Email         string     `json:"email"`
	ScheduledFor  *time.Time `json:"scheduled_for"`
}

func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	room, err := h.svc.Create(c.Request.Context(), getAccountID(c), CreateParams{
		Title:         req.Title,
		Description:   req.Description,
		Activity:      req.Activity,
		Targets:       req.Targets,
		MinLevel:      req.MinLevel,
		MaxMembers:    req.MaxMembers,
		CharacterName: req.CharacterName,
		Email:         req.Email,
		ScheduledFor:  req.ScheduledFor,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.svc.ListActive(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	level, _ := strconv.Atoi(c.Query("level"))
	f := Filter{
		Query:    c.Query("q"),
		Activity: c.Query("activity"),
		World:    c.Query("world"),
		Level:    level,
	}
	c.JSON(http.StatusOK, gin.H{"rooms": f.Apply(rooms)})
}

func (h *Handler) ListMine(c *gin.Context) {
	rooms, err := h.svc.ListMine(c.Request.Context(), getAccountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *Handler) GetRoom(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid room ID",
		})
		return
	}

	room, err := h.svc.Get(c.Request.Context(), roomID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

type joinRequest struct {
	CharacterName string `json:"character_name" binding:"required"`
	Email         string `json:"email"`
	Switch        bool   `json:"switch"`
}

func (h *Handler) RequestJoin(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid room ID",
		})
		return
	}

	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "character_name is required",
		})
		return
	}

	err = h.svc.RequestJoin(c.Request.Context(), getAccountID(c), roomID, JoinParams{
		CharacterName: req.CharacterName,
		Email:         req.Email,
		Switch:        req.Switch,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Join request submitted"})
}

func (h *Handler) ApproveRequest(c *gin.Context) {
	h.requestAction(c, h.svc.Approve, "Join request approved")
}

func (h *Handler) RejectRequest(c *gin.Context) {
	h.requestAction(c, h.svc.Reject, "Join request rejected")
}

func (h *Handler) requestAction(c *gin.Context, fn func(ctx context.Context, owner, room, requester uuid.UUID) error, msg string) {
	roomID, err1 := uuid.Parse(c.Param("roomId"))
	requesterID, err2 := uuid.Parse(c.Param("accountId"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid room or account ID",
		})
		return
	}

	if err := fn(c.Request.Context(), getAccountID(c), roomID, requesterID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *Handler) RemoveMember(c *gin.Context) {
	roomID, err1 := uuid.Parse(c.Param("roomId"))
	targetID, err2 := uuid.Parse(c.Param("accountId"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid room or account ID",
		})
		return
	}

	if err := h.svc.RemoveMember(c.Request.Context(), getAccountID(c), roomID, targetID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}

func (h *Handler) Leave(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid room ID",
		})
		return
	}

	if err := h.svc.Leave(c.Request.Context(), getAccountID(c), roomID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left room"})
}

func (h *Handler) DeleteRoom(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid room ID",
		})
		return
	}

	if err := h.svc.Delete(c.Request.Context(), getAccountID(c), roomID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Room deleted"})
}

// --- Internal endpoints (service-to-service) ---

func (h *Handler) GetRoomInternal(c *gin.Context) {
	h.GetRoom(c)
}

func (h *Handler) GetPlayerRooms(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid user ID",
		})
		return
	}

	rooms, err := h.svc.ListMine(c.Request.Context(), accountID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// --- Error mapping ---

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid_request", Message: err.Error()})
	case errors.Is(err, gamedata.ErrCharacterNotFound):
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Error: "character_not_found", Message: "Character could not be validated"})
	case errors.Is(err, ErrRoomNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "room_not_found", Message: "Room not found"})
	case errors.Is(err, ErrRequestNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "request_not_found", Message: "Join request not found"})
	case errors.Is(err, ErrMemberNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "member_not_found", Message: "That player is not in this room"})
	case errors.Is(err, ErrNotOwner):
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "not_owner", Message: "Only the room owner can do this"})
	case errors.Is(err, ErrRoomFull):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "room_full", Message: "Room is full"})
	case errors.Is(err, ErrAlreadyMember):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "already_member", Message: "You are already in this room"})
	case errors.Is(err, ErrAlreadyInRoom):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "already_in_room", Message: "You are already in a room. Leave first or pass switch."})
	case errors.Is(err, ErrDuplicateRequest):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "duplicate_request", Message: "You already requested to join this room"})
	case errors.Is(err, ErrOwnerCannotLeave):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "owner_cannot_leave", Message: "The owner cannot leave. Delete the room instead."})
	case errors.Is(err, ErrCannotRemoveOwner):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "cannot_remove_owner", Message: "The owner cannot be removed"})
	case errors.Is(err, profiles.ErrDailyLimitReached):
		c.JSON(http.StatusTooManyRequests, models.ErrorResponse{Error: "daily_limit", Message: "Daily room creation limit reached"})
	case errors.Is(err, profiles.ErrRoomLimitReached):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "room_limit", Message: "You already own an active room"})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal_error", Message: "Something went wrong"})
	}
}
