package rooms

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hilthontt/tunesync/internal/domain"
	"github.com/hilthontt/tunesync/internal/infrastructure/json"
	"github.com/hilthontt/tunesync/internal/infrastructure/metrics"
	"github.com/hilthontt/tunesync/internal/infrastructure/ws"
)

type Handler struct {
	roomRepository domain.RoomRepository
	songRepository domain.SongRepository
	core           *ws.Core
	upgrader       websocket.Upgrader
}

func NewHandler(
	roomRepository domain.RoomRepository,
	songRepository domain.SongRepository,
	core *ws.Core,
) *Handler {
	return &Handler{
		roomRepository: roomRepository,
		songRepository: songRepository,
		core:           core,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// CreateRoomHandler godoc
// @Summary      Create a new listening room
// @Description  Creates a room with the caller as admin and returns its metadata
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Param        request body createRoomRequest true "Room creation parameters"
// @Success      201 {object} domain.RoomMeta "Room created successfully"
// @Failure      400 {object} map[string]interface{} "Bad request - invalid room id or user name"
// @Failure      409 {object} map[string]interface{} "Conflict - room already exists"
// @Failure      500 {object} map[string]interface{} "Internal server error"
// @Router       /rooms [post]
func (h *Handler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	if err := domain.ValidateName(req.RoomID); err != nil {
		json.WriteError(w, http.StatusBadRequest, err, "Invalid room id")
		return
	}
	if err := domain.ValidateName(req.UserName); err != nil {
		json.WriteError(w, http.StatusBadRequest, err, "Invalid user name")
		return
	}

	newRoom := &domain.Room{
		ID:        req.RoomID,
		CreatedAt: time.Now().UTC(),
		Members:   []string{req.UserName},
	}

	ctx := r.Context()
	if err := h.roomRepository.Create(ctx, newRoom); err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomAlreadyExists):
			json.WriteError(w, http.StatusConflict, err, "Room already exists")
		case errors.Is(err, domain.ErrQuotaExceeded):
			json.WriteError(w, http.StatusServiceUnavailable, err, "Too many active rooms")
		default:
			log.Printf("Repository error creating room %s: %v", newRoom.ID, err)
			json.WriteInternalError(w, err)
		}
		return
	}

	metrics.RoomsCreated.Inc()

	json.Write(w, http.StatusCreated, h.metaFor(r, newRoom))
}

// GetRoomHandler godoc
// @Summary      Get room metadata
// @Description  Returns the room's creation time, song count and playback flags
// @Tags         rooms
// @Produce      json
// @Param        roomId path string true "Room ID"
// @Success      200 {object} domain.RoomMeta "Room metadata"
// @Failure      404 {object} map[string]interface{} "Room not found"
// @Failure      410 {object} map[string]interface{} "Room expired"
// @Router       /rooms/{roomId} [get]
func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	json.Write(w, http.StatusOK, h.metaFor(r, room))
}

// CheckRoomHandler reports whether a room id is currently taken, used
// before creating or joining.
func (h *Handler) CheckRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		json.WriteValidationError(w, errors.New("room ID is missing"))
		return
	}

	exists, err := h.roomRepository.Exists(r.Context(), roomID)
	if err != nil {
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusOK, existsResponse{RoomID: roomID, Exists: exists})
}

// NameAvailableHandler reports whether a member name is still free in
// the room. Joining with a taken name is treated as a reconnect, so
// clients check here before picking one.
func (h *Handler) NameAvailableHandler(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("user")
	if err := domain.ValidateName(name); err != nil {
		json.WriteError(w, http.StatusBadRequest, err, "Invalid member name")
		return
	}

	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	json.Write(w, http.StatusOK, nameAvailableResponse{
		RoomID:    room.ID,
		UserName:  name,
		Available: !room.HasMember(name),
		RoomFull:  len(room.Members) >= domain.MaxMembers,
	})
}

// GetMembersHandler godoc
// @Summary      List room members
// @Tags         rooms
// @Produce      json
// @Param        roomId path string true "Room ID"
// @Success      200 {object} membersResponse "Current members, admin first"
// @Failure      404 {object} map[string]interface{} "Room not found"
// @Router       /rooms/{roomId}/members [get]
func (h *Handler) GetMembersHandler(w http.ResponseWriter, r *http.Request) {
	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	json.Write(w, http.StatusOK, membersResponse{
		RoomID:  room.ID,
		Admin:   room.Admin(),
		Members: room.Members,
	})
}

// JoinRoomHandler godoc
// @Summary      Join a room via WebSocket
// @Description  Admits the member and upgrades the connection to the room's event channel
// @Tags         rooms
// @Param        roomId path string true "Room ID"
// @Param        user query string true "Member name"
// @Success      101 {object} map[string]interface{} "Switching Protocols"
// @Failure      400 {object} map[string]interface{} "Bad request - invalid member name"
// @Failure      403 {object} map[string]interface{} "Room is full"
// @Failure      404 {object} map[string]interface{} "Room not found"
// @Failure      410 {object} map[string]interface{} "Room expired"
// @Router       /rooms/{roomId}/ws [get]
func (h *Handler) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("user")
	if err := domain.ValidateName(username); err != nil {
		json.WriteError(w, http.StatusBadRequest, err, "Invalid member name")
		return
	}

	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	// A name already on the roster is a reconnect, not a new admission.
	if !room.HasMember(username) {
		if err := room.AddMember(username); err != nil {
			switch {
			case errors.Is(err, domain.ErrRoomFull):
				json.WriteError(w, http.StatusForbidden, err, "Room is full")
			default:
				json.WriteError(w, http.StatusBadRequest, err, "Cannot join room")
			}
			return
		}

		if err := h.roomRepository.Update(r.Context(), room); err != nil {
			log.Printf("Failed to persist room %s after new member join: %v", room.ID, err)
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed for room %s: %v", room.ID, err)
		return
	}

	client := ws.NewClient(conn, uuid.NewString(), room.ID, username)

	h.core.Register() <- client

	go client.WriteMessage()
	go client.ReadMessage(h.core)

	log.Printf("User %s connected to room %s", username, room.ID)
}

// RemoveMemberHandler godoc
// @Summary      Remove a member from the room
// @Description  Admin-only. Broadcasts the removal so the member's own client disconnects itself
// @Tags         rooms
// @Accept       json
// @Param        roomId path string true "Room ID"
// @Param        request body removeMemberRequest true "Member to remove and the admin requesting it"
// @Success      204 "Member removed"
// @Failure      400 {object} map[string]interface{} "Bad request - cannot remove yourself"
// @Failure      401 {object} map[string]interface{} "Unauthorized - not the admin"
// @Failure      404 {object} map[string]interface{} "Room or member not found"
// @Router       /rooms/{roomId}/members/remove [post]
func (h *Handler) RemoveMemberHandler(w http.ResponseWriter, r *http.Request) {
	var req removeMemberRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	if req.By != room.Admin() {
		json.WriteError(w, http.StatusUnauthorized, domain.ErrNotAdmin, "Only the admin can remove members")
		return
	}

	if req.By == req.UserName {
		json.WriteBadRequestError(w, "You cannot remove yourself")
		return
	}

	if err := room.RemoveMember(req.UserName); err != nil {
		json.WriteError(w, http.StatusNotFound, err, "Member not found")
		return
	}

	if err := h.roomRepository.Update(r.Context(), room); err != nil {
		log.Printf("Failed to persist room %s after removal: %v", room.ID, err)
		json.WriteInternalError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)

	// The removed member's client sees the sentinel and shuts itself down.
	h.core.Broadcast() <- domain.NewRemoveEvent(room.ID, req.UserName, domain.NotifyRemoved)
}

// LeaveRoomHandler is the unload beacon target: it drops the member
// without waiting for the websocket close to propagate.
func (h *Handler) LeaveRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req leaveRoomRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	if err := room.RemoveMember(req.UserName); err != nil {
		json.WriteError(w, http.StatusNotFound, err, "Member not found")
		return
	}

	ctx := r.Context()
	if len(room.Members) == 0 {
		if err := h.roomRepository.Delete(ctx, room.ID); err != nil {
			log.Printf("Failed to delete empty room %s: %v", room.ID, err)
		}
	} else if err := h.roomRepository.Update(ctx, room); err != nil {
		log.Printf("Failed to persist room %s after leave: %v", room.ID, err)
	}

	w.WriteHeader(http.StatusNoContent)

	h.core.Broadcast() <- domain.NewLeaveEvent(room.ID, req.UserName)
}

func (h *Handler) loadRoom(w http.ResponseWriter, r *http.Request) (*domain.Room, bool) {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		json.WriteValidationError(w, errors.New("room ID is missing"))
		return nil, false
	}

	room, err := h.roomRepository.GetByID(r.Context(), roomID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			json.WriteError(w, http.StatusNotFound, err, "Room not found")
		case errors.Is(err, domain.ErrRoomExpired):
			json.WriteError(w, http.StatusGone, err, "Room expired")
		default:
			log.Printf("Failed to find room: %v", err)
			json.WriteInternalError(w, err)
		}
		return nil, false
	}

	return room, true
}

func (h *Handler) metaFor(r *http.Request, room *domain.Room) domain.RoomMeta {
	count, err := h.songRepository.Count(r.Context(), room.ID)
	if err != nil {
		log.Printf("Failed to count songs for room %s: %v", room.ID, err)
	}

	return domain.RoomMeta{
		RoomID:    room.ID,
		CreatedAt: room.CreatedAt.UnixMilli(),
		SongCount: count,
		IsRepeat:  room.IsRepeat,
		IsShuffle: room.IsShuffle,
	}
}
