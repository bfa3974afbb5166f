package songs

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hilthontt/tunesync/internal/domain"
	"github.com/hilthontt/tunesync/internal/infrastructure/blob"
	"github.com/hilthontt/tunesync/internal/infrastructure/json"
	"github.com/hilthontt/tunesync/internal/infrastructure/metrics"
	"github.com/hilthontt/tunesync/internal/infrastructure/ws"
	"github.com/hilthontt/tunesync/internal/presentation/utils"
)

// maxUploadBytes caps audio uploads at 10MB.
const maxUploadBytes = 10 << 20

type Handler struct {
	songRepository domain.SongRepository
	roomRepository domain.RoomRepository
	core           *ws.Core
	blobStore      blob.Store
}

func NewHandler(
	songRepository domain.SongRepository,
	roomRepository domain.RoomRepository,
	core *ws.Core,
	blobStore blob.Store,
) *Handler {
	return &Handler{
		songRepository: songRepository,
		roomRepository: roomRepository,
		core:           core,
		blobStore:      blobStore,
	}
}

// ListSongsHandler godoc
// @Summary      List the room's song queue
// @Tags         songs
// @Produce      json
// @Param        roomId path string true "Room ID"
// @Success      200 {object} songListResponse "Queue in insertion order"
// @Failure      404 {object} map[string]interface{} "Room not found"
// @Router       /rooms/{roomId}/songs [get]
func (h *Handler) ListSongsHandler(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.requireRoom(w, r)
	if !ok {
		return
	}

	tracks, err := h.songRepository.List(r.Context(), roomID)
	if err != nil {
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusOK, songListResponse{
		RoomID: roomID,
		Count:  len(tracks),
		Songs:  tracks,
	})
}

// AddSongHandler godoc
// @Summary      Queue a song by URL
// @Description  Appends the track and broadcasts the new queue size to the room
// @Tags         songs
// @Accept       json
// @Produce      json
// @Param        roomId path string true "Room ID"
// @Param        request body addSongRequest true "Track to queue"
// @Success      201 {object} songListResponse "Updated queue"
// @Failure      400 {object} map[string]interface{} "Bad request - missing fields or queue full"
// @Failure      404 {object} map[string]interface{} "Room not found"
// @Failure      409 {object} map[string]interface{} "Conflict - track already queued"
// @Router       /rooms/{roomId}/songs [post]
func (h *Handler) AddSongHandler(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.requireRoom(w, r)
	if !ok {
		return
	}

	var req addSongRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	if req.SongName == "" || req.SongURL == "" {
		json.WriteBadRequestError(w, "songName and songUrl are required")
		return
	}

	track := domain.Track{
		Name:       req.SongName,
		URL:        req.SongURL,
		Adder:      req.UserName,
		InsertedAt: time.Now().UnixMilli(),
	}

	ctx := r.Context()
	if err := h.songRepository.Add(ctx, roomID, track); err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateTrack):
			json.WriteError(w, http.StatusConflict, err, "Track already queued")
		case errors.Is(err, domain.ErrQuotaExceeded):
			json.WriteBadRequestError(w, "Song queue is full")
		default:
			log.Printf("Failed to add song to room %s: %v", roomID, err)
			json.WriteInternalError(w, err)
		}
		return
	}

	tracks, err := h.songRepository.List(ctx, roomID)
	if err != nil {
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusCreated, songListResponse{
		RoomID: roomID,
		Count:  len(tracks),
		Songs:  tracks,
	})

	notify := req.UserName + " added " + req.SongName
	h.core.Broadcast() <- domain.NewSongsEditEvent(roomID, len(tracks), notify)
}

// RemoveSongHandler godoc
// @Summary      Remove a song from the queue
// @Description  Deletes by URL and broadcasts the removal. Removing an absent URL succeeds
// @Tags         songs
// @Param        roomId path string true "Room ID"
// @Param        songUrl query string true "Track URL to remove"
// @Param        user query string false "Member requesting removal"
// @Success      204 "Removed"
// @Failure      400 {object} map[string]interface{} "Bad request - missing songUrl"
// @Failure      404 {object} map[string]interface{} "Room not found"
// @Router       /rooms/{roomId}/songs [delete]
func (h *Handler) RemoveSongHandler(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.requireRoom(w, r)
	if !ok {
		return
	}

	songURL := r.URL.Query().Get("songUrl")
	if songURL == "" {
		json.WriteBadRequestError(w, "songUrl query parameter is required")
		return
	}
	user := r.URL.Query().Get("user")

	ctx := r.Context()
	if err := h.songRepository.Remove(ctx, roomID, songURL); err != nil {
		log.Printf("Failed to remove song from room %s: %v", roomID, err)
		json.WriteInternalError(w, err)
		return
	}

	count, err := h.songRepository.Count(ctx, roomID)
	if err != nil {
		json.WriteInternalError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)

	notify := user + " removed a song"
	h.core.Broadcast() <- domain.NewSongRemovedEvent(roomID, songURL, count, notify)
}

// UploadSongHandler godoc
// @Summary      Upload an audio file
// @Description  Stores the file in the blob store, queues it and broadcasts the new queue size
// @Tags         songs
// @Accept       multipart/form-data
// @Produce      json
// @Param        roomId path string true "Room ID"
// @Param        file formData file true "Audio file, 10MB max"
// @Param        userName formData string false "Uploading member"
// @Success      201 {object} uploadResponse "Stored track"
// @Failure      400 {object} map[string]interface{} "Bad request - missing file, too large, or queue full"
// @Failure      404 {object} map[string]interface{} "Room not found"
// @Failure      409 {object} map[string]interface{} "Conflict - track already queued"
// @Router       /rooms/{roomId}/songs/upload [post]
func (h *Handler) UploadSongHandler(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.requireRoom(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		json.WriteBadRequestError(w, "File too large or malformed upload (10MB max)")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		json.WriteBadRequestError(w, "file form field is required")
		return
	}
	defer file.Close()

	songName := utils.NormalizeSongName(header.Filename)
	if custom := r.FormValue("songName"); custom != "" {
		songName = utils.NormalizeSongName(custom)
	}
	if songName == "" {
		json.WriteBadRequestError(w, "could not derive a song name from the upload")
		return
	}

	userName := r.FormValue("userName")

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = "audio/mpeg"
	}
	if !strings.HasPrefix(contentType, "audio/") {
		json.WriteBadRequestError(w, "only audio uploads are accepted")
		return
	}

	ctx := r.Context()

	key := utils.SongKey(roomID, songName)
	songURL, err := h.blobStore.Put(ctx, key, file, contentType)
	if err != nil {
		log.Printf("Failed to store upload %s: %v", key, err)
		json.WriteInternalError(w, err)
		return
	}

	track := domain.Track{
		Name:       songName,
		URL:        songURL,
		Adder:      userName,
		InsertedAt: time.Now().UnixMilli(),
	}

	if err := h.songRepository.Add(ctx, roomID, track); err != nil {
		// Roll the blob back so a re-upload under the same name works.
		if delErr := h.blobStore.Delete(ctx, key); delErr != nil {
			log.Printf("Failed to clean up blob %s: %v", key, delErr)
		}

		switch {
		case errors.Is(err, domain.ErrDuplicateTrack):
			json.WriteError(w, http.StatusConflict, err, "Track already queued")
		case errors.Is(err, domain.ErrQuotaExceeded):
			json.WriteBadRequestError(w, "Song queue is full")
		default:
			log.Printf("Failed to queue upload for room %s: %v", roomID, err)
			json.WriteInternalError(w, err)
		}
		return
	}

	metrics.SongsUploaded.Inc()

	count, err := h.songRepository.Count(ctx, roomID)
	if err != nil {
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusCreated, uploadResponse{
		SongName: songName,
		SongURL:  songURL,
		Count:    count,
	})

	notify := userName + " uploaded " + songName
	h.core.Broadcast() <- domain.NewSongsEditEvent(roomID, count, notify)
}

func (h *Handler) requireRoom(w http.ResponseWriter, r *http.Request) (string, bool) {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		json.WriteValidationError(w, errors.New("room ID is missing"))
		return "", false
	}

	_, err := h.roomRepository.GetByID(r.Context(), roomID)
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
		return "", false
	}

	return roomID, true
}
