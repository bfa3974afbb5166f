package roomapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hilthontt/tunesync/internal/domain"
)

// Client talks to the room service's REST surface. The realtime channel
// is separate; WebSocketURL builds the address it dials.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// RoomMeta mirrors the room metadata document.
type RoomMeta struct {
	RoomID    string `json:"roomId"`
	CreatedAt int64  `json:"createdAt"`
	SongCount int    `json:"roomSongs"`
	IsRepeat  bool   `json:"isRepeat"`
	IsShuffle bool   `json:"isShuffle"`
}

// Members mirrors the membership document.
type Members struct {
	RoomID  string   `json:"roomId"`
	Admin   string   `json:"admin"`
	Members []string `json:"members"`
}

// Upload is the result of pushing a song file into the room's storage.
type Upload struct {
	SongName string `json:"songName"`
	SongURL  string `json:"songUrl"`
	Count    int    `json:"count"`
}

type songList struct {
	RoomID string         `json:"roomId"`
	Count  int            `json:"count"`
	Songs  []domain.Track `json:"songs"`
}

type nameAvailableResult struct {
	RoomID    string `json:"roomId"`
	UserName  string `json:"userName"`
	Available bool   `json:"available"`
	RoomFull  bool   `json:"roomFull"`
}

type existsResult struct {
	RoomID string `json:"roomId"`
	Exists bool   `json:"exists"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateRoom registers a new room with the caller as its admin.
func (c *Client) CreateRoom(ctx context.Context, roomID, user string) (RoomMeta, error) {
	body := map[string]string{"roomId": roomID, "userName": user}

	var meta RoomMeta
	if err := c.do(ctx, http.MethodPost, "/api/rooms", body, &meta); err != nil {
		if isStatus(err, http.StatusConflict) {
			return RoomMeta{}, domain.ErrRoomAlreadyExists
		}
		return RoomMeta{}, err
	}
	return meta, nil
}

// GetRoom fetches the room metadata.
func (c *Client) GetRoom(ctx context.Context, roomID string) (RoomMeta, error) {
	var meta RoomMeta
	err := c.do(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(roomID), nil, &meta)
	return meta, err
}

// Exists reports whether the room is still alive.
func (c *Client) Exists(ctx context.Context, roomID string) (bool, error) {
	var res existsResult
	if err := c.do(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(roomID)+"/exists", nil, &res); err != nil {
		return false, err
	}
	return res.Exists, nil
}

// GetMembers fetches the current membership.
func (c *Client) GetMembers(ctx context.Context, roomID string) (Members, error) {
	var res Members
	err := c.do(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(roomID)+"/members", nil, &res)
	return res, err
}

// IsNameAvailable reports whether a member name is still free in the
// room. Names are case sensitive.
func (c *Client) IsNameAvailable(ctx context.Context, roomID, name string) (bool, error) {
	q := url.Values{}
	q.Set("user", name)

	var res nameAvailableResult
	if err := c.do(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(roomID)+"/name-available?"+q.Encode(), nil, &res); err != nil {
		return false, err
	}
	if res.RoomFull {
		return false, domain.ErrRoomFull
	}
	return res.Available, nil
}

// ListSongs fetches the room's song queue.
func (c *Client) ListSongs(ctx context.Context, roomID string) ([]domain.Track, error) {
	var res songList
	if err := c.do(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(roomID)+"/songs", nil, &res); err != nil {
		return nil, err
	}
	return res.Songs, nil
}

// AddSong appends a track to the queue by URL.
func (c *Client) AddSong(ctx context.Context, roomID string, track domain.Track) ([]domain.Track, error) {
	body := map[string]string{
		"songName": track.Name,
		"songUrl":  track.URL,
		"userName": track.Adder,
	}

	var res songList
	if err := c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/songs", body, &res); err != nil {
		if isStatus(err, http.StatusConflict) {
			return nil, domain.ErrDuplicateTrack
		}
		return nil, err
	}
	return res.Songs, nil
}

// RemoveSong drops a track from the queue by URL.
func (c *Client) RemoveSong(ctx context.Context, roomID, songURL, user string) error {
	q := url.Values{}
	q.Set("songUrl", songURL)
	q.Set("user", user)

	return c.do(ctx, http.MethodDelete, "/api/rooms/"+url.PathEscape(roomID)+"/songs?"+q.Encode(), nil, nil)
}

// UploadSong streams a song file into the room's storage and adds it to
// the queue.
func (c *Client) UploadSong(ctx context.Context, roomID, songName, user string, file io.Reader) (Upload, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", songName)
	if err != nil {
		return Upload{}, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return Upload{}, err
	}
	if songName != "" {
		if err := mw.WriteField("songName", songName); err != nil {
			return Upload{}, err
		}
	}
	if err := mw.WriteField("userName", user); err != nil {
		return Upload{}, err
	}
	if err := mw.Close(); err != nil {
		return Upload{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/rooms/"+url.PathEscape(roomID)+"/songs/upload", &buf)
	if err != nil {
		return Upload{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return Upload{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Upload{}, c.errorFrom(resp)
	}

	var res Upload
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Upload{}, err
	}
	return res, nil
}

// RemoveMember evicts a member. Only the admin may do this.
func (c *Client) RemoveMember(ctx context.Context, roomID, member, by string) error {
	body := map[string]string{"userName": member, "by": by}

	err := c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/members/remove", body, nil)
	if isStatus(err, http.StatusUnauthorized) {
		return domain.ErrNotAdmin
	}
	return err
}

// Leave announces a clean departure. Best effort; the server also
// reaps members whose channel closes.
func (c *Client) Leave(ctx context.Context, roomID, user string) error {
	body := map[string]string{"userName": user}
	return c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/leave", body, nil)
}

// WebSocketURL builds the realtime channel address for a member.
func (c *Client) WebSocketURL(roomID, user string) string {
	ws := c.baseURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}

	q := url.Values{}
	q.Set("user", user)

	return ws + "/api/rooms/" + url.PathEscape(roomID) + "/ws?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.errorFrom(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// errorFrom maps the service's error responses onto domain errors so
// callers dispatch with errors.Is instead of status codes.
func (c *Client) errorFrom(resp *http.Response) error {
	var body errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return domain.ErrRoomNotFound
	case http.StatusGone:
		return domain.ErrRoomExpired
	case http.StatusForbidden:
		return domain.ErrRoomFull
	}

	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	if msg == "" {
		msg = resp.Status
	}

	return &StatusError{Code: resp.StatusCode, Message: msg}
}

// StatusError carries an HTTP failure that has no domain equivalent.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("room service: %d %s", e.Code, e.Message)
}

func isStatus(err error, code int) bool {
	se, ok := err.(*StatusError)
	return ok && se.Code == code
}
