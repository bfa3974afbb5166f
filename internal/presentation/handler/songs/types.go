package songs

import "github.com/hilthontt/tunesync/internal/domain"

type addSongRequest struct {
	SongName string `json:"songName"`
	SongURL  string `json:"songUrl"`
	UserName string `json:"userName"`
}

type songListResponse struct {
	RoomID string         `json:"roomId"`
	Count  int            `json:"count"`
	Songs  []domain.Track `json:"songs"`
}

type uploadResponse struct {
	SongName string `json:"songName"`
	SongURL  string `json:"songUrl"`
	Count    int    `json:"count"`
}
