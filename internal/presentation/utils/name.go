package utils

import (
	"path"
	"strings"
)

// NormalizeSongName turns an uploaded filename into the canonical song
// name: lowercased, spaces collapsed to underscores, the .mp3 suffix
// dropped.
func NormalizeSongName(filename string) string {
	name := strings.ToLower(strings.TrimSpace(filename))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.TrimSuffix(name, ".mp3")

	return name
}

// SongKey is the blob key an uploaded song is stored under. Scoping by
// room keeps one room's uploads from clobbering another's.
func SongKey(roomID, songName string) string {
	return path.Join(roomID, songName)
}
