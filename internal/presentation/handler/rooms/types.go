package rooms

type createRoomRequest struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

type removeMemberRequest struct {
	UserName string `json:"userName"`
	By       string `json:"by"`
}

type leaveRoomRequest struct {
	UserName string `json:"userName"`
}

type membersResponse struct {
	RoomID  string   `json:"roomId"`
	Admin   string   `json:"admin"`
	Members []string `json:"members"`
}

type nameAvailableResponse struct {
	RoomID    string `json:"roomId"`
	UserName  string `json:"userName"`
	Available bool   `json:"available"`
	RoomFull  bool   `json:"roomFull"`
}

type existsResponse struct {
	RoomID string `json:"roomId"`
	Exists bool   `json:"exists"`
}
