package http

import (
	"net/http"

	"hisaab/internal/core"
)

type (
	createRoomRequest struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Password    string `json:"password"`
	}

	joinRoomRequest struct {
		Password string `json:"password"`
	}

	roomsResponse struct {
		AllRooms []core.Room `json:"allRooms"`
		MyRooms  []core.Room `json:"myRooms"`
	}
)

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storageContext(r)
	defer cancel()
	all, mine, err := s.rooms.List(ctx, currentUser(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roomsResponse{AllRooms: nonNil(all), MyRooms: nonNil(mine)})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := storageContext(r)
	defer cancel()
	room, err := s.rooms.Create(ctx, currentUser(r), req.Name, req.Description, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// handleJoinRoom answers 403 for both a missing room and a wrong password.
func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := storageContext(r)
	defer cancel()
	room, err := s.rooms.Join(ctx, currentUser(r), r.PathValue("id"), req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}
