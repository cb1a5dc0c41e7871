package http

import (
	"net/http"
	"strings"

	"hisaab/internal/core"
	"hisaab/internal/services"
	"hisaab/internal/storage"
)

type (
	createHisaabRequest struct {
		Title     string          `json:"title"`
		Label     string          `json:"label"`
		Content   []core.LineItem `json:"content"`
		Encrypted bool            `json:"encrypted"`
		Password  string          `json:"password"`
		RoomID    string          `json:"roomId"`
	}

	// updateHisaabRequest leaves absent fields unchanged.
	updateHisaabRequest struct {
		Title     *string          `json:"title"`
		Label     *string          `json:"label"`
		Content   *[]core.LineItem `json:"content"`
		Encrypted *bool            `json:"encrypted"`
		Password  *string          `json:"password"`
		RoomID    *string          `json:"roomId"`
	}

	unlockRequest struct {
		Password string `json:"password"`
	}

	listResponse struct {
		SortBy  string        `json:"sortBy"`
		Hisaabs []core.Hisaab `json:"hisaabs"`
	}

	searchResponse struct {
		Hisaabs []core.Hisaab `json:"hisaabs"`
		Search  string        `json:"search"`
		Date    string        `json:"date"`
		Sort    string        `json:"sort"`
	}
)

func sortParam(r *http.Request) string {
	sort := strings.TrimSpace(r.URL.Query().Get("sort"))
	if sort == "" {
		return storage.SortDateDesc
	}
	return sort
}

func (s *Server) handleListHisaabs(w http.ResponseWriter, r *http.Request) {
	sort := sortParam(r)

	ctx, cancel := storageContext(r)
	defer cancel()
	hs, err := s.hisaabs.List(ctx, currentUser(r), sort)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{SortBy: sort, Hisaabs: nonNil(hs)})
}

func (s *Server) handleSearchHisaabs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp := searchResponse{
		Search: strings.TrimSpace(q.Get("search")),
		Date:   strings.TrimSpace(q.Get("date")),
		Sort:   sortParam(r),
	}

	ctx, cancel := storageContext(r)
	defer cancel()
	hs, err := s.hisaabs.Search(ctx, currentUser(r), resp.Search, resp.Date, resp.Sort)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp.Hisaabs = nonNil(hs)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateHisaab(w http.ResponseWriter, r *http.Request) {
	var req createHisaabRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := storageContext(r)
	defer cancel()
	h, err := s.hisaabs.Create(ctx, currentUser(r), services.CreateHisaabInput{
		Title:     req.Title,
		Label:     req.Label,
		Content:   req.Content,
		Encrypted: req.Encrypted,
		Password:  req.Password,
		RoomID:    req.RoomID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.Redacted())
}

func (s *Server) handleGetHisaab(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storageContext(r)
	defer cancel()
	h, err := s.hisaabs.Get(ctx, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleUpdateHisaab(w http.ResponseWriter, r *http.Request) {
	var req updateHisaabRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := storageContext(r)
	defer cancel()
	h, err := s.hisaabs.Update(ctx, currentUser(r), r.PathValue("id"), services.UpdateHisaabInput{
		Title:     req.Title,
		Label:     req.Label,
		Content:   req.Content,
		Encrypted: req.Encrypted,
		Password:  req.Password,
		RoomID:    req.RoomID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleDeleteHisaab(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storageContext(r)
	defer cancel()
	if err := s.hisaabs.Delete(ctx, currentUser(r), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Hisaab deleted")
}

// handleUnlockHisaab returns the full record when the secret matches.
func (s *Server) handleUnlockHisaab(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := storageContext(r)
	defer cancel()
	h, err := s.hisaabs.Unlock(ctx, currentUser(r), r.PathValue("id"), req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
