package http

import "net/http"

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storageContext(r)
	defer cancel()
	d, err := s.dashboards.Dashboard(ctx, currentUser(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
