package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/speedtrap/internal/db"
	"github.com/banshee-data/speedtrap/internal/httputil"
	"github.com/banshee-data/speedtrap/internal/monitoring"
)

const sitesPrefix = "/api/sites/"

// handleSites serves the site store:
//
//	GET    /api/sites/              list
//	POST   /api/sites/              create
//	GET    /api/sites/{id}          get
//	PUT    /api/sites/{id}          update
//	DELETE /api/sites/{id}          delete
//	POST   /api/sites/{id}/activate make the site the one used at startup
func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, strings.TrimSuffix(sitesPrefix, "/")), "/")
	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			s.listSites(w, r)
		case http.MethodPost:
			s.createSite(w, r)
		default:
			httputil.MethodNotAllowed(w)
		}
		return
	}

	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		httputil.BadRequest(w, "invalid site id")
		return
	}

	switch {
	case action == "activate" && r.Method == http.MethodPost:
		s.activateSite(w, r, id)
	case action != "":
		httputil.NotFound(w, "unknown site route")
	case r.Method == http.MethodGet:
		s.getSite(w, r, id)
	case r.Method == http.MethodPut:
		s.updateSite(w, r, id)
	case r.Method == http.MethodDelete:
		s.deleteSite(w, r, id)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) listSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.db.GetAllSites()
	if err != nil {
		httputil.InternalServerError(w, "Failed to list sites")
		monitoring.Warnf("[api] list sites: %v", err)
		return
	}
	if sites == nil {
		sites = []db.Site{}
	}
	httputil.WriteJSONOK(w, sites)
}

func (s *Server) getSite(w http.ResponseWriter, r *http.Request, id int) {
	site, err := s.db.GetSite(id)
	if errors.Is(err, db.ErrSiteNotFound) {
		httputil.NotFound(w, "site not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, "Failed to get site")
		monitoring.Warnf("[api] get site %d: %v", id, err)
		return
	}
	httputil.WriteJSONOK(w, site)
}

// decodeSite reads and validates a site body. The id and active flag in
// the body are ignored.
func decodeSite(w http.ResponseWriter, r *http.Request) (*db.Site, bool) {
	var site db.Site
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&site); err != nil {
		httputil.BadRequest(w, "invalid JSON body")
		return nil, false
	}
	if err := site.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return nil, false
	}
	site.ID = 0
	site.Active = false
	return &site, true
}

func (s *Server) createSite(w http.ResponseWriter, r *http.Request) {
	site, ok := decodeSite(w, r)
	if !ok {
		return
	}
	if err := s.db.CreateSite(site); err != nil {
		httputil.InternalServerError(w, "Failed to create site")
		monitoring.Warnf("[api] create site %q: %v", site.Name, err)
		return
	}
	// read back for the database-assigned timestamps
	created, err := s.db.GetSite(site.ID)
	if err != nil {
		created = site
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (s *Server) updateSite(w http.ResponseWriter, r *http.Request, id int) {
	site, ok := decodeSite(w, r)
	if !ok {
		return
	}
	site.ID = id
	err := s.db.UpdateSite(site)
	if errors.Is(err, db.ErrSiteNotFound) {
		httputil.NotFound(w, "site not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, "Failed to update site")
		monitoring.Warnf("[api] update site %d: %v", id, err)
		return
	}
	s.getSite(w, r, id)
}

func (s *Server) deleteSite(w http.ResponseWriter, r *http.Request, id int) {
	err := s.db.DeleteSite(id)
	if errors.Is(err, db.ErrSiteNotFound) {
		httputil.NotFound(w, "site not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, "Failed to delete site")
		monitoring.Warnf("[api] delete site %d: %v", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// activateSite marks the site active. Its limits take effect the next time
// the station starts without -site.
func (s *Server) activateSite(w http.ResponseWriter, r *http.Request, id int) {
	err := s.db.SetActiveSite(id)
	if errors.Is(err, db.ErrSiteNotFound) {
		httputil.NotFound(w, "site not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, "Failed to activate site")
		monitoring.Warnf("[api] activate site %d: %v", id, err)
		return
	}
	s.getSite(w, r, id)
}
