package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"wagebook/internal/core"
	"wagebook/internal/storage"
)

// companyHandler is a handler that runs inside a resolved tenant scope.
type companyHandler func(w http.ResponseWriter, r *http.Request, company core.Company)

// withCompany resolves the tenant from the X-API-Key header. Lookups are
// cached; an unknown or missing key is a 401 without touching handler code.
func (s *Server) withCompany(next companyHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if key == "" {
			w.Header().Set("WWW-Authenticate", "ApiKey")
			writeError(w, http.StatusUnauthorized, "missing API key")
			return
		}

		company, found := s.companyCache.Get(key)
		if !found {
			var err error
			company, err = s.storage.GetCompanyByAPIKey(r.Context(), key)
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}
			if err != nil {
				slog.ErrorContext(r.Context(), "Company lookup failed", "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			s.companyCache.Set(key, company)
		}

		next(w, r, company)
	}
}

// cacheKey scopes cache entries per tenant.
func cacheKey(companyID int64, suffix string) string {
	return strconv.FormatInt(companyID, 10) + ":" + suffix
}

func (s *Server) invalidateRuns(companyID int64) {
	s.runsCache.Delete(cacheKey(companyID, "runs"))
}

func (s *Server) invalidatePayslips(companyID, runID int64) {
	s.slipsCache.Delete(cacheKey(companyID, "slips:"+strconv.FormatInt(runID, 10)))
}
