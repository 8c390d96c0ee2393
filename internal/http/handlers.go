package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"bankfees/internal/core"
	applog "bankfees/internal/log"
	"bankfees/internal/middleware/trace"
	"bankfees/internal/services"
	"bankfees/internal/wire"
)

func (s *Server) handleListBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := s.catalog.ListBanks(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	data := make([]wire.BankJSON, 0, len(banks))
	for _, b := range banks {
		data = append(data, wire.ToBankJSON(b))
	}
	s.respond(w, r, "Banks retrieved successfully", data)
}

func (s *Server) handleBankDetail(w http.ResponseWriter, r *http.Request) {
	d, err := s.catalog.BankDetail(r.Context(), bankID(r))
	if err != nil {
		s.fail(w, r, applog.OpGet, err)
		return
	}
	s.respond(w, r, "Bank retrieved successfully", newDetailResponse(d, s.money))
}

func (s *Server) handleCustom(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	usage, err := ParseUsageProfile(q, s.catalog.Policy().DefaultProfile)
	if err != nil {
		s.fail(w, r, applog.OpCustomize, err)
		return
	}
	accountType := core.AccountType(sanitizeInput(q.Get("accountType")))

	res, err := s.catalog.Customize(r.Context(), bankID(r), accountType, usage)
	if err != nil {
		s.fail(w, r, applog.OpCustomize, err)
		return
	}
	s.respond(w, r, "Custom calculation completed", newCustomResponse(res, s.money))
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	query, err := ParseAccountsQuery(r.URL.Query(), s.locale)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	listing, err := s.catalog.ListAccounts(r.Context(), query)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	s.respond(w, r, "Accounts retrieved successfully", listingResponse{
		Accounts: newAccountResponses(listing.Accounts, s.money),
		Stats:    newStatsResponse(listing.Stats, s.money),
		Total:    listing.Total,
		Shown:    listing.Shown,
	})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	sel, err := ParseSelection(r.URL.Query())
	if err != nil {
		s.fail(w, r, applog.OpCompare, err)
		return
	}
	cmp, err := s.catalog.Compare(r.Context(), sel)
	if err != nil {
		s.fail(w, r, applog.OpCompare, err)
		return
	}
	s.respond(w, r, "Comparison retrieved successfully", newComparisonResponse(cmp, sel, s.money))
}

func (s *Server) handleCalculation(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, "Calculation method", s.catalog.Breakdown())
}

func (s *Server) handleChangelog(w http.ResponseWriter, r *http.Request) {
	html, err := s.changelog.HTML()
	if err != nil {
		s.fail(w, r, applog.OpRender, err)
		return
	}
	resp := changelogResponse{HTML: html}
	// The bank count is informational; a failing source does not fail the page.
	if n, err := s.catalog.Ready(r.Context()); err == nil {
		resp.BankCount = &n
	} else {
		s.logger.WarnContext(r.Context(), "Bank count unavailable for changelog", applog.FieldError, err)
	}
	s.respond(w, r, "Changelog retrieved successfully", resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	reason := sanitizeInput(r.URL.Query().Get("reason"))
	if reason == "" {
		reason = "api"
	}
	if err := s.catalog.Refresh(r.Context(), reason); err != nil {
		s.fail(w, r, applog.OpRefresh, err)
		return
	}
	if err := writeEnvelope(w, http.StatusAccepted, "Refresh requested", map[string]string{"reason": reason}); err != nil {
		s.logger.WarnContext(r.Context(), "Response write failed", applog.FieldError, err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady checks that the bank source answers within the ready timeout.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.readyTimeout)
	defer cancel()
	if _, err := s.catalog.Ready(ctx); err != nil {
		s.logger.WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	writeError(w, r, http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded, please try again later")
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, message string, data any) {
	if err := writeEnvelope(w, http.StatusOK, message, data); err != nil {
		s.logger.WarnContext(r.Context(), "Response write failed", applog.FieldError, err)
	}
}

// fail maps err to an error response. Server-side failures are logged with
// the full error; client errors only at debug level.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		fields := applog.NewFields().WithRequestID(trace.GetRequestID(r.Context()))
		if services.IsUpstreamFailure(err) {
			fields[applog.FieldErrorType] = applog.ErrorTypeUpstream
		}
		s.structLog.LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op, fields)
	} else {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected",
			applog.FieldOperation, op,
			applog.FieldStatusCode, status,
			applog.FieldError, err)
	}
	writeError(w, r, status, code, message)
}

func bankID(r *http.Request) string {
	return strings.TrimSpace(mux.Vars(r)["id"])
}
