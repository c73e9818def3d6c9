package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	alertstorage "utrix-hq/quotaflow/pkg/monitoring/storage"
	"utrix-hq/quotaflow/pkg/projection"
	"utrix-hq/quotaflow/pkg/providers"
	"utrix-hq/quotaflow/pkg/quota"
	"utrix-hq/quotaflow/pkg/routing"
)

// maxExecuteBody caps the size of an execution request.
const maxExecuteBody = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ProviderUsage is one provider's entry in the /usage response.
type ProviderUsage struct {
	Usage       providers.QuotaUsage       `json:"usage"`
	Limits      providers.QuotaLimits      `json:"limits"`
	Percentages providers.UsagePercentages `json:"percentages"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{
		Error:     msg,
		RequestID: w.Header().Get(RequestIDHeader),
	})
}

// providerParam resolves the :provider path segment.
func providerParam(w http.ResponseWriter, params httprouter.Params) (providers.Kind, bool) {
	kind, err := providers.ParseKind(params.ByName("provider"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return kind, true
}

// methodParam validates the optional ?method= query parameter.
func methodParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	method := r.URL.Query().Get("method")
	if method != "" && !projection.IsValidMethod(method) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown projection method %q", method))
		return "", false
	}
	return method, true
}

// analysisError maps projection errors to responses.
func analysisError(w http.ResponseWriter, err error) {
	if errors.Is(err, projection.ErrUnknownProvider) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.manager.GetLoadBalancerStatus(r.Context()))
}

// handleUsage serves cached usage, or polls the providers first when
// ?refresh=true.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	var current map[providers.Kind]providers.QuotaUsage
	if refresh {
		current = s.manager.GetCurrentUsage(r.Context())
	} else {
		current = s.manager.CachedUsage(r.Context())
	}

	out := make(map[providers.Kind]ProviderUsage, len(current))
	for kind, u := range current {
		limits, _ := s.manager.Limits(kind)
		out[kind] = ProviderUsage{
			Usage:       u,
			Limits:      limits,
			Percentages: s.manager.UsagePercentages(u),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProjections(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	method, ok := methodParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.manager.CalculateAllProjections(r.Context(), method))
}

// handleProjection serves one provider's projection, or every method side
// by side when ?compare=true.
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	kind, ok := providerParam(w, params)
	if !ok {
		return
	}

	if compare, _ := strconv.ParseBool(r.URL.Query().Get("compare")); compare {
		results, err := s.manager.CompareProjectionMethods(r.Context(), kind)
		if err != nil {
			analysisError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
		return
	}

	method, ok := methodParam(w, r)
	if !ok {
		return
	}
	p, err := s.manager.CalculateProjection(r.Context(), kind, method)
	if err != nil {
		analysisError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	kind, ok := providerParam(w, params)
	if !ok {
		return
	}
	trend, err := s.manager.AnalyzeTrend(r.Context(), kind)
	if err != nil {
		analysisError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

func (s *Server) handleSeasonal(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	kind, ok := providerParam(w, params)
	if !ok {
		return
	}
	pattern, err := s.manager.AnalyzeSeasonal(r.Context(), kind)
	if err != nil {
		analysisError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pattern)
}

// handleAlerts queries alert history. Supported parameters are provider,
// type, active, since (RFC 3339) and limit.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q, err := parseAlertQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	alerts, err := s.manager.Alerts(r.Context(), q)
	if err != nil {
		if errors.Is(err, quota.ErrMonitoringDisabled) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func parseAlertQuery(r *http.Request) (*alertstorage.Query, error) {
	values := r.URL.Query()
	q := &alertstorage.Query{
		Type: values.Get("type"),
	}

	if p := values.Get("provider"); p != "" {
		kind, err := providers.ParseKind(p)
		if err != nil {
			return nil, err
		}
		q.Provider = string(kind)
	}
	if v := values.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid active %q", v)
		}
		q.ActiveOnly = active
	}
	if v := values.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("invalid since %q: expected RFC 3339", v)
		}
		q.Since = since
	}
	if v := values.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return nil, fmt.Errorf("invalid limit %q", v)
		}
		q.Limit = limit
	}
	return q, nil
}

func (s *Server) handleCheckAlerts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	result, err := s.manager.CheckAlerts(r.Context())
	if err != nil {
		if errors.Is(err, quota.ErrMonitoringDisabled) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleExecute routes one function execution. A result whose attempts
// all failed is returned with 502.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req routing.FunctionRequest
	body := io.LimitReader(r.Body, maxExecuteBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.RequestID == "" {
		req.RequestID = w.Header().Get(RequestIDHeader)
	}

	result, err := s.manager.ExecuteFunction(r.Context(), &req)
	switch {
	case err == nil:
	case errors.Is(err, routing.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, routing.ErrNoHealthyProviders), errors.Is(err, routing.ErrNoProvidersConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	code := http.StatusOK
	if !result.Success {
		code = http.StatusBadGateway
	}
	writeJSON(w, code, result)
}
