package router

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/mfactory-lab/ic-solana/rpc"
)

// Caller identity and budget headers. A bearer token carries the principal
// directly; X-Principal is the plain-header alternative for internal callers.
const (
	headerAuthorization = "Authorization"
	headerPrincipal     = "X-Principal"
	headerCyclesBudget  = "X-Cycles-Budget"

	bearerPrefix = "Bearer "
)

// callerPrincipal extracts the caller identity from the request. Absence
// yields the anonymous principal; authorization decisions happen downstream.
func callerPrincipal(req *http.Request) rpc.Principal {
	if auth := req.Header.Get(headerAuthorization); strings.HasPrefix(auth, bearerPrefix) {
		if token := strings.TrimSpace(strings.TrimPrefix(auth, bearerPrefix)); token != "" {
			return rpc.Principal(token)
		}
	}
	if p := strings.TrimSpace(req.Header.Get(headerPrincipal)); p != "" {
		return rpc.Principal(p)
	}
	return rpc.PrincipalAnonymous
}

// callerBudget reads the per-request cycle budget, falling back to the
// configured default.
func (r *router) callerBudget(req *http.Request) (rpc.Cycles, error) {
	raw := strings.TrimSpace(req.Header.Get(headerCyclesBudget))
	if raw == "" {
		return r.gateway.RPCConfig.DefaultBudget, nil
	}
	budget, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, rpc.NewError(rpc.KindInvalidRequest, "malformed %s header %q", headerCyclesBudget, raw)
	}
	return budget, nil
}

// selectionFromRequest builds the provider selection for a dispatch: the
// cluster path segment by default, overridden by an explicit providers or
// urls query parameter.
func selectionFromRequest(req *http.Request) rpc.Selection {
	if providers := req.URL.Query().Get("providers"); providers != "" {
		return rpc.Selection{ProviderIDs: splitList(providers)}
	}
	if urls := req.URL.Query().Get("urls"); urls != "" {
		return rpc.Selection{URLs: splitList(urls)}
	}
	return rpc.Selection{Cluster: req.PathValue(clusterPathParam)}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

/* --------------------------------- Responses -------------------------------- */

// errorBody is the JSON error envelope for non-JSON-RPC endpoints.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind      rpc.ErrorKind         `json:"kind"`
	Message   string                `json:"message"`
	Diverging []rpc.ProviderDigest  `json:"diverging,omitempty"`
	Failures  []rpc.ProviderFailure `json:"failures,omitempty"`
}

// statusForKind maps gateway error kinds onto HTTP status codes.
func statusForKind(kind rpc.ErrorKind) int {
	switch kind {
	case rpc.KindUnauthorized:
		return http.StatusForbidden
	case rpc.KindConflict:
		return http.StatusConflict
	case rpc.KindNotFound:
		return http.StatusNotFound
	case rpc.KindInvalidRequest, rpc.KindNoProviders:
		return http.StatusBadRequest
	case rpc.KindInsufficientCycles:
		return http.StatusPaymentRequired
	case rpc.KindTimeout:
		return http.StatusGatewayTimeout
	case rpc.KindTransport, rpc.KindMalformedResponse, rpc.KindRPCError, rpc.KindInconsistent:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (r *router) writeError(w http.ResponseWriter, err error) {
	detail := errorDetail{Kind: "internal", Message: err.Error()}
	status := http.StatusInternalServerError
	if gwErr, ok := rpc.AsError(err); ok {
		status = statusForKind(gwErr.Kind)
		detail = errorDetail{
			Kind:      gwErr.Kind,
			Message:   gwErr.Message,
			Diverging: gwErr.Diverging,
			Failures:  gwErr.Failures,
		}
	}
	r.writeJSON(w, status, errorBody{Error: detail})
}

func (r *router) writeJSON(w http.ResponseWriter, status int, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to marshal response body")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		r.logger.Warn().Err(err).Msg("failed to write response body")
	}
}

// decodeBody parses a bounded JSON request body into dst.
func (r *router) decodeBody(w http.ResponseWriter, req *http.Request, dst any) error {
	body := http.MaxBytesReader(w, req.Body, r.config.MaxRequestBodyBytes)
	defer body.Close()
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return rpc.NewError(rpc.KindInvalidRequest, "malformed request body: %v", err)
	}
	return nil
}
