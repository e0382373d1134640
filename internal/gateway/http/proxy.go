package http

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redgumnet/edgegate/internal/gateway/domain"
	"github.com/redgumnet/edgegate/internal/gateway/service"
	"github.com/redgumnet/edgegate/internal/gateway/upstream"
	"github.com/redgumnet/edgegate/pkg/httpx"
	"github.com/redgumnet/edgegate/pkg/slogx"
)

// ProxyHandler forwards an authenticated request to its upstream. The route
// prefix (the upstream name) is stripped, the client's Authorization header
// is dropped, and the upstream's credential headers are attached by the
// registry before the request goes out.
type ProxyHandler struct {
	Name     string
	Registry *upstream.Registry
	Audit    *service.AuditService
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	subject := httpx.UserIDFromContext(ctx)

	pathAndQuery := strings.TrimPrefix(r.URL.Path, "/"+h.Name)
	if pathAndQuery == "" {
		pathAndQuery = "/"
	}
	if r.URL.RawQuery != "" {
		pathAndQuery += "?" + r.URL.RawQuery
	}

	resp, err := h.Registry.Do(ctx, h.Name, r.Method, pathAndQuery, r.Body, outboundHeaders(r.Header))
	if err != nil {
		log.Error("upstream request failed", "upstream", h.Name, "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "upstream request failed")
		h.record(ctx, r, subject, http.StatusBadGateway, domain.OutcomeUpstreamError, err.Error(), start)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		// Response already started; nothing to send the client but worth a log line.
		log.Warn("relay interrupted", "upstream", h.Name, "err", err)
	}

	h.record(ctx, r, subject, resp.StatusCode, domain.OutcomeForwarded, "", start)
}

func (h *ProxyHandler) record(
	ctx context.Context,
	r *http.Request,
	subject string,
	status int,
	outcome, detail string,
	start time.Time,
) {
	if h.Audit == nil {
		return
	}

	h.Audit.Record(ctx, domain.RequestAudit{
		Subject:    subject,
		Upstream:   h.Name,
		Method:     r.Method,
		Path:       r.URL.Path,
		Status:     status,
		Outcome:    outcome,
		Detail:     detail,
		DurationMS: time.Since(start).Milliseconds(),
	})
}

// outboundHeaders keeps content negotiation headers from the inbound request
// and drops everything that must not leak upstream: the client's bearer
// token and connection-scoped headers.
func outboundHeaders(in http.Header) http.Header {
	out := in.Clone()
	out.Del("Authorization")
	out.Del("Connection")
	out.Del("Keep-Alive")
	out.Del("Proxy-Authorization")
	out.Del("Te")
	out.Del("Upgrade")
	return out
}
