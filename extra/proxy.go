package extra

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// ProxyHandler reverse-proxies everything outside the API surface to the
// frontend host serving the chat UI. API and status paths are refused here:
// the mux only routes unmatched paths to this handler, but when one of those
// prefixes slips through it must not leak to the frontend host.
func ProxyHandler(frontURL string, logger *zap.Logger) http.HandlerFunc {
	targetURL, err := url.Parse(frontURL)
	if err != nil {
		logger.Error("Invalid frontend address", zap.String("frontend_address", frontURL), zap.Error(err))
		return nil
	}
	proxy := httputil.NewSingleHostReverseProxy(targetURL)
	proxy.ErrorHandler = func(rw http.ResponseWriter, req *http.Request, err error) {
		logger.Error("Frontend proxy request failed",
			zap.String("path", req.URL.Path), zap.Error(err))
		http.Error(rw, "Bad Gateway", http.StatusBadGateway)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/status" {
			http.NotFound(w, r)
			return
		}
		proxy.ServeHTTP(w, r)
	}
}
