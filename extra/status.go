// Package extra holds the handlers that sit beside the gateway's API surface:
// the status endpoint and the frontend reverse proxy.
package extra

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ppsai/chatgate/config"
	"go.uber.org/zap"
)

// StatusResponse represents the response structure for the status endpoint
type StatusResponse struct {
	Config       string `json:"config"`
	Orchestrator string `json:"orchestrator,omitempty"`
}

// StatusHandler creates an HTTP handler for checking system status: config
// source health and orchestrator reachability.
func StatusHandler(cfg config.IConfig, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handlerLogger := logger.With(zap.String("handler", "StatusHandler"))
		w.Header().Set("Content-Type", "application/json")

		// Always return 200 status code
		w.WriteHeader(http.StatusOK)

		response := StatusResponse{Config: "none", Orchestrator: "none"}

		if err := cfg.Status(r.Context()); err != nil {
			handlerLogger.Error("Failed to get config status", zap.Error(err))
			response.Config = "error"
		} else {
			response.Config = "ok"
		}

		orch, err := cfg.Orchestrator()
		if err != nil {
			handlerLogger.Error("Failed to get orchestrator config", zap.Error(err))
			response.Config = "error"
		}

		if orch != nil && orch.URL != "" {
			client := &http.Client{Timeout: 5 * time.Second}

			handlerLogger.Debug("Probing orchestrator", zap.String("url", orch.URL))
			req, err := http.NewRequestWithContext(r.Context(), http.MethodHead, orch.URL, nil)
			if err != nil {
				response.Orchestrator = "error"
			} else if resp, err := client.Do(req); err != nil {
				handlerLogger.Error("Failed to reach orchestrator", zap.Error(err))
				response.Orchestrator = "error"
			} else {
				resp.Body.Close()
				// Any response at all means the endpoint is alive; webhook
				// backends commonly reject probe methods with 4xx.
				response.Orchestrator = "ok"
			}
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			handlerLogger.Error("Failed to encode status response", zap.Error(err))
		}
	}
}
