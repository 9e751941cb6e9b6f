package transport

import (
	"encoding/json"
	"net/http"
)

// errorBody is the fixed JSON error shape of every control endpoint.
type errorBody struct {
	OK     bool        `json:"ok"`
	Error  string      `json:"error"`
	Detail interface{} `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func okJSON(w http.ResponseWriter, payload interface{}) {
	writeJSON(w, http.StatusOK, payload)
}

func errorJSON(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorBody{OK: false, Error: code})
}

func errorJSONDetail(w http.ResponseWriter, status int, code string, detail interface{}) {
	writeJSON(w, status, errorBody{OK: false, Error: code, Detail: detail})
}
