package httpapi

import (
    "encoding/json"
    "net/http"
)

// toJSON writes a JSON response with status code. The payload is marshalled
// before any byte goes out, so an encoding failure cannot truncate a response
// that already carries a success status.
func toJSON(w http.ResponseWriter, status int, v any) {
    b, err := json.Marshal(v)
    if err != nil {
        w.Header().Set("Content-Type", "application/json")
        w.WriteHeader(http.StatusInternalServerError)
        _, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
        return
    }
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _, _ = w.Write(b)
}
