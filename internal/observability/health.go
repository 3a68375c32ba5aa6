package observability

import (
	"context"
	"encoding/json"
	"net/http"
)

// ReadyCheck probes one subsystem the daemon depends on. It returns nil when
// the subsystem is usable, or an error describing why it is not.
type ReadyCheck func(ctx context.Context) error

// HealthHandler returns the liveness handler mounted at /healthz. It always
// answers HTTP 200 with {"status":"ok"}: the process is up.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		writeStatus(rw, http.StatusOK, "")
	})
}

// ReadyHandler returns the readiness handler mounted at /readyz. It runs the
// checks in order; the first failure answers HTTP 503 with the check's error
// as the reason, so an operator can tell a missing state dir from a missing
// changelog dir without reading logs.
func ReadyHandler(checks ...ReadyCheck) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		for _, check := range checks {
			err := check(hr.Context())
			if err != nil {
				writeStatus(rw, http.StatusServiceUnavailable, err.Error())

				return
			}
		}

		writeStatus(rw, http.StatusOK, "")
	})
}

func writeStatus(rw http.ResponseWriter, code int, reason string) {
	payload := map[string]string{"status": "ok"}
	if code != http.StatusOK {
		payload["status"] = "unavailable"
		payload["reason"] = reason
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	_, _ = rw.Write(data)
}
