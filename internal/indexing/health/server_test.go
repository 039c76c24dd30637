package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakePinger struct {
	err error
}

func (p *fakePinger) Health(ctx context.Context) error {
	return p.err
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantCode   int
		wantStatus string
	}{
		{"healthy", nil, http.StatusOK, "ok"},
		{"database down", errors.New("connection refused"), http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		s := NewServer(&fakePinger{err: tt.pingErr}, 0)
		rec := httptest.NewRecorder()
		s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		if rec.Code != tt.wantCode {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.wantCode)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: decode body: %v", tt.name, err)
		}
		if body["status"] != tt.wantStatus {
			t.Errorf("%s: body status = %q, want %q", tt.name, body["status"], tt.wantStatus)
		}
	}
}
