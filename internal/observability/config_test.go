package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRegister(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		code int
	}{
		{name: "disabled", cfg: Config{}, code: http.StatusNotFound},
		{name: "enabled", cfg: Config{EnablePprof: true}, code: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			if got := Register(mux, tc.cfg); got != tc.cfg.EnablePprof {
				t.Fatalf("expected registered=%v, got %v", tc.cfg.EnablePprof, got)
			}
			resp := httptest.NewRecorder()
			mux.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
			if resp.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, resp.Code)
			}
		})
	}
}
