package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestInstrumentRecoversPanic(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode int
		wantBody string
	}{
		{
			name:     "before response",
			handler:  func(http.ResponseWriter, *http.Request) { panic("boom") },
			wantCode: http.StatusInternalServerError,
			wantBody: "Internal server error\n",
		},
		{
			name: "after response",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte("partial"))
				panic("boom")
			},
			wantCode: http.StatusOK,
			wantBody: "partial",
		},
		{
			name: "after explicit header",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusAccepted)
				panic("boom")
			},
			wantCode: http.StatusAccepted,
			wantBody: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			instrument(tt.handler, zaptest.NewLogger(t)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			if w.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", w.Code, tt.wantCode)
			}
			if got := w.Body.String(); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
			if tt.wantCode != http.StatusInternalServerError && strings.Contains(w.Body.String(), "Internal server error") {
				t.Error("error text appended to a started response")
			}
		})
	}
}
