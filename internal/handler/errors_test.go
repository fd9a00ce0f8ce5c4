package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pavelanni/gcsemock/internal/session"
)

func TestWriteErrorSessionStates(t *testing.T) {
	h := &Handler{logger: slog.Default()}
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{session.ErrTimeExpired, http.StatusConflict, "time_expired"},
		{fmt.Errorf("answer q1: %w", session.ErrTimeExpired), http.StatusConflict, "time_expired"},
		{session.ErrNotAnswering, http.StatusConflict, "not_answering"},
		{session.ErrSubmissionInFlight, http.StatusConflict, "submission_in_flight"},
		{session.ErrSessionNotFound, http.StatusNotFound, "not_found"},
		{session.ErrForbidden, http.StatusForbidden, "forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPut, "/api/sessions/s1/answers/q1", nil)
			h.writeError(w, r, tt.err)

			require.Equal(t, tt.status, w.Code)
			body := decodeBody[errorBody](t, w)
			require.Equal(t, tt.code, body.Error.Code)
			require.NotEmpty(t, body.Error.Message)
		})
	}
}
