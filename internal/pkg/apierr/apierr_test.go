package apierr

import (
	"fmt"
	"net/http"
	"testing"

	pkgerrors "github.com/yungbote/noc-backend/internal/pkg/errors"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"api error", NotFound("alert_not_found", "alert %s", "x"), http.StatusNotFound, "alert_not_found"},
		{"wrapped api error", fmt.Errorf("outer: %w", Conflict("bad_transition", "nope")), http.StatusConflict, "bad_transition"},
		{"sentinel", fmt.Errorf("lookup: %w", pkgerrors.ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, code := StatusOf(tc.err)
			if status != tc.status || code != tc.code {
				t.Fatalf("StatusOf: want=%d/%s got=%d/%s", tc.status, tc.code, status, code)
			}
		})
	}
}
