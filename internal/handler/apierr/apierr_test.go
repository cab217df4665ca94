package apierr

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lifecraft/profiler/backend/internal/service/profiling"
	"github.com/lifecraft/profiler/backend/internal/store"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{profiling.ErrEmptyInput, http.StatusBadRequest},
		{fmt.Errorf("%w: tarot", profiling.ErrUnknownModule), http.StatusBadRequest},
		{store.ErrSessionNotFound, http.StatusNotFound},
		{profiling.ErrDialogueClosed, http.StatusConflict},
		{profiling.ErrConfirmNotReady, http.StatusConflict},
		{fmt.Errorf("failed to load session: %w", fmt.Errorf("disk")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := Status(tc.err)
		assert.Equal(t, tc.want, status, tc.err.Error())
	}

	_, msg := Status(fmt.Errorf("sql: connection refused"))
	assert.Equal(t, "internal error", msg, "server errors are not echoed")
}
