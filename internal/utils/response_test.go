package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ms-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrDuplicateTierWeight, http.StatusBadRequest},
		{models.ErrInvalidCheckInPayload, http.StatusBadRequest},
		{models.ErrNotAnUsher, http.StatusForbidden},
		{models.ErrSignatureInvalid, http.StatusForbidden},
		{models.ErrCapacityExceeded, http.StatusConflict},
		{models.ErrAlreadyCheckedIn, http.StatusConflict},
		{models.ErrEventNotFound, http.StatusNotFound},
		{fmt.Errorf("tier 3: %w", models.ErrUnknownTier), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.err), tt.err.Error())
	}
}

func TestWriteError_UsherAndSignatureShareCode(t *testing.T) {
	for _, err := range []error{models.ErrNotAnUsher, models.ErrSignatureInvalid} {
		w := httptest.NewRecorder()
		WriteError(w, "check-in failed", err)

		var resp APIResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "forbidden", resp.Code)
		assert.False(t, resp.Success)
	}
}

func TestWriteError_HidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, "failed", errors.New("pq: connection refused"))

	var resp APIResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", resp.Error)
	assert.Equal(t, "internal_error", resp.Code)
}

func TestErrorFor(t *testing.T) {
	status, resp := ErrorFor("rejected", fmt.Errorf("tier 2: %w", models.ErrCapacityExceeded))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "capacity_exceeded", resp.Code)
	assert.Contains(t, resp.Error, "tier 2")

	status, resp = ErrorFor("rejected", errors.New("dial tcp 10.0.0.5:5432"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal error", resp.Error)
}
