package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"swapgraph/internal/apierror"
)

func TestWriteErrorMapsKnownCodeToStatusAndEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, apierror.New(apierror.NotFound, "swap intent not found").WithDetails(map[string]interface{}{"id": "intent_1"}))

	require.Equal(t, 404, rec.Code)
	require.JSONEq(t, `{"error":{"code":"NOT_FOUND","message":"swap intent not found","details":{"id":"intent_1"}}}`, rec.Body.String())
}

func TestWriteErrorHidesUnknownErrorDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("db connection reset"))

	require.Equal(t, 500, rec.Code)
	require.JSONEq(t, `{"error":{"code":"SERVER_ERROR","message":"internal error"}}`, rec.Body.String())
}
