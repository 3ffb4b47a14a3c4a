package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, Decode([]byte(`{"success":true,"data":{"token":"abc"}}`), &out))
	require.Equal(t, "abc", out.Token)

	err := Decode([]byte(`{"success":false,"error":{"code":"NOT_FOUND","message":"chat not found"}}`), &out)
	var info *ErrorInfo
	require.True(t, errors.As(err, &info))
	require.Equal(t, "NOT_FOUND", info.Code)

	err = Decode([]byte(`{"success":false}`), nil)
	require.True(t, errors.As(err, &info))
	require.Equal(t, "UNKNOWN", info.Code)

	require.Error(t, Decode([]byte(`<html>`), &out))
	require.NoError(t, Decode([]byte(`{"success":true}`), &out))
}

func TestHelpersWriteEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		write  func(c *gin.Context)
		status int
		code   string
	}{
		{"success", func(c *gin.Context) { Success(c, gin.H{"ok": true}) }, http.StatusOK, ""},
		{"created", func(c *gin.Context) { Created(c, gin.H{"id": 1}) }, http.StatusCreated, ""},
		{"not found", func(c *gin.Context) { NotFound(c, "missing") }, http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", func(c *gin.Context) { Forbidden(c, "no") }, http.StatusForbidden, "FORBIDDEN"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tc.write(c)

			require.Equal(t, tc.status, w.Code)
			var env Envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
			require.Equal(t, tc.code == "", env.Success)
			if tc.code != "" {
				require.Equal(t, tc.code, env.Error.Code)
			}
		})
	}
}
