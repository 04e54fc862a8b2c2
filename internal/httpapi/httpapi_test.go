package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/broker"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/config"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/controller"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/docx"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/livebus"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/llm"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Job{}, &models.Transcript{},
		&models.DiarizedTranscript{}, &models.Summary{}, &models.ChatEntry{}))

	mr := miniredis.RunT(t)
	b, err := broker.New(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	cfg := &config.Config{SharedAudioPath: t.TempDir(), LocalTimezone: "UTC", LLMModel: "fake-model", ChatHistoryLimit: 10}
	ctrl := controller.New(cfg, db, b, &llm.Fake{}, &docx.Fake{})
	hub := livebus.NewHub()
	t.Cleanup(hub.Shutdown)

	return SetupRoutes(NewHandler(ctrl, hub))
}

func multipartBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStartBBHCreatesJob(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := multipartBody(t, map[string]string{
		"requestId": "req-1",
		"username":  "alice",
		"language":  "vi",
		"filename":  "meeting.wav",
	})
	req := httptest.NewRequest(http.MethodPost, "/meeting/start-bbh", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "req-1", resp["request_id"])
	require.Equal(t, string(models.StatusUploading), resp["status"])
}

func TestStartBBHRejectsDuplicate(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := multipartBody(t, map[string]string{
		"requestId": "req-dup", "username": "alice", "language": "vi", "filename": "m.wav",
	})
	req := httptest.NewRequest(http.MethodPost, "/meeting/start-bbh", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	body2, contentType2 := multipartBody(t, map[string]string{
		"requestId": "req-dup", "username": "alice", "language": "vi", "filename": "m.wav",
	})
	req2 := httptest.NewRequest(http.MethodPost, "/meeting/start-bbh", body2)
	req2.Header.Set("Content-Type", contentType2)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusConflict, rec2.Code)
}

func TestGetStatusNotFound(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/meeting/missing/status?username=alice", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChangeLanguageRequiresBody(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := multipartBody(t, map[string]string{
		"requestId": "req-lang", "username": "alice", "language": "vi", "filename": "m.wav",
	})
	req := httptest.NewRequest(http.MethodPost, "/meeting/start-bbh", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/meeting/req-lang/language?username=alice", strings.NewReader(`{}`))
	req2.Header.Set("Content-Type", "application/json")
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusBadRequest, rec2.Code)
}
