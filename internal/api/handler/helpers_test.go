package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/depix/seem_server/internal/api/middleware"
	"github.com/depix/seem_server/internal/pkg/ideogram"
	"github.com/depix/seem_server/internal/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testContext struct {
	DB *gorm.DB
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mockAuth(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	}
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

// fieldErrorsOf 取出 data.errors 中的字段名
func fieldErrorsOf(t *testing.T, resp response.Response) map[string]string {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data should be an object")
	list, ok := data["errors"].([]interface{})
	require.True(t, ok, "data.errors should be a list")

	out := make(map[string]string, len(list))
	for _, item := range list {
		fe := item.(map[string]interface{})
		out[fe["field"].(string)] = fe["message"].(string)
	}
	return out
}

// pngBytes 最小的合法 PNG 文件头，足够 mimetype 识别
var pngBytes = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x02, 0x00, 0x00, 0x00, 0x90, 0x77, 0x53, 0xDE,
}

type formFile struct {
	field    string
	filename string
	data     []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...formFile) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

type fakeGenerator struct {
	mu       sync.Mutex
	requests []ideogram.Request
	err      error
}

func (f *fakeGenerator) Generate(_ context.Context, req ideogram.Request) (*ideogram.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	result := &ideogram.Result{}
	for i := 0; i < req.NumImages; i++ {
		result.Data = append(result.Data, ideogram.GeneratedImage{
			URL: fmt.Sprintf("https://ideogram.example.com/img/%d.png", i),
		})
	}
	return result, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeStore struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (s *fakeStore) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.keys = append(s.keys, key)
	return "https://store.example.com/" + key, nil
}

func (s *fakeStore) Owns(rawURL string) bool {
	return strings.HasPrefix(rawURL, "https://store.example.com/")
}
