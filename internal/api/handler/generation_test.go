package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depix/seem_server/config"
	"github.com/depix/seem_server/internal/model"
	"github.com/depix/seem_server/internal/pkg/ideogram"
	"github.com/depix/seem_server/internal/pkg/response"
	"github.com/depix/seem_server/internal/repository"
	"github.com/depix/seem_server/internal/service"
	"github.com/depix/seem_server/internal/testutil"
)

func setupGenerationHandler(t *testing.T, generator service.ImageGenerator) (*GenerationHandler, *testContext, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	log := discardLogger()

	creditService := service.NewCreditService(repository.NewProfileRepository(db), repository.NewCreditRepository(db), log)
	generationService := service.NewGenerationService(db, repository.NewGenerationRepository(db), creditService, generator, log)
	uploadService := service.NewUploadService(nil, config.UploadConfig{
		MaxSize:          1 << 20,
		AllowedMimeTypes: []string{"image/jpeg", "image/png", "image/webp"},
	}, log)

	handler := NewGenerationHandler(generationService, uploadService, log)
	ctx := &testContext{DB: db}

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return handler, ctx, cleanup
}

func generateRouter(handler *GenerationHandler, userID string) *gin.Engine {
	router := gin.New()
	router.Use(mockAuth(userID))
	router.POST("/generate", handler.Generate)
	router.GET("/generations", handler.List)
	router.GET("/generations/:id", handler.Get)
	return router
}

func postGenerate(t *testing.T, router *gin.Engine, fields map[string]string, files ...formFile) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, files...)
	req := httptest.NewRequest("POST", "/generate", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGenerationHandler_Generate_Success(t *testing.T) {
	generator := &fakeGenerator{}
	handler, ctx, cleanup := setupGenerationHandler(t, generator)
	defer cleanup()

	profile := testutil.TestProfile(t, ctx.DB, testutil.WithCredits(10))
	router := generateRouter(handler, profile.ID)

	w := postGenerate(t, router, map[string]string{
		"prompt":         "a watercolor fox in the snow",
		"numImages":      "2",
		"renderingSpeed": "QUALITY",
	})

	resp := parseResponse(t, w)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, response.CodeSuccess, resp.Code)

	data := resp.Data.(map[string]interface{})
	gen := data["generation"].(map[string]interface{})
	assert.NotEmpty(t, gen["id"])
	assert.Len(t, gen["images"], 2)
	assert.Equal(t, float64(3), gen["creditsUsed"])
	assert.Equal(t, float64(7), gen["remainingCredits"])

	require.Equal(t, 1, generator.callCount())
	sent := generator.requests[0]
	assert.Equal(t, "1x1", sent.AspectRatio)
	assert.Equal(t, "AUTO", sent.StyleType)
	assert.True(t, sent.MagicPrompt)
}

func TestGenerationHandler_Generate_WithReferenceImage(t *testing.T) {
	generator := &fakeGenerator{}
	handler, ctx, cleanup := setupGenerationHandler(t, generator)
	defer cleanup()

	profile := testutil.TestProfile(t, ctx.DB, testutil.WithCredits(10))
	router := generateRouter(handler, profile.ID)

	w := postGenerate(t, router,
		map[string]string{"prompt": "portrait of my cat as a knight", "magicPrompt": "false"},
		formFile{field: fieldReferenceImage, filename: "cat.png", data: pngBytes},
	)

	resp := parseResponse(t, w)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	gen := resp.Data.(map[string]interface{})["generation"].(map[string]interface{})
	// 1 张 + 参考图
	assert.Equal(t, float64(2), gen["creditsUsed"])

	sent := generator.requests[0]
	require.NotNil(t, sent.Reference)
	assert.Equal(t, "image/png", sent.Reference.ContentType)
	assert.Nil(t, sent.ReferenceMask)
	assert.False(t, sent.MagicPrompt)
}

func TestGenerationHandler_Generate_ValidationErrors(t *testing.T) {
	generator := &fakeGenerator{}
	handler, ctx, cleanup := setupGenerationHandler(t, generator)
	defer cleanup()

	profile := testutil.TestProfile(t, ctx.DB)
	router := generateRouter(handler, profile.ID)

	w := postGenerate(t, router,
		map[string]string{
			"prompt":         "short",
			"aspectRatio":    "7x3",
			"numImages":      "9",
			"renderingSpeed": "LUDICROUS",
		},
		formFile{field: fieldReferenceMask, filename: "mask.png", data: pngBytes},
	)

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeParamError, resp.Code)

	errs := fieldErrorsOf(t, resp)
	assert.Contains(t, errs, "prompt")
	assert.Contains(t, errs, "aspectRatio")
	assert.Contains(t, errs, "numImages")
	assert.Contains(t, errs, "renderingSpeed")
	assert.Contains(t, errs, fieldReferenceMask)
	assert.Len(t, errs, 5)

	// 校验失败时不落库也不调用上游
	assert.Zero(t, generator.callCount())
	var count int64
	ctx.DB.Model(&model.Generation{}).Count(&count)
	assert.Zero(t, count)
}

func TestGenerationHandler_Generate_MissingPrompt(t *testing.T) {
	handler, ctx, cleanup := setupGenerationHandler(t, &fakeGenerator{})
	defer cleanup()

	profile := testutil.TestProfile(t, ctx.DB)
	router := generateRouter(handler, profile.ID)

	w := postGenerate(t, router, map[string]string{})

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "is required", fieldErrorsOf(t, resp)["prompt"])
}

func TestGenerationHandler_Generate_PromptLengthCountsRunes(t *testing.T) {
	handler, ctx, cleanup := setupGenerationHandler(t, &fakeGenerator{})
	defer cleanup()

	profile := testutil.TestProfile(t, ctx.DB)
	router := generateRouter(handler, profile.ID)

	w := postGenerate(t, router, map[string]string{"prompt": strings.Repeat("猫", 10)})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 9 个字符差一个
	for _, prompt := range []string{"abcdefghi", strings.Repeat("猫", 9)} {
		w = postGenerate(t, router, map[string]string{"prompt": prompt})
		resp := parseResponse(t, w)
		assert.Equal(t, http.StatusBadRequest, w.Code, prompt)
		assert.Equal(t, "must be at least 10 characters", fieldErrorsOf(t, resp)["prompt"], prompt)
	}

	w = postGenerate(t, router, map[string]string{"prompt": strings.Repeat("a", 1001)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerationHandler_Generate_NonNumericField(t *testing.T) {
	generator := &fakeGenerator{}
	handler, ctx, cleanup := setupGenerationHandler(t, generator)
	defer cleanup()

	profile := testutil.TestProfile(t, ctx.DB)
	router := generateRouter(handler, profile.ID)

	w := postGenerate(t, router, map[string]string{
		"prompt":    "a watercolor fox in the snow",
		"numImages": "abc",
	})

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	errs := fieldErrorsOf(t, resp)
	assert.Equal(t, "must be a number", errs["numImages"])
	assert.NotContains(t, errs, "body")
	assert.Zero(t, generator.callCount())
}

func TestGenerationHandler_Generate_ForeignReferenceURL(t *testing.T) {
	generator := &fakeGenerator{}
	handler, ctx, cleanup := setupGenerationHandler(t, generator)
	defer cleanup()

	profile := testutil.TestProfile(t, ctx.DB, testutil.WithCredits(10))
	router := generateRouter(handler, profile.ID)

	w := postGenerate(t, router, map[string]string{
		"prompt":                "portrait of my cat as a knight",
		"characterReferenceUrl": "http://127.0.0.1:9/admin/secret.png",
	})

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "could not be loaded", fieldErrorsOf(t, resp)["characterReferenceUrl"])
	assert.Zero(t, generator.callCount())
}

func TestGenerationHandler_Generate_InvalidReferenceFile(t *testing.T) {
	handler, ctx, cleanup := setupGenerationHandler(t, &fakeGenerator{})
	defer cleanup()

	profile := testutil.TestProfile(t, ctx.DB)
	router := generateRouter(handler, profile.ID)

	w := postGenerate(t, router,
		map[string]string{"prompt": "a valid prompt for the test"},
		formFile{field: fieldReferenceImage, filename: "notes.txt", data: []byte("just some text, not an image")},
	)

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "must be a JPEG, PNG or WebP image", fieldErrorsOf(t, resp)[fieldReferenceImage])
}

func TestGenerationHandler_Generate_InsufficientCredits(t *testing.T) {
	generator := &fakeGenerator{}
	handler, ctx, cleanup := setupGenerationHandler(t, generator)
	defer cleanup()

	profile := testutil.TestProfile(t, ctx.DB, testutil.WithCredits(1))
	router := generateRouter(handler, profile.ID)

	w := postGenerate(t, router, map[string]string{
		"prompt":    "four images please, thank you",
		"numImages": "4",
	})

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, response.CodeInsufficientCredits, resp.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(4), data["required"])
	assert.Equal(t, float64(1), data["available"])
	assert.Zero(t, generator.callCount())
}

func TestGenerationHandler_Generate_InactiveAccount(t *testing.T) {
	handler, ctx, cleanup := setupGenerationHandler(t, &fakeGenerator{})
	defer cleanup()

	profile := testutil.TestProfile(t, ctx.DB, testutil.Inactive())
	router := generateRouter(handler, profile.ID)

	w := postGenerate(t, router, map[string]string{"prompt": "a prompt long enough"})

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, response.CodePermissionDenied, resp.Code)
}

func TestGenerationHandler_Generate_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"rate limited", ideogram.NewAPIError(429, "upstream said no"), http.StatusTooManyRequests, response.CodeRateLimited},
		{"bad request", ideogram.NewAPIError(400, "upstream said no"), http.StatusBadRequest, response.CodeParamError},
		{"validation", ideogram.NewAPIError(422, "upstream said no"), http.StatusBadRequest, response.CodeParamError},
		{"unauthorized", ideogram.NewAPIError(401, "upstream said no"), http.StatusInternalServerError, response.CodeUpstreamError},
		{"server error", ideogram.NewAPIError(503, "upstream said no"), http.StatusInternalServerError, response.CodeUpstreamError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, ctx, cleanup := setupGenerationHandler(t, &fakeGenerator{err: tt.err})
			defer cleanup()

			profile := testutil.TestProfile(t, ctx.DB, testutil.WithCredits(5))
			router := generateRouter(handler, profile.ID)

			w := postGenerate(t, router, map[string]string{"prompt": "a prompt long enough"})

			resp := parseResponse(t, w)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, resp.Code)

			// 积分不变，记录为 failed
			got, err := repository.NewProfileRepository(ctx.DB).GetByID(profile.ID)
			require.NoError(t, err)
			assert.Equal(t, 5, got.Credits)

			var gen model.Generation
			require.NoError(t, ctx.DB.First(&gen).Error)
			assert.Equal(t, model.GenerationFailed, gen.Status)
		})
	}
}

func TestGenerationHandler_ListAndGet(t *testing.T) {
	handler, ctx, cleanup := setupGenerationHandler(t, &fakeGenerator{})
	defer cleanup()

	owner := testutil.TestProfile(t, ctx.DB)
	other := testutil.TestProfile(t, ctx.DB)
	var mine *model.Generation
	for i := 0; i < 3; i++ {
		mine = testutil.TestGeneration(t, ctx.DB, owner.ID)
	}
	foreign := testutil.TestGeneration(t, ctx.DB, other.ID)

	router := generateRouter(handler, owner.ID)

	req := httptest.NewRequest("GET", "/generations?page=1&page_size=2", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := parseResponse(t, w)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(3), data["total"])
	assert.Len(t, data["items"], 2)

	req = httptest.NewRequest("GET", "/generations/"+mine.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	resp = parseResponse(t, w)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, mine.ID, resp.Data.(map[string]interface{})["id"])

	// 他人的记录视为不存在
	req = httptest.NewRequest("GET", "/generations/"+foreign.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGenerationHandler_List_InvalidStatus(t *testing.T) {
	handler, ctx, cleanup := setupGenerationHandler(t, &fakeGenerator{})
	defer cleanup()

	profile := testutil.TestProfile(t, ctx.DB)
	router := generateRouter(handler, profile.ID)

	req := httptest.NewRequest("GET", fmt.Sprintf("/generations?status=%s", "done"), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, fieldErrorsOf(t, resp), "status")
}
