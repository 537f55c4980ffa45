// Package ideogram 是 Ideogram v3 生成接口的 HTTP 客户端
package ideogram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.ideogram.ai"
	generatePath   = "/v1/ideogram-v3/generate"
	maxErrorBody   = 4 << 10
)

// Image 随请求上传的图片
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Request struct {
	Prompt         string
	AspectRatio    string
	StyleType      string
	RenderingSpeed string
	NumImages      int
	MagicPrompt    bool
	Reference      *Image
	ReferenceMask  *Image
}

type GeneratedImage struct {
	URL         string `json:"url"`
	Prompt      string `json:"prompt"`
	Resolution  string `json:"resolution"`
	IsImageSafe bool   `json:"is_image_safe"`
	Seed        int64  `json:"seed"`
	StyleType   string `json:"style_type"`
}

type Result struct {
	Created string           `json:"created"`
	Data    []GeneratedImage `json:"data"`
}

// URLs 返回全部图片地址，跳过空值
func (r *Result) URLs() []string {
	urls := make([]string, 0, len(r.Data))
	for _, img := range r.Data {
		if img.URL != "" {
			urls = append(urls, img.URL)
		}
	}
	return urls
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type Option func(*Client)

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL 测试时指向 httptest server
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithRateLimit 客户端侧限速，rps <= 0 表示不限
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func NewClient(apiKey string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate 发起一次生成请求，不重试
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, upstreamError(fmt.Sprintf("rate limiter: %v", err))
		}
	}

	body, contentType, err := encodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("encode ideogram request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, body)
	if err != nil {
		return nil, fmt.Errorf("build ideogram request: %w", err)
	}
	httpReq.Header.Set("Api-Key", c.apiKey)
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, upstreamError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, NewAPIError(resp.StatusCode, extractMessage(msg))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, upstreamError(fmt.Sprintf("decode response: %v", err))
	}
	if len(result.URLs()) == 0 {
		return nil, upstreamError("response contained no images")
	}
	return &result, nil
}

func encodeRequest(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"prompt", req.Prompt},
		{"aspect_ratio", req.AspectRatio},
		{"rendering_speed", req.RenderingSpeed},
		{"style_type", req.StyleType},
		{"num_images", strconv.Itoa(req.NumImages)},
		{"magic_prompt", magicPromptValue(req.MagicPrompt)},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	if req.Reference != nil {
		if err := writeImage(w, "character_reference_images", req.Reference); err != nil {
			return nil, "", err
		}
		if req.ReferenceMask != nil {
			if err := writeImage(w, "character_reference_images_mask", req.ReferenceMask); err != nil {
				return nil, "", err
			}
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func writeImage(w *multipart.Writer, field string, img *Image) error {
	filename := img.Filename
	if filename == "" {
		filename = field
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, escapeQuotes(filename)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(img.Data)
	return err
}

func magicPromptValue(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// extractMessage 尽量从错误响应中取出可读信息
func extractMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, s := range []string{payload.Message, payload.Error, payload.Detail} {
			if s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(body))
}
