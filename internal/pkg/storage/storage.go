// Package storage 存放参考图和转存的生成结果
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrTooLarge        = errors.New("file exceeds maximum size")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// ObjectStore 对象存储后端，Put 返回可公开访问的 URL。
// Owns 判断 URL 是否指向本存储，只有这样的链接才允许服务端去下载
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Owns(rawURL string) bool
}

// Object 下载或上传的文件内容
type Object struct {
	Data        []byte
	ContentType string
	Extension   string
}

// Sniff 按内容判断 MIME，不信任客户端声明的类型
func Sniff(data []byte, allowed []string) (*Object, error) {
	mime := mimetype.Detect(data)
	if len(allowed) > 0 && !mimetype.EqualsAny(mime.String(), allowed...) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mime.String())
	}
	return &Object{
		Data:        data,
		ContentType: mime.String(),
		Extension:   mime.Extension(),
	}, nil
}

// ReadLimited 读取至多 maxSize 字节，超出返回 ErrTooLarge
func ReadLimited(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Fetcher 下载远程图片
type Fetcher struct {
	httpClient *http.Client
	maxSize    int64
	allowed    []string
}

func NewFetcher(timeout time.Duration, maxSize int64, allowed []string) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		maxSize:    maxSize,
		allowed:    allowed,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", rawURL, resp.StatusCode)
	}

	data, err := ReadLimited(resp.Body, f.maxSize)
	if err != nil {
		return nil, err
	}
	return Sniff(data, f.allowed)
}

// underBase 判断 rawURL 与 base 同 scheme、同 host，且路径在 base 之下
func underBase(rawURL, base string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.User != nil || u.Host == "" {
		return false
	}
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return false
	}
	if !strings.EqualFold(u.Scheme, b.Scheme) || !strings.EqualFold(u.Host, b.Host) {
		return false
	}
	clean := path.Clean("/" + u.Path)
	prefix := strings.TrimSuffix(b.Path, "/") + "/"
	return strings.HasPrefix(clean, prefix) && len(clean) > len(prefix)
}

// ReferenceKey 参考图的对象路径
func ReferenceKey(userID, ext string) string {
	return fmt.Sprintf("references/%s/%s%s", safeSegment(userID), uuid.NewString(), ext)
}

// GeneratedKey 生成结果的对象路径
func GeneratedKey(userID, generationID string, index int, ext string) string {
	return fmt.Sprintf("generations/%s/%s/%d%s", safeSegment(userID), generationID, index, ext)
}

func safeSegment(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "..", "_")
	if s == "" {
		return "anonymous"
	}
	return s
}
