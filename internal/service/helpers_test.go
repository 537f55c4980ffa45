package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/depix/seem_server/internal/pkg/ideogram"
	"github.com/depix/seem_server/internal/pkg/pubsub"
	"github.com/depix/seem_server/internal/pkg/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   []ideogram.Request
	ctxErrs []error
	urls    []string
	err     error
	onCall  func()
}

func (f *fakeGenerator) Generate(ctx context.Context, req ideogram.Request) (*ideogram.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall()
	}
	if f.err != nil {
		return nil, f.err
	}
	result := &ideogram.Result{}
	for _, u := range f.urls {
		result.Data = append(result.Data, ideogram.GeneratedImage{URL: u})
	}
	return result, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []*pubsub.StatusMessage
}

func (f *fakePublisher) PublishStatus(_ context.Context, msg *pubsub.StatusMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *msg
	f.messages = append(f.messages, &copied)
	return nil
}

func (f *fakePublisher) statuses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m.Status)
	}
	return out
}

func (f *fakePublisher) last() *pubsub.StatusMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return nil
	}
	return f.messages[len(f.messages)-1]
}

type fakeStore struct {
	mu   sync.Mutex
	puts map[string][]byte
	err  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{puts: make(map[string][]byte)}
}

func (f *fakeStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts[key] = data
	return "https://store.example.com/" + key, nil
}

func (f *fakeStore) Owns(rawURL string) bool {
	return strings.HasPrefix(rawURL, "https://store.example.com/")
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

type fakeFetcher struct {
	objects map[string]*storage.Object
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*storage.Object, error) {
	obj, ok := f.objects[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return obj, nil
}

type fakeMailer struct {
	mu      sync.Mutex
	enabled bool
	welcome []string
	plans   []string
}

func (f *fakeMailer) Enabled() bool { return f.enabled }

func (f *fakeMailer) SendWelcome(to string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.welcome = append(f.welcome, to)
	return nil
}

func (f *fakeMailer) SendPlanActivated(to, _ string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plans = append(f.plans, to)
	return nil
}

func (f *fakeMailer) sent() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.welcome), len(f.plans)
}

// 最小的 PNG 文件头，足够让 mimetype 识别
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
