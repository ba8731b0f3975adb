package icon

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theakshaypant/today/internal/core"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type memRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *memRecorder) Record(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *memRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func TestFetch_CoalescesConcurrentCalls(t *testing.T) {
	body := pngBytes(t)
	var calls atomic.Int32
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		entered <- struct{}{}
		<-release
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	cache := New(WithHTTPClient(srv.Client()))
	uri := srv.URL + "/meet.png"

	var wg sync.WaitGroup
	results := make([]image.Image, 2)
	oks := make([]bool, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], oks[i] = cache.Fetch(context.Background(), uri)
		}()
	}

	<-entered
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, oks[0])
	assert.True(t, oks[1])
	assert.Same(t, results[0], results[1])

	cached, ok := cache.Lookup(uri)
	require.True(t, ok)
	assert.Same(t, results[0], cached)

	_, ok = cache.Fetch(context.Background(), uri)
	assert.True(t, ok)
	assert.Equal(t, int32(1), calls.Load(), "hit does not touch the network")
}

func TestFetch_CoalescesConcurrentFailures(t *testing.T) {
	var calls atomic.Int32
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		entered <- struct{}{}
		<-release
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rec := &memRecorder{}
	cache := New(WithHTTPClient(srv.Client()), WithRecorder(rec))
	uri := srv.URL + "/teams.png"

	var wg sync.WaitGroup
	results := make([]image.Image, 2)
	oks := make([]bool, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], oks[i] = cache.Fetch(context.Background(), uri)
		}()
	}

	<-entered
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []bool{false, false}, oks)
	assert.Nil(t, results[0])
	assert.Nil(t, results[1])
	assert.Equal(t, 1, rec.count())

	_, ok := cache.Lookup(uri)
	assert.False(t, ok)
}

func TestFetch_FailureIsNotCached(t *testing.T) {
	body := pngBytes(t)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	rec := &memRecorder{}
	cache := New(WithHTTPClient(srv.Client()), WithRecorder(rec))
	uri := srv.URL + "/zoom.png"

	img, ok := cache.Fetch(context.Background(), uri)
	assert.False(t, ok)
	assert.Nil(t, img)
	_, ok = cache.Lookup(uri)
	assert.False(t, ok, "no entry after a failure")
	require.Equal(t, 1, rec.count())
	assert.ErrorIs(t, rec.errs[0], core.ErrFetchNetworkFailure)

	img, ok = cache.Fetch(context.Background(), uri)
	assert.True(t, ok)
	assert.NotNil(t, img)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_UndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not an image</html>"))
	}))
	defer srv.Close()

	rec := &memRecorder{}
	cache := New(WithHTTPClient(srv.Client()), WithRecorder(rec))

	_, ok := cache.Fetch(context.Background(), srv.URL+"/x")
	assert.False(t, ok)
	assert.Equal(t, 1, rec.count())
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cache := New(WithHTTPClient(srv.Client()), WithTimeout(20*time.Millisecond))

	_, ok := cache.Fetch(context.Background(), srv.URL+"/slow")
	assert.False(t, ok)
}

func TestFetch_EmptyURI(t *testing.T) {
	_, ok := New().Fetch(context.Background(), "")
	assert.False(t, ok)
}
