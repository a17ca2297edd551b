package outbox

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/audioship/pkg/upload"
)

// fakeUploader records payloads and replays scripted errors per file.
type fakeUploader struct {
	mu      sync.Mutex
	calls   map[string]int
	data    map[string][]byte
	script  map[string][]error
	maxLive int
	live    int
	delay   time.Duration
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{
		calls:  map[string]int{},
		data:   map[string][]byte{},
		script: map[string][]error{},
	}
}

func (f *fakeUploader) Upload(ctx context.Context, p upload.Payload) (upload.Result, error) {
	f.mu.Lock()
	f.live++
	if f.live > f.maxLive {
		f.maxLive = f.live
	}
	name := p.Filename()
	f.calls[name]++
	var err error
	if s := f.script[name]; len(s) > 0 {
		err, f.script[name] = s[0], s[1:]
	}
	buf := make([]byte, p.Size())
	_, _ = p.Reader().Read(buf)
	f.data[name] = buf
	delay := f.delay
	f.mu.Unlock()

	time.Sleep(delay)

	f.mu.Lock()
	f.live--
	f.mu.Unlock()

	if err != nil {
		return upload.Result{}, err
	}
	return upload.Result{StatusCode: 200, Body: "ok", HasBody: true}, nil
}

func (f *fakeUploader) callsFor(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

type recordingEvents struct {
	delivered chan string
	failed    chan string
}

func newRecordingEvents() *recordingEvents {
	return &recordingEvents{delivered: make(chan string, 32), failed: make(chan string, 32)}
}

func (r *recordingEvents) OnDelivered(name string, res upload.Result) { r.delivered <- name }
func (r *recordingEvents) OnFailed(name string, err error, willRetry bool) {
	r.failed <- name
}

// writeSettled writes a recording whose mtime is safely in the past.
func writeSettled(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	past := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(path, past, past))
}

func testConfig(dir string) Config {
	cfg := DefaultConfig()
	cfg.WatchDir = dir
	cfg.SettleDelay = 5 * time.Second
	cfg.RetryInitial = 10 * time.Millisecond
	cfg.RetryMax = 40 * time.Millisecond
	cfg.Once = true
	return cfg
}

func TestAgentOnceDeliversSettledFiles(t *testing.T) {
	dir := t.TempDir()
	writeSettled(t, dir, "a.m4a", "first")
	writeSettled(t, dir, "b.m4a", "second")
	writeSettled(t, dir, "notes.txt", "ignored")
	// Still being written: mtime is now.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "live.m4a"), []byte("partial"), 0o600))

	up := newFakeUploader()
	a, err := New(testConfig(dir), up)
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, 1, up.callsFor("a.m4a"))
	assert.Equal(t, 1, up.callsFor("b.m4a"))
	assert.Zero(t, up.callsFor("notes.txt"))
	assert.Zero(t, up.callsFor("live.m4a"))
	assert.Equal(t, []byte("first"), up.data["a.m4a"])

	l := a.Ledger()
	assert.Equal(t, StatusDelivered, l.Files["a.m4a"].Status)
	assert.Equal(t, "ok", l.Files["a.m4a"].Response)

	// A second run reads the persisted ledger and sends nothing new.
	a2, err := New(testConfig(dir), up)
	require.NoError(t, err)
	require.NoError(t, a2.Run(context.Background()))
	assert.Equal(t, 1, up.callsFor("a.m4a"))
	assert.Equal(t, 1, up.callsFor("b.m4a"))
}

func TestAgentReuploadsModifiedFile(t *testing.T) {
	dir := t.TempDir()
	writeSettled(t, dir, "a.m4a", "v1")

	up := newFakeUploader()
	a, err := New(testConfig(dir), up)
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))

	path := filepath.Join(dir, "a.m4a")
	require.NoError(t, os.WriteFile(path, []byte("version two"), 0o600))
	older := time.Now().Add(-30 * time.Second)
	require.NoError(t, os.Chtimes(path, older, older))

	require.NoError(t, a.Run(context.Background()))
	assert.Equal(t, 2, up.callsFor("a.m4a"))
	assert.Equal(t, []byte("version two"), up.data["a.m4a"])
}

func TestAgentRetriesRetryableFailures(t *testing.T) {
	dir := t.TempDir()
	writeSettled(t, dir, "a.m4a", "audio")

	up := newFakeUploader()
	up.script["a.m4a"] = []error{
		&upload.Error{Kind: upload.KindNetworkUnreachable, Message: "refused"},
		&upload.Error{Kind: upload.KindServerRejected, StatusCode: 503, Message: "busy"},
	}

	a, err := New(testConfig(dir), up)
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, 3, up.callsFor("a.m4a"))
	e := a.Ledger().Files["a.m4a"]
	assert.Equal(t, StatusDelivered, e.Status)
	assert.Equal(t, 3, e.Attempts)
}

func TestAgentStopsOnPermanentFailure(t *testing.T) {
	dir := t.TempDir()
	writeSettled(t, dir, "a.m4a", "audio")

	up := newFakeUploader()
	up.script["a.m4a"] = []error{
		&upload.Error{Kind: upload.KindServerRejected, StatusCode: 400, Message: "bad"},
	}
	events := newRecordingEvents()

	a, err := New(testConfig(dir), up, WithEventHandler(events))
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, 1, up.callsFor("a.m4a"))
	e := a.Ledger().Files["a.m4a"]
	assert.Equal(t, StatusFailed, e.Status)
	assert.False(t, e.Retryable)
	assert.Contains(t, e.LastError, "bad")
	assert.Equal(t, "a.m4a", <-events.failed)

	// Unchanged file is not retried.
	require.NoError(t, a.Run(context.Background()))
	assert.Equal(t, 1, up.callsFor("a.m4a"))
}

func TestAgentRespectsMaxAttempts(t *testing.T) {
	dir := t.TempDir()
	writeSettled(t, dir, "a.m4a", "audio")

	refused := &upload.Error{Kind: upload.KindNetworkUnreachable, Message: "refused"}
	up := newFakeUploader()
	up.script["a.m4a"] = []error{refused, refused, refused, refused}

	cfg := testConfig(dir)
	cfg.MaxAttempts = 2
	a, err := New(cfg, up)
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, 2, up.callsFor("a.m4a"))
	e := a.Ledger().Files["a.m4a"]
	assert.Equal(t, StatusFailed, e.Status)
	assert.True(t, e.Retryable)
}

func TestAgentDeletesDelivered(t *testing.T) {
	dir := t.TempDir()
	writeSettled(t, dir, "a.m4a", "audio")

	cfg := testConfig(dir)
	cfg.DeleteDelivered = true
	a, err := New(cfg, newFakeUploader())
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))

	_, err = os.Stat(filepath.Join(dir, "a.m4a"))
	assert.True(t, os.IsNotExist(err))

	// The next scan forgets the vanished file.
	require.NoError(t, a.Run(context.Background()))
	assert.NotContains(t, a.Ledger().Files, "a.m4a")
}

func TestAgentBoundsConcurrency(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"1.m4a", "2.m4a", "3.m4a", "4.m4a", "5.m4a", "6.m4a"} {
		writeSettled(t, dir, n, n)
	}

	up := newFakeUploader()
	up.delay = 20 * time.Millisecond
	cfg := testConfig(dir)
	cfg.Concurrency = 2

	a, err := New(cfg, up)
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))

	assert.LessOrEqual(t, up.maxLive, 2)
	assert.Len(t, a.Ledger().Files, 6)
}

func TestAgentWatchesNewFiles(t *testing.T) {
	dir := t.TempDir()
	up := newFakeUploader()
	events := newRecordingEvents()

	cfg := testConfig(dir)
	cfg.Once = false
	cfg.SettleDelay = 50 * time.Millisecond
	cfg.ScanInterval = time.Hour

	a, err := New(cfg, up, WithEventHandler(events))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.m4a"), []byte("fresh"), 0o600))

	select {
	case name := <-events.delivered:
		assert.Equal(t, "new.m4a", name)
	case <-time.After(5 * time.Second):
		t.Fatal("new recording was not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{}, newFakeUploader())
	assert.Error(t, err)

	_, err = New(Config{WatchDir: t.TempDir(), Pattern: "[bad"}, newFakeUploader())
	assert.Error(t, err)

	_, err = New(Config{WatchDir: t.TempDir()}, nil)
	assert.Error(t, err)

	_, err = New(Config{WatchDir: t.TempDir(), RetryInitial: time.Minute, RetryMax: time.Second}, newFakeUploader())
	assert.Error(t, err)
}
