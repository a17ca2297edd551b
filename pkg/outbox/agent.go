package outbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/audioship/pkg/log"
	"github.com/bft-labs/audioship/pkg/upload"
)

// Uploader delivers one payload. *upload.Client satisfies it.
type Uploader interface {
	Upload(ctx context.Context, p upload.Payload) (upload.Result, error)
}

// EventHandler observes per-file outcomes. Methods are called from upload
// goroutines and must not block.
type EventHandler interface {
	OnDelivered(name string, res upload.Result)
	OnFailed(name string, err error, willRetry bool)
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the agent logger.
func WithLogger(l log.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithEventHandler registers an outcome observer.
func WithEventHandler(h EventHandler) Option {
	return func(a *Agent) { a.events = h }
}

// WithLedgerRepository replaces the JSON file ledger.
func WithLedgerRepository(r LedgerRepository) Option {
	return func(a *Agent) { a.repo = r }
}

// Agent uploads settled files from a directory.
type Agent struct {
	cfg      Config
	uploader Uploader
	repo     LedgerRepository
	logger   log.Logger
	events   EventHandler

	mu       sync.Mutex
	ledger   Ledger
	inflight map[string]bool

	// saveMu orders ledger writes.
	saveMu sync.Mutex
}

// New validates cfg and creates an Agent.
func New(cfg Config, uploader Uploader, opts ...Option) (*Agent, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if uploader == nil {
		return nil, errors.New("uploader is required")
	}

	a := &Agent{
		cfg:      cfg,
		uploader: uploader,
		logger:   log.NewNoopLogger(),
		inflight: map[string]bool{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.repo == nil {
		a.repo = NewFileLedgerRepository(cfg.StateDir)
	}
	return a, nil
}

// Run processes the directory until ctx is canceled, or once when
// Config.Once is set. In-flight uploads finish before Run returns.
func (a *Agent) Run(ctx context.Context) error {
	ledger, err := a.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	a.mu.Lock()
	a.ledger = ledger
	a.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)

	if a.cfg.Once {
		a.scan(ctx, &g, true)
		_ = g.Wait()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(a.cfg.WatchDir); err != nil {
		return fmt.Errorf("watch %s: %w", a.cfg.WatchDir, err)
	}

	a.logger.Info("outbox watching",
		log.String("dir", a.cfg.WatchDir),
		log.String("pattern", a.cfg.Pattern))

	wake := make(chan struct{}, 1)
	trigger := func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	}

	ticker := time.NewTicker(a.cfg.ScanInterval)
	defer ticker.Stop()

	a.scan(ctx, &g, false)

	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				_ = g.Wait()
				return nil
			}
			if !a.matches(filepath.Base(event.Name)) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Look again once the file had time to settle.
			time.AfterFunc(a.cfg.SettleDelay+10*time.Millisecond, trigger)

		case err, ok := <-watcher.Errors:
			if !ok {
				_ = g.Wait()
				return nil
			}
			a.logger.Warn("watcher error", log.Err(err))

		case <-wake:
			a.scan(ctx, &g, false)

		case <-ticker.C:
			a.scan(ctx, &g, false)
		}
	}
}

// Ledger returns a copy of the current ledger.
func (a *Agent) Ledger() Ledger {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := Ledger{Files: make(map[string]Entry, len(a.ledger.Files))}
	for k, v := range a.ledger.Files {
		cp.Files[k] = v
	}
	return cp
}

func (a *Agent) matches(name string) bool {
	ok, _ := filepath.Match(a.cfg.Pattern, name)
	return ok
}

// scan dispatches every settled file that still needs delivery. When block
// is false, files beyond the concurrency limit wait for the next scan.
func (a *Agent) scan(ctx context.Context, g *errgroup.Group, block bool) {
	entries, err := os.ReadDir(a.cfg.WatchDir)
	if err != nil {
		a.logger.Error("read watch dir", log.String("dir", a.cfg.WatchDir), log.Err(err))
		return
	}

	present := make(map[string]bool, len(entries))
	var due []string
	now := time.Now()

	for _, de := range entries {
		if de.IsDir() || !a.matches(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		present[de.Name()] = true
		if now.Sub(info.ModTime()) < a.cfg.SettleDelay {
			continue
		}
		if a.needsUpload(de.Name(), info, now) {
			due = append(due, de.Name())
		}
	}
	a.prune(ctx, present)

	sort.Strings(due)
	for _, name := range due {
		if ctx.Err() != nil {
			return
		}
		if !a.claim(name) {
			continue
		}
		name := name
		task := func() error {
			defer a.release(name)
			a.deliver(ctx, name)
			return nil
		}
		if block {
			g.Go(task)
		} else if !g.TryGo(task) {
			a.release(name)
			return
		}
	}
}

func (a *Agent) needsUpload(name string, info os.FileInfo, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.inflight[name] {
		return false
	}
	e, ok := a.ledger.Files[name]
	if !ok || !e.Matches(info) {
		return true
	}
	if e.Status == StatusDelivered {
		return false
	}
	// Exhausted retryable failures get another round after a cool-down.
	return e.Retryable && now.Sub(e.LastAttemptAt) >= a.cfg.RetryMax
}

func (a *Agent) claim(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inflight[name] {
		return false
	}
	a.inflight[name] = true
	return true
}

func (a *Agent) release(name string) {
	a.mu.Lock()
	delete(a.inflight, name)
	a.mu.Unlock()
}

// prune drops ledger entries for files that are gone.
func (a *Agent) prune(ctx context.Context, present map[string]bool) {
	a.mu.Lock()
	removed := 0
	for name := range a.ledger.Files {
		if !present[name] && !a.inflight[name] {
			delete(a.ledger.Files, name)
			removed++
		}
	}
	a.mu.Unlock()

	if removed > 0 {
		a.save(ctx)
	}
}

func (a *Agent) deliver(ctx context.Context, name string) {
	path := filepath.Join(a.cfg.WatchDir, name)
	b := newBackoff(a.cfg.RetryInitial, a.cfg.RetryMax)

	for attempt := 1; ; attempt++ {
		info, err := os.Stat(path)
		if err != nil {
			a.logger.Warn("recording disappeared", log.String("file", name), log.Err(err))
			return
		}

		p, err := upload.OpenPayload(path, a.cfg.MIMEType)
		var res upload.Result
		if err == nil {
			res, err = a.uploader.Upload(ctx, p)
		}
		if err == nil {
			a.recordDelivered(ctx, name, info, attempt, res)
			return
		}

		if ctx.Err() != nil {
			return
		}

		var uerr *upload.Error
		retryable := errors.As(err, &uerr) && uerr.Retryable()
		exhausted := a.cfg.MaxAttempts > 0 && attempt >= a.cfg.MaxAttempts
		willRetry := retryable && !exhausted

		a.recordFailed(ctx, name, info, attempt, err, retryable)
		if a.events != nil {
			a.events.OnFailed(name, err, willRetry)
		}
		if !willRetry {
			a.logger.Error("giving up on recording",
				log.String("file", name),
				log.Int("attempts", attempt),
				log.Err(err))
			return
		}

		if err := b.Wait(ctx); err != nil {
			return
		}
	}
}

func (a *Agent) recordDelivered(ctx context.Context, name string, info os.FileInfo, attempt int, res upload.Result) {
	now := time.Now()
	a.mu.Lock()
	a.ledger.Files[name] = Entry{
		Size:          info.Size(),
		ModTime:       info.ModTime(),
		Status:        StatusDelivered,
		Attempts:      attempt,
		LastAttemptAt: now,
		DeliveredAt:   now,
		Response:      res.Body,
	}
	a.mu.Unlock()
	a.save(ctx)

	a.logger.Info("recording delivered",
		log.String("file", name),
		log.Int("attempts", attempt),
		log.Int("status", res.StatusCode))

	if a.cfg.DeleteDelivered {
		if err := os.Remove(filepath.Join(a.cfg.WatchDir, name)); err != nil && !os.IsNotExist(err) {
			a.logger.Warn("remove delivered recording", log.String("file", name), log.Err(err))
		}
	}
	if a.events != nil {
		a.events.OnDelivered(name, res)
	}
}

func (a *Agent) recordFailed(ctx context.Context, name string, info os.FileInfo, attempt int, err error, retryable bool) {
	a.mu.Lock()
	a.ledger.Files[name] = Entry{
		Size:          info.Size(),
		ModTime:       info.ModTime(),
		Status:        StatusFailed,
		Attempts:      attempt,
		LastError:     err.Error(),
		Retryable:     retryable,
		LastAttemptAt: time.Now(),
	}
	a.mu.Unlock()
	a.save(ctx)
}

func (a *Agent) save(ctx context.Context) {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()
	l := a.Ledger()
	if err := a.repo.Save(ctx, l); err != nil {
		a.logger.Error("save ledger", log.Err(err))
	}
}
