package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/notekeeper/internal/client/assets"
	"github.com/dmitrijs2005/notekeeper/internal/client/config"
	"github.com/dmitrijs2005/notekeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/notekeeper/internal/client/queue"
	"github.com/dmitrijs2005/notekeeper/internal/client/remote"
	"github.com/dmitrijs2005/notekeeper/internal/client/services"
	"github.com/dmitrijs2005/notekeeper/internal/client/session"
	"github.com/dmitrijs2005/notekeeper/internal/client/store"
	"github.com/dmitrijs2005/notekeeper/internal/client/syncer"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
)

// tokenSetter is implemented by the gRPC client.
type tokenSetter interface {
	SetAccessToken(token string)
}

type App struct {
	cfg    *config.Config
	logger logging.Logger

	store    *store.Store
	queue    *queue.Queue
	monitor  *connectivity.Monitor
	remote   remote.NoteStore
	tokens   tokenSetter
	notes    services.NoteService
	assets   *assets.Cache
	sessions *session.Manager
	engine   *syncer.Engine
	closers  []io.Closer

	mu      sync.RWMutex
	session session.Session

	cancel context.CancelFunc
	wg     sync.WaitGroup

	reader *bufio.Reader
	out    io.Writer
}

// NewApp opens the local store and connects the remote clients. A local
// store that cannot be opened is not fatal: the app then runs online only.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.New(logging.Options{
		File:       cfg.LogFile,
		Level:      cfg.LogLevel,
		MaxSizeMB:  10,
		MaxBackups: 3,
	})

	st := store.New(cfg.DatabasePath, logger)
	if err := st.Open(ctx); err != nil {
		printlnFn("Local cache unavailable, changes need a connection:", err)
	}

	gc, err := remote.NewGRPCClient(cfg.ServerEndpointAddr, cfg.RemoteTimeout)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	s3, err := remote.NewS3Storage(ctx, remote.S3Config{
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		Bucket:    cfg.S3.Bucket,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		PublicURL: cfg.S3.PublicURL,
	})
	if err != nil {
		_ = gc.Close()
		_ = st.Close()
		return nil, err
	}

	a := assemble(cfg, logger, st, remote.NewClient(gc, s3), os.Stdin, os.Stdout)
	a.tokens = gc
	a.closers = append(a.closers, gc)
	return a, nil
}

// assemble builds the services on top of an opened store and remote.
func assemble(cfg *config.Config, logger logging.Logger, st *store.Store, rc remote.NoteStore, in io.Reader, out io.Writer) *App {
	a := &App{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		queue:    queue.New(st),
		monitor:  connectivity.NewMonitor(false),
		remote:   rc,
		sessions: session.NewManager(st, nil),
		reader:   bufio.NewReader(in),
		out:      out,
	}

	a.assets = assets.New(st, a.monitor, logger, assets.Options{
		Dir:          cfg.CacheDir,
		FetchTimeout: cfg.AssetFetchTimeout,
		MaxSize:      cfg.AssetMaxSize,
		Retry: assets.RetryPolicy{
			MaxRetries: cfg.AutoCacheRetries,
			Delay:      cfg.AutoCacheRetryDelay,
		},
	})

	a.notes = services.NewNoteService(services.NoteDeps{
		Remote:       rc,
		Store:        st,
		Queue:        a.queue,
		Connectivity: a.monitor,
		Assets:       a.assets,
		Owner:        a.owner,
		Logger:       logger,
		MaxPinned:    cfg.MaxPinned,
		MirrorDelay:  cfg.MirrorDebounce,
	})

	a.engine = syncer.New(syncer.Config{
		Queue:        a.queue,
		Remote:       rc,
		Connectivity: a.monitor,
		State:        a.notes,
		Assets:       a.assets,
		Metadata:     st,
		Owner:        a.owner,
		Logger:       logger,
		OnReport:     a.printReport,
	})
	return a
}

func (a *App) owner(context.Context) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session.OwnerID == "" {
		return "", session.ErrNoSession
	}
	return a.session.OwnerID, nil
}

func (a *App) setSession(s session.Session) {
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()
	if a.tokens != nil {
		a.tokens.SetAccessToken(s.Token)
	}
}

func (a *App) isLoggedIn() bool {
	_, err := a.owner(context.Background())
	return err == nil
}

// restoreSession picks up the stored token, falling back to the one from
// the configuration.
func (a *App) restoreSession(ctx context.Context) {
	s, err := a.sessions.Load(ctx)
	if err == nil {
		a.setSession(s)
		return
	}
	if !errors.Is(err, session.ErrNoSession) {
		a.logger.Warn(ctx, "stored session unusable", "error", err)
	}
	if a.cfg.AccessToken == "" {
		return
	}
	if err := a.useToken(ctx, a.cfg.AccessToken); err != nil {
		a.logger.Warn(ctx, "configured token rejected", "error", err)
	}
}

// useToken parses token and keeps it for later runs. A store failure only
// loses persistence; the session is still used for this run.
func (a *App) useToken(ctx context.Context, token string) error {
	s, err := a.sessions.Save(ctx, token)
	if err != nil && s.OwnerID == "" {
		return err
	}
	if err != nil {
		a.logger.Warn(ctx, "session not persisted", "error", err)
	}
	a.setSession(s)
	return nil
}

// Run starts the background workers and blocks in the REPL until the user
// exits or input ends.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	printlnFn("Welcome to notekeeper (type 'help' for commands)")

	a.restoreSession(ctx)
	if !a.isLoggedIn() {
		if err := a.Login(ctx, nil); err != nil {
			printlnFn("Error:", err)
		}
	}
	if err := a.notes.Load(ctx); err != nil {
		a.logger.Warn(ctx, "notes not loaded from local store", "error", err)
	}

	a.start(ctx)
	runREPL(ctx, a, a.getStatus, a.reader)
}

// start launches the connectivity probe, the sync loop, the mode printer
// and the startup eviction sweep.
func (a *App) start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	a.wg.Add(4)
	go func() {
		defer a.wg.Done()
		connectivity.Watch(ctx, a.monitor, a.remote, a.cfg.OnlineCheckInterval, a.cfg.OnlineCheckInterval)
	}()
	go func() {
		defer a.wg.Done()
		a.engine.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.watchMode(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.evictExpired(ctx)
	}()
}

func (a *App) watchMode(ctx context.Context) {
	events, unsubscribe := a.monitor.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			printlnFn(fmt.Sprintf("Switched to %s mode", ev))
			if ev == connectivity.BecameOnline {
				if _, err := a.notes.Refresh(ctx); err != nil {
					a.logger.Warn(ctx, "refresh after reconnect failed", "error", err)
				}
			}
		}
	}
}

func (a *App) evictExpired(ctx context.Context) {
	n, err := a.assets.EvictOlderThan(ctx, a.cfg.AssetRetention)
	if err != nil {
		a.logger.Debug(ctx, "startup eviction skipped", "error", err)
		return
	}
	if n > 0 {
		a.logger.Info(ctx, "evicted expired images", "count", n)
	}
}

func (a *App) printReport(r syncer.Report) {
	msg := fmt.Sprintf("Sync finished: %d applied, %d failed, %d pending", r.Succeeded, r.Failed, r.Remaining)
	if r.Unremoved > 0 {
		msg += fmt.Sprintf(", %d applied but still queued", r.Unremoved)
	}
	if r.Err != nil {
		msg += fmt.Sprintf(" (%v)", r.Err)
	}
	printlnFn(msg)
}

// Close stops the workers, writes any pending mirror and releases
// connections.
func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	ctx := context.Background()
	a.notes.Flush(ctx)
	a.assets.Close()
	for _, c := range a.closers {
		_ = c.Close()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn(ctx, "close local store", "error", err)
	}
}

func (a *App) getStatus() string {
	st := a.notes.Status(context.Background())
	mode := "offline"
	if st.Online {
		mode = "online"
	}
	s := mode
	if owner, err := a.owner(context.Background()); err == nil {
		s = owner + " " + mode
	}
	if st.CacheReady {
		s += fmt.Sprintf(" pending=%d", st.Pending)
	} else {
		s += " nocache"
	}
	return fmt.Sprintf("(%s)", s)
}
