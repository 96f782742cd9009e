package accesslog

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/semihalev/dnsredir/config"
	"github.com/semihalev/dnsredir/dnsmsg"
	"github.com/semihalev/dnsredir/middleware"
	"github.com/semihalev/dnsredir/middleware/metrics"
	"github.com/semihalev/zlog/v2"
)

// AccessLog type
type AccessLog struct {
	path string

	mu      sync.Mutex
	logFile *os.File

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	once    sync.Once
}

// New returns a new AccessLog. The file is reopened when it is renamed or
// removed, so external log rotation works without a restart.
func New(cfg *config.Config) *AccessLog {
	a := &AccessLog{
		path:   cfg.AccessLog,
		stopCh: make(chan struct{}),
	}

	if a.path == "" {
		return a
	}

	if err := a.open(); err != nil {
		zlog.Error("Access log file open failed", "error", strings.Trim(err.Error(), "\n"))
		return a
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		zlog.Error("Access log watcher failed", "error", err.Error())
		return a
	}

	if err := watcher.Add(filepath.Dir(a.path)); err != nil {
		_ = watcher.Close()
		zlog.Error("Access log watcher failed", "path", a.path, "error", err.Error())
		return a
	}

	a.watcher = watcher
	go a.watch()

	return a
}

// Name return middleware name
func (a *AccessLog) Name() string { return name }

// ServeDNS implements the Handle interface.
func (a *AccessLog) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	ch.Next(ctx)

	w := ch.Writer
	if !w.Written() {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.logFile == nil {
		return
	}

	question := "\"-\""
	if len(ch.Request.Question) > 0 {
		question = formatQuestion(ch.Request.Question[0])
	}

	dest := "-"
	if w.Dest() != nil {
		dest = w.Dest().String()
	}

	remoteip := "-"
	if w.RemoteIP() != nil {
		remoteip = w.RemoteIP().String()
	}

	record := []string{
		remoteip + " -",
		"[" + time.Now().Format("02/Jan/2006:15:04:05 -0700") + "]",
		question,
		metrics.Result(ch),
		strconv.Itoa(w.Size()),
		dest,
	}

	_, err := a.logFile.WriteString(strings.Join(record, " ") + "\n")
	if err != nil {
		zlog.Error("Access log write failed", "error", strings.Trim(err.Error(), "\n"))
	}
}

// Close stops watching and closes the log file.
func (a *AccessLog) Close() error {
	a.once.Do(func() { close(a.stopCh) })

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.logFile == nil {
		return nil
	}

	err := a.logFile.Close()
	a.logFile = nil

	return err
}

func (a *AccessLog) open() error {
	logFile, err := os.OpenFile(a.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return err
	}

	a.mu.Lock()
	old := a.logFile
	a.logFile = logFile
	a.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	return nil
}

func (a *AccessLog) watch() {
	defer a.watcher.Close()

	for {
		select {
		case <-a.stopCh:
			return

		case event, ok := <-a.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filepath.Base(a.path) {
				continue
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				zlog.Debug("Access log file moved, reopening", "event", event.String())

				select {
				case <-a.stopCh:
					return
				default:
				}

				if err := a.open(); err != nil {
					zlog.Error("Access log file reopen failed", "error", err.Error())
				}
			}

		case err, ok := <-a.watcher.Errors:
			if !ok {
				return
			}
			zlog.Error("Access log watcher error", "error", err.Error())
		}
	}
}

func formatQuestion(q dnsmsg.Question) string {
	return "\"" + q.String() + "\""
}

const name = "accesslog"
