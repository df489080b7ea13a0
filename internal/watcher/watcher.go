package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/resource-hub/internal/logging"
)

// Watcher 递归监听根目录，变化平息 debounce 之后调用 onChange。
type Watcher struct {
	root     string
	debounce time.Duration
	log      *logrus.Entry
	onChange func()

	fsw     *fsnotify.Watcher
	trigger chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// New 创建监听器并立即登记根目录及其所有子目录。
func New(root string, debounce time.Duration, logger *logrus.Logger, onChange func()) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("watcher callback is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", root)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}

	w := &Watcher{
		root:     abs,
		debounce: debounce,
		log:      logging.Component(logger, "watcher").WithField("root", abs),
		onChange: onChange,
		fsw:      fsw,
		trigger:  make(chan struct{}, 1),
	}
	if err := w.addTree(abs); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run 处理文件事件直到 ctx 结束；onChange 只在此 goroutine 中串行调用。
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("file watcher error")
		case <-w.trigger:
			w.log.Debug("resource root changed, resynchronizing")
			w.onChange()
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !relevant(event.Name) {
		return
	}
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.log.WithError(err).WithField("path", event.Name).Warn("cannot watch new directory")
			}
		}
	}
	if event.Op == fsnotify.Chmod {
		return
	}
	w.schedule()
}

// schedule 重置防抖计时器；计时结束时向 trigger 发送信号，通道已满则丢弃。
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Reset(w.debounce)
		return
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	if len(w.trigger) == cap(w.trigger) {
		w.log.Debug("resync already pending, discard event")
		return
	}
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return errors.Wrapf(err, "walk %s", dir)
			}
			w.log.WithError(err).WithField("path", p).Warn("skipping unreadable directory")
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return errors.Wrapf(err, "watch %s", p)
		}
		return nil
	})
}

// relevant 过滤隐藏文件（包括写入中的临时文件）与 sqlite 数据库文件。
func relevant(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	for _, suffix := range []string{".sqlite", ".sqlite-journal", ".sqlite-wal", ".sqlite-shm"} {
		if strings.HasSuffix(base, suffix) {
			return false
		}
	}
	return true
}
