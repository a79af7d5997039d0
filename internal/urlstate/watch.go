package urlstate

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long the state file must stay quiet before it is
// re-read. Editors and FileStore.write touch it more than once per save.
const settleDelay = 100 * time.Millisecond

// stateWatcher follows a selection file and reports the agent id it holds
// whenever a burst of writes to it settles.
//
// The parent directory is watched: FileStore.write publishes through a
// ".tmp" sibling and a rename, which surfaces as a Create of the file
// itself. The sibling and any other file in the directory are ignored.
// An id equal to the last one read from the file is not reported again,
// and a file that is briefly missing mid-replace is skipped.
type stateWatcher struct {
	fs      *fsnotify.Watcher
	path    string
	settle  time.Duration
	last    string
	ids     chan string
	stop    chan struct{}
	stopped chan struct{}
}

// watchState starts following path. last is the id the caller already holds.
func watchState(path, last string) (*stateWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	w := &stateWatcher{
		fs:      fw,
		path:    filepath.Clean(path),
		settle:  settleDelay,
		last:    last,
		ids:     make(chan string, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// IDs delivers the newest id read from the file. An undelivered id is
// replaced by a newer one.
func (w *stateWatcher) IDs() <-chan string {
	return w.ids
}

func (w *stateWatcher) Close() error {
	close(w.stop)
	err := w.fs.Close()
	<-w.stopped
	return err
}

func (w *stateWatcher) run() {
	defer close(w.stopped)

	quiet := time.NewTimer(w.settle)
	quiet.Stop()
	defer quiet.Stop()

	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				quiet.Reset(w.settle)
			}
		case <-quiet.C:
			w.reread()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Printf("urlstate: watching %s: %v", w.path, err)
		}
	}
}

func (w *stateWatcher) reread() {
	data, err := os.ReadFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		log.Printf("urlstate: %v", err)
		return
	}
	id := Decode(string(data))
	if id == w.last {
		return
	}
	w.last = id
	emitLatest(w.ids, id)
}
