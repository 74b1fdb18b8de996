package observer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/net/html"

	"github.com/Harsh-eth/PostPilot/feed"
)

// FileSource adapts filesystem change notifications on a feed document
// into mutation batches. The watched file is treated as append-only: on
// each rewrite, item subtrees beyond the count already delivered are
// detached from the fresh parse and emitted, the way a host page inserts
// new nodes as the feed grows.
type FileSource struct {
	path      string
	extractor *feed.Extractor
	watcher   *fsnotify.Watcher
	known     int
}

// NewFileSource watches the document at path. The containing directory is
// watched so atomic rewrites (remove + create) are still observed.
func NewFileSource(path string, extractor *feed.Extractor) (*FileSource, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	return &FileSource{path: path, extractor: extractor, watcher: watcher}, nil
}

// Load parses the current document contents. Call once at startup to get
// the document the observer should own; items present at load time are
// not re-emitted as mutations.
func (s *FileSource) Load() (*html.Node, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	s.known = len(s.extractor.Items(doc))
	return doc, nil
}

// Run emits batches until ctx is done. Each batch carries detached item
// subtrees for the observer to graft and scan.
func (s *FileSource) Run(ctx context.Context, batches chan<- Batch) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("document watch error", "error", err)
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}

			added, err := s.newItems()
			if err != nil {
				slog.Warn("document rescan failed", "path", s.path, "error", err)
				continue
			}
			if len(added) == 0 {
				continue
			}

			select {
			case batches <- Batch{Added: added}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *FileSource) newItems() ([]*html.Node, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, err
	}

	items := s.extractor.Items(doc)
	if len(items) <= s.known {
		return nil, nil
	}

	added := make([]*html.Node, 0, len(items)-s.known)
	for _, node := range items[s.known:] {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
		added = append(added, node)
	}
	s.known = len(items)
	return added, nil
}

// Close stops the underlying watcher.
func (s *FileSource) Close() error {
	return s.watcher.Close()
}
