package meta

import (
	"context"
	"path"
	"strings"
	"sync"

	"github.com/goliatone/go-docsync/internal/logging"
	"github.com/goliatone/go-docsync/pkg/interfaces"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultDescriptorName is the sidecar file looked up in each directory.
	DefaultDescriptorName = "_meta.json"
	// DefaultRootDescriptorName is the navigation descriptor under the docs root.
	DefaultRootDescriptorName = "docs-config.json"
)

// Store supplies descriptors by repository-relative directory.
// Implementations resolve missing or broken files to empty descriptors.
type Store interface {
	Descriptor(ctx context.Context, dir string) Descriptor
	Root(ctx context.Context) RootDescriptor
}

// MapStore serves descriptors from memory.
type MapStore struct {
	root        RootDescriptor
	descriptors map[string]Descriptor
}

// NewMapStore builds a store from preloaded descriptors keyed by directory.
func NewMapStore(root RootDescriptor, descriptors map[string]Descriptor) *MapStore {
	cleaned := make(map[string]Descriptor, len(descriptors))
	for dir, descriptor := range descriptors {
		cleaned[cleanDir(dir)] = descriptor
	}
	return &MapStore{root: root, descriptors: cleaned}
}

func (s *MapStore) Descriptor(_ context.Context, dir string) Descriptor {
	return s.descriptors[cleanDir(dir)]
}

func (s *MapStore) Root(context.Context) RootDescriptor {
	return s.root
}

// Loader fetches a repository file. The boolean is false when the file does
// not exist.
type Loader func(ctx context.Context, filePath string) ([]byte, bool, error)

// LazyStore loads descriptors on first use and caches them for its lifetime,
// which is meant to be one sync.
type LazyStore struct {
	load           Loader
	docsRoot       string
	descriptorName string
	rootName       string
	concurrency    int
	known          map[string]struct{}
	logger         interfaces.Logger

	mu    sync.Mutex
	cache map[string]Descriptor
	root  *RootDescriptor
}

// LazyOption configures a LazyStore.
type LazyOption func(*LazyStore)

// WithDocsRoot sets the folder holding the root descriptor.
func WithDocsRoot(root string) LazyOption {
	return func(s *LazyStore) {
		if trimmed := cleanDir(root); trimmed != "" {
			s.docsRoot = trimmed
		}
	}
}

// WithDescriptorName overrides the sidecar file name.
func WithDescriptorName(name string) LazyOption {
	return func(s *LazyStore) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			s.descriptorName = trimmed
		}
	}
}

// WithRootDescriptorName overrides the root descriptor file name.
func WithRootDescriptorName(name string) LazyOption {
	return func(s *LazyStore) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			s.rootName = trimmed
		}
	}
}

// WithConcurrency bounds parallel loads during Prefetch.
func WithConcurrency(n int) LazyOption {
	return func(s *LazyStore) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithKnownPaths restricts loads to files present in paths, typically a
// recursive tree listing. Lookups for other files resolve to empty without
// calling the loader.
func WithKnownPaths(paths []string) LazyOption {
	return func(s *LazyStore) {
		s.known = make(map[string]struct{}, len(paths))
		for _, p := range paths {
			s.known[cleanDir(p)] = struct{}{}
		}
	}
}

// WithStoreLogger sets the logger used for descriptor warnings.
func WithStoreLogger(logger interfaces.Logger) LazyOption {
	return func(s *LazyStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewLazyStore constructs a LazyStore around load.
func NewLazyStore(load Loader, opts ...LazyOption) *LazyStore {
	s := &LazyStore{
		load:           load,
		docsRoot:       "docs",
		descriptorName: DefaultDescriptorName,
		rootName:       DefaultRootDescriptorName,
		concurrency:    4,
		logger:         logging.NoOp(),
		cache:          map[string]Descriptor{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// DescriptorName returns the sidecar file name looked up in each directory.
func (s *LazyStore) DescriptorName() string {
	return s.descriptorName
}

// DescriptorPath returns the sidecar file path for dir.
func (s *LazyStore) DescriptorPath(dir string) string {
	return path.Join(cleanDir(dir), s.descriptorName)
}

func (s *LazyStore) Descriptor(ctx context.Context, dir string) Descriptor {
	key := cleanDir(dir)
	s.mu.Lock()
	if descriptor, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return descriptor
	}
	s.mu.Unlock()

	descriptor := s.fetchDescriptor(ctx, key)

	s.mu.Lock()
	s.cache[key] = descriptor
	s.mu.Unlock()
	return descriptor
}

func (s *LazyStore) Root(ctx context.Context) RootDescriptor {
	s.mu.Lock()
	if s.root != nil {
		root := *s.root
		s.mu.Unlock()
		return root
	}
	s.mu.Unlock()

	filePath := path.Join(s.docsRoot, s.rootName)
	root := RootDescriptor{}
	if data, ok := s.read(ctx, filePath); ok {
		parsed, err := ParseRootDescriptor(data)
		if err != nil {
			s.logger.Warn("meta.root.invalid", "path", filePath, "error", err)
		} else {
			root = parsed
		}
	}

	s.mu.Lock()
	s.root = &root
	s.mu.Unlock()
	return root
}

// Prefetch loads the descriptors of dirs concurrently. Load failures are
// cached as empty descriptors; only context cancellation is returned.
func (s *LazyStore) Prefetch(ctx context.Context, dirs []string) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)
	for _, dir := range dirs {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			s.Descriptor(groupCtx, dir)
			return nil
		})
	}
	return group.Wait()
}

func (s *LazyStore) fetchDescriptor(ctx context.Context, dir string) Descriptor {
	filePath := s.DescriptorPath(dir)
	data, ok := s.read(ctx, filePath)
	if !ok {
		return Descriptor{}
	}
	descriptor, err := ParseDescriptor(data)
	if err != nil {
		s.logger.Warn("meta.descriptor.invalid", "path", filePath, "error", err)
		return Descriptor{}
	}
	return descriptor
}

func (s *LazyStore) read(ctx context.Context, filePath string) ([]byte, bool) {
	if s.load == nil {
		return nil, false
	}
	if s.known != nil {
		if _, ok := s.known[filePath]; !ok {
			return nil, false
		}
	}
	data, found, err := s.load(ctx, filePath)
	if err != nil {
		s.logger.Warn("meta.descriptor.load_failed", "path", filePath, "error", err)
		return nil, false
	}
	return data, found
}

// DescriptorDirs returns the directories of paths whose file name is name.
func DescriptorDirs(paths []string, name string) []string {
	dirs := []string{}
	for _, p := range paths {
		cleaned := cleanDir(p)
		if path.Base(cleaned) == name {
			dirs = append(dirs, path.Dir(cleaned))
		}
	}
	return dirs
}

func cleanDir(dir string) string {
	trimmed := strings.Trim(strings.TrimSpace(strings.ReplaceAll(dir, "\\", "/")), "/")
	if trimmed == "" {
		return ""
	}
	return path.Clean(trimmed)
}
