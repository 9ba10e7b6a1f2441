// Package resource resolves the file resources of an external database:
// given a base location (local directory or remote URL) and a manifest of
// required logical filenames, it downloads, caches and decompresses as
// needed and hands back readable local files.
//
// Resolution is all-or-nothing: any unreachable base, missing file or
// failed download aborts with an error and no partial result. The caller's
// manifest is never modified.
package resource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Manifest lists the required files of a database: logical filename to a
// path or URL. Relative entries resolve against the base location.
type Manifest map[string]string

// Option configures resolution.
type Option func(*resolver)

// WithCacheDir sets the download/decompression cache directory.
// Defaults to the user cache dir under "annotate-go".
func WithCacheDir(dir string) Option {
	return func(r *resolver) { r.cacheDir = dir }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *resolver) { r.logger = l }
}

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(r *resolver) { r.client = c }
}

type resolver struct {
	cacheDir string
	logger   *slog.Logger
	client   *http.Client
}

// Resolved is the immutable result of resolving one manifest: every logical
// filename mapped to a readable, decompressed local file.
type Resolved struct {
	base  string
	files map[string]string
}

// Resolve turns base + manifest into concrete readable files. base must be
// an http(s) URL or an existing local directory; manifest entries that are
// themselves URLs are fetched regardless of the base kind.
func Resolve(ctx context.Context, base string, m Manifest, opts ...Option) (*Resolved, error) {
	r := &resolver{logger: slog.Default(), client: http.DefaultClient}
	for _, opt := range opts {
		opt(r)
	}
	if r.cacheDir == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache dir: %w", err)
		}
		r.cacheDir = filepath.Join(dir, "annotate-go")
	}
	if err := os.MkdirAll(r.cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	remoteBase := isURL(base)
	localBase := false
	if !remoteBase {
		info, err := os.Stat(base)
		localBase = err == nil && info.IsDir()
	}
	if !remoteBase && !localBase {
		return nil, fmt.Errorf("base %q is neither a reachable URL nor an existing local directory", base)
	}

	idx := loadIndex(r.cacheDir)
	files := make(map[string]string, len(m))
	for name, loc := range m {
		var local string
		var err error
		switch {
		case isURL(loc):
			local, err = r.fetch(ctx, idx, loc)
		case remoteBase:
			local, err = r.fetch(ctx, idx, joinURL(base, loc))
		default:
			local = loc
			if !filepath.IsAbs(local) {
				local = filepath.Join(base, local)
			}
			if _, serr := os.Stat(local); serr != nil {
				err = fmt.Errorf("required file %s: %w", name, serr)
			}
		}
		if err != nil {
			return nil, err
		}
		local, err = r.decompressed(local)
		if err != nil {
			return nil, fmt.Errorf("resource %s: %w", name, err)
		}
		files[name] = local
	}
	if err := idx.save(r.cacheDir); err != nil {
		r.logger.Warn("failed to persist download cache index", "error", err)
	}

	r.logger.Info("resolved file resources", "base", base, "files", len(files))
	return &Resolved{base: base, files: files}, nil
}

// fetch downloads url into the cache, reusing an existing download.
func (r *resolver) fetch(ctx context.Context, idx *cacheIndex, rawURL string) (string, error) {
	if p, ok := idx.lookup(r.cacheDir, rawURL); ok {
		r.logger.Debug("cache hit", "url", rawURL, "file", p)
		return p, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %s", rawURL, resp.Status)
	}

	name := cacheName(rawURL, path.Base(req.URL.Path))
	dst := filepath.Join(r.cacheDir, name)
	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	size, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return "", err
	}
	idx.record(rawURL, name, size)
	r.logger.Info("downloaded resource", "url", rawURL, "bytes", size)
	return dst, nil
}

// decompressed returns a readable uncompressed path for the file, writing
// the decompressed payload into the cache when needed.
func (r *resolver) decompressed(p string) (string, error) {
	kind, err := Sniff(p)
	if err != nil {
		return "", err
	}
	if kind == CompressionNone {
		return p, nil
	}
	dst := filepath.Join(r.cacheDir, cacheName(p, filepath.Base(p))+".dec")
	if fi, err := os.Stat(dst); err == nil && fi.Size() > 0 {
		return dst, nil
	}
	r.logger.Debug("decompressing resource", "file", p, "compression", kind.String())
	if err := decompressTo(p, dst, kind); err != nil {
		return "", err
	}
	return dst, nil
}

// Base returns the location the manifest was resolved against.
func (r *Resolved) Base() string {
	return r.base
}

// Names returns the logical filenames, sorted.
func (r *Resolved) Names() []string {
	names := make([]string, 0, len(r.files))
	for n := range r.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Path returns the local decompressed path of a logical file.
func (r *Resolved) Path(name string) (string, error) {
	p, ok := r.files[name]
	if !ok {
		return "", fmt.Errorf("resource %q not in manifest", name)
	}
	return p, nil
}

// Open opens a logical file for reading.
func (r *Resolved) Open(name string) (io.ReadCloser, error) {
	p, err := r.Path(name)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func joinURL(base, rel string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(rel, "/")
}
