package mediacache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/h2non/filetype"
	"golang.org/x/sync/singleflight"

	"igarchive/pkg/accounts"
	errs "igarchive/pkg/errors"
	"igarchive/pkg/fetcher"
	"igarchive/pkg/logger"
	"igarchive/pkg/models"
	"igarchive/pkg/ratelimit"
	"igarchive/pkg/retry"
)

const (
	defaultExt   = ".jpg"
	maxExtLength = 5 // including the dot
)

// Request identifies a media asset to resolve
type Request struct {
	MediaURL  string
	Category  models.Category
	RecordID  int64 // 0 when the record has not been stored yet
	Partition accounts.Partition
}

// Options configures a Cache
type Options struct {
	Limiter       ratelimit.Limiter
	Retry         *retry.Config
	VerifyContent bool
}

// Cache stores media files under a partition's media directory, named by a
// hash of the source URL. A URL is fetched at most once per target path as
// long as the file stays on disk.
type Cache struct {
	fetcher fetcher.Fetcher
	limiter ratelimit.Limiter
	retry   *retry.Config
	verify  bool
	log     logger.Logger

	group   singleflight.Group
	fetches atomic.Int64
}

// New creates a media cache
func New(f fetcher.Fetcher, opts Options, log logger.Logger) *Cache {
	if log == nil {
		log = logger.NewNopLogger()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	retryCfg := opts.Retry
	if retryCfg == nil {
		retryCfg = &retry.Config{MaxAttempts: 1}
	}

	return &Cache{
		fetcher: f,
		limiter: limiter,
		retry:   retryCfg,
		verify:  opts.VerifyContent,
		log:     log.WithField("component", "mediacache"),
	}
}

// FileName derives the cache file name for a media URL. With a record id the
// name is {category}_{id}_{hash8}{ext}, otherwise {category}_{hash}{ext}.
func FileName(mediaURL string, category models.Category, recordID int64) string {
	sum := md5.Sum([]byte(mediaURL))
	hash := hex.EncodeToString(sum[:])
	ext := extension(mediaURL)

	if recordID > 0 {
		return fmt.Sprintf("%s_%d_%s%s", category, recordID, hash[:8], ext)
	}
	return fmt.Sprintf("%s_%s%s", category, hash, ext)
}

// extension sniffs a lowercase file extension from the URL path
func extension(mediaURL string) string {
	p := mediaURL
	if u, err := url.Parse(mediaURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" || len(ext) > maxExtLength {
		return defaultExt
	}
	return ext
}

// Path returns where the asset for req lives, whether or not it exists yet
func Path(req Request) string {
	return filepath.Join(req.Partition.MediaDir, FileName(req.MediaURL, req.Category, req.RecordID))
}

// Exists reports whether a cached file is present at p
func Exists(p string) bool {
	if p == "" {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// Resolve returns the local path for the requested media, fetching it when
// absent. It never fails: any problem is logged and reported as ok=false so
// the caller can continue without local media.
func (c *Cache) Resolve(ctx context.Context, req Request) (string, bool) {
	if req.MediaURL == "" {
		c.log.WarnWithFields("Empty media url", map[string]interface{}{
			"account":  req.Partition.ID,
			"category": string(req.Category),
		})
		return "", false
	}

	target := Path(req)
	if Exists(target) {
		return target, true
	}

	_, err, _ := c.group.Do(target, func() (interface{}, error) {
		// Another caller may have finished while we queued.
		if Exists(target) {
			return nil, nil
		}
		return nil, c.fetchTo(ctx, req, target)
	})

	logger.LogMediaFetch(c.log, req.Partition.ID, string(req.Category), req.MediaURL, err)
	if err != nil {
		return "", false
	}
	return target, true
}

// Fetches returns how many network fetches the cache has started
func (c *Cache) Fetches() int64 {
	return c.fetches.Load()
}

func (c *Cache) fetchTo(ctx context.Context, req Request, target string) error {
	data, err := retry.DoWithResult(ctx, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		c.fetches.Add(1)
		return c.fetcher.Fetch(ctx, req.MediaURL)
	}, c.retry)
	if err != nil {
		return err
	}

	if c.verify && !isMedia(data) {
		return errs.New(errs.ErrorTypeInput, "response body is not an image or video")
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errs.Storage(err, "create media directory")
	}
	return writeAtomic(target, data)
}

func isMedia(data []byte) bool {
	return filetype.IsImage(data) || filetype.IsVideo(data)
}

// writeAtomic writes data to a temporary file next to target and renames it
// into place so readers never observe a partial file.
func writeAtomic(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".*.tmp")
	if err != nil {
		return errs.Storage(err, "create temporary file")
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(tmpName)
		return errs.Storage(err, "write media data")
	}
	if closeErr != nil {
		os.Remove(tmpName)
		return errs.Storage(closeErr, "close temporary file")
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return errs.Storage(err, "rename temporary file")
	}
	return nil
}
