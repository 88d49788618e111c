// Package assets downloads the images a compiled plan asks for and completes its
// load, replace and crop operations.
package assets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"schedule-designgen/internal/common/logger"
	"schedule-designgen/internal/compiler"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/sync/singleflight"
)

var ErrEmptyURL = errors.New("EMPTY_ASSET_URL")

// sharedFetchTimeout bounds a download that outlives the caller that started it.
const sharedFetchTimeout = 30 * time.Second

// Getter is the download primitive; *http.Client from common/http satisfies it.
type Getter interface {
	GetBytes(ctx context.Context, url string) ([]byte, string, error)
}

type Asset struct {
	URL         string
	ContentType string
	Data        []byte
}

// Fetcher downloads assets and memoizes them by (sourceId, entityId) so the same photo is not
// fetched again across jobs. Requests without both ids are memoized by URL.
// The memo holds at most maxCached entries, least recently used first out.
type Fetcher struct {
	client    Getter
	maxCached int
	logger    logger.Logger

	mu    sync.Mutex
	memo  *orderedmap.OrderedMap[string, *Asset]
	group singleflight.Group
}

func NewFetcher(client Getter, maxCached int, log logger.Logger) *Fetcher {
	if maxCached <= 0 {
		maxCached = 256
	}
	return &Fetcher{
		client:    client,
		maxCached: maxCached,
		logger:    log.WithFields(map[string]interface{}{"component": "asset-fetcher"}),
		memo:      orderedmap.New[string, *Asset](),
	}
}

func memoKey(req compiler.AssetRequest) string {
	if req.SourceID != "" && req.EntityID != "" {
		return "entity:" + req.SourceID + ":" + req.EntityID
	}
	return "url:" + req.URL
}

// Fetch returns the asset for req, downloading it at most once for concurrent callers.
func (f *Fetcher) Fetch(ctx context.Context, req compiler.AssetRequest) (*Asset, error) {
	if req.URL == "" {
		return nil, ErrEmptyURL
	}
	key := memoKey(req)

	if a, ok := f.cached(key, req.URL); ok {
		return a, nil
	}

	// The download is shared by every caller of the same key, so it must not die with the
	// first caller's context. Each caller still stops waiting when its own ctx ends.
	ch := f.group.DoChan(key+"|"+req.URL, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()

		data, contentType, err := f.client.GetBytes(fetchCtx, req.URL)
		if err != nil {
			return nil, err
		}
		a := &Asset{URL: req.URL, ContentType: contentType, Data: data}
		f.store(key, a)
		return a, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch asset: %w", ctx.Err())
	}
	if res.Err != nil {
		return nil, fmt.Errorf("fetch asset: %w", res.Err)
	}
	v, shared := res.Val, res.Shared

	f.logger.Debug("Asset fetched", map[string]interface{}{
		"url":    req.URL,
		"key":    key,
		"shared": shared,
	})
	return v.(*Asset), nil
}

// cached ignores an entry whose URL changed since it was stored.
func (f *Fetcher) cached(key, url string) (*Asset, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.memo.Get(key)
	if !ok || a.URL != url {
		return nil, false
	}
	_ = f.memo.MoveToBack(key)
	return a, true
}

func (f *Fetcher) store(key string, a *Asset) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.memo.Set(key, a)
	_ = f.memo.MoveToBack(key)
	for f.memo.Len() > f.maxCached {
		oldest := f.memo.Oldest()
		f.memo.Delete(oldest.Key)
	}
}

// Len reports the number of memoized assets.
func (f *Fetcher) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.memo.Len()
}
