// internal/assets/resolver.go
package assets

import (
	"context"
	"net/url"
	"path"
	"strconv"
	"strings"

	apperrors "schedule-designgen/internal/common/errors"
	"schedule-designgen/internal/common/logger"
	"schedule-designgen/internal/compiler"

	"golang.org/x/sync/errgroup"
)

// AssetFetcher is what the resolver needs from Fetcher.
type AssetFetcher interface {
	Fetch(ctx context.Context, req compiler.AssetRequest) (*Asset, error)
}

type Resolver struct {
	fetcher     AssetFetcher
	concurrency int
	logger      logger.Logger
}

func NewResolver(fetcher AssetFetcher, concurrency int, log logger.Logger) *Resolver {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Resolver{
		fetcher:     fetcher,
		concurrency: concurrency,
		logger:      log.WithFields(map[string]interface{}{"component": "asset-resolver"}),
	}
}

// Resolve downloads every pending asset request of plan concurrently and appends the
// LoadAsset, ReplaceLayer and CropImage operations in request order.
// Any failed download fails the whole plan with ASSET_FETCH_FAILED and leaves plan untouched.
func (r *Resolver) Resolve(ctx context.Context, plan *compiler.Plan) error {
	if len(plan.AssetRequests) == 0 {
		return nil
	}

	requests := plan.AssetRequests
	fetched := make([]*Asset, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, req := range requests {
		g.Go(func() error {
			a, err := r.fetcher.Fetch(gctx, req)
			if err != nil {
				return apperrors.NewAssetFetchFailedError(req.URL, err)
			}
			fetched[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Error("Asset resolution failed", map[string]interface{}{
			"requests": len(requests),
			"error":    err.Error(),
		})
		return err
	}

	for i, req := range requests {
		name := SyntheticName(req.URL, req.Index)
		plan.LoadAssets = append(plan.LoadAssets, compiler.LoadAsset{
			Name:        name,
			ContentType: fetched[i].ContentType,
			Data:        fetched[i].Data,
		})
		plan.ReplaceLayers = append(plan.ReplaceLayers, compiler.ReplaceLayer{
			Source:       name,
			Target:       req.LayerName,
			TargetID:     req.LayerID,
			TargetBounds: req.Bounds,
			Tag:          req.Tag,
		})
		plan.CropImages = append(plan.CropImages, compiler.CropImage{
			Name:   name,
			Bounds: req.Bounds,
		})
	}
	plan.AssetRequests = []compiler.AssetRequest{}

	r.logger.Debug("Assets resolved", map[string]interface{}{"count": len(requests)})
	return nil
}

// SyntheticName derives a layer name unique within a plan from the asset's file name.
func SyntheticName(rawURL string, index int) string {
	base := "asset"
	if u, err := url.Parse(rawURL); err == nil {
		if b := path.Base(u.Path); b != "." && b != "/" && b != "" {
			base = strings.TrimSuffix(b, path.Ext(b))
		}
	}
	if base == "" {
		base = "asset"
	}
	return base + "_" + strconv.Itoa(index)
}
