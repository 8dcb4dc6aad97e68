package storequery

import (
	"context"
	"fmt"

	"github.com/objectgate/handoff/internal/index"
)

type listBucketEntry struct {
	Key            string `json:"key"`
	VersionID      string `json:"version_id,omitempty"`
	IsCurrent      bool   `json:"is_current"`
	IsDeleteMarker bool   `json:"is_delete_marker"`
	Size           int64  `json:"size"`
}

type listBucketResponse struct {
	Result struct {
		Bucket      string            `json:"bucket"`
		Prefix      string            `json:"prefix,omitempty"`
		IsTruncated bool              `json:"is_truncated"`
		Entries     []listBucketEntry `json:"entries"`
	} `json:"StoreQueryListBucketResult"`
}

// listBucket dumps a single raw page of the version-aware bucket listing
// (at most 100 version entries, no marker-following). Operators use it to see exactly
// what objectstatus's committed-object scan would have seen, without its single-key
// semantics.
func (d *Dispatcher) listBucket(ctx context.Context, req Request, params []string) (*Response, error) {
	prefix := ""
	if len(params) == 1 {
		prefix = params[0]
	}

	page, err := d.Index.ListObjectVersions(ctx, req.Bucket, index.VersionListOptions{
		Prefix:  prefix,
		MaxKeys: statusPageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("storequery: listing bucket: %w", err)
	}

	var resp listBucketResponse
	resp.Result.Bucket = req.Bucket
	resp.Result.Prefix = prefix
	resp.Result.IsTruncated = page.IsTruncated
	resp.Result.Entries = make([]listBucketEntry, 0, len(page.Entries))
	for _, e := range page.Entries {
		resp.Result.Entries = append(resp.Result.Entries, listBucketEntry{
			Key:            e.Key,
			VersionID:      e.VersionID,
			IsCurrent:      e.IsCurrent,
			IsDeleteMarker: e.IsDeleteMarker,
			Size:           e.Size,
		})
	}
	return jsonResponse(resp)
}
