package storequery

import (
	"context"
	"fmt"

	"github.com/objectgate/handoff/internal/index"
)

const statusPageSize = 100

type objectStatus struct {
	Bucket                    string `json:"bucket"`
	Key                       string `json:"key"`
	Deleted                   bool   `json:"deleted"`
	MultipartUploadInProgress bool   `json:"multipart_upload_in_progress"`
	VersionID                 string `json:"version_id,omitempty"`
	Size                      *int64 `json:"size,omitempty"`
	MultipartUploadID         string `json:"multipart_upload_id,omitempty"`
}

type objectStatusResponse struct {
	Result struct {
		Object objectStatus `json:"Object"`
	} `json:"StoreQueryObjectStatusResult"`
}

// objectStatus reports whether the addressed key exists as a committed
// object (via the version-aware listing) or as an in-progress multipart
// upload, without touching authorization.
func (d *Dispatcher) objectStatus(ctx context.Context, req Request) (*Response, error) {
	status := objectStatus{Bucket: req.Bucket, Key: req.ObjectKey}

	found, err := d.scanVersions(ctx, req, &status)
	if err != nil {
		return nil, err
	}
	if !found {
		found, err = d.scanUploads(ctx, req, &status)
		if err != nil {
			return nil, err
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, req.Bucket, req.ObjectKey)
	}

	var resp objectStatusResponse
	resp.Result.Object = status
	return jsonResponse(resp)
}

// scanVersions pages through the version-aware listing with
// prefix = object key, following the marker cursor, and stop at the first
// current entry whose key matches exactly.
func (d *Dispatcher) scanVersions(ctx context.Context, req Request, status *objectStatus) (bool, error) {
	opts := index.VersionListOptions{Prefix: req.ObjectKey, MaxKeys: statusPageSize}
	for {
		page, err := d.Index.ListObjectVersions(ctx, req.Bucket, opts)
		if err != nil {
			return false, fmt.Errorf("storequery: listing object versions: %w", err)
		}
		for _, entry := range page.Entries {
			if entry.Key != req.ObjectKey || !entry.IsCurrent {
				continue
			}
			status.Deleted = entry.IsDeleteMarker
			if !entry.IsDeleteMarker {
				status.VersionID = entry.VersionID
				size := entry.Size
				status.Size = &size
			}
			return true, nil
		}
		if !page.IsTruncated {
			return false, nil
		}
		opts.Marker = page.NextMarker
	}
}

// scanUploads pages through the in-progress multipart uploads
// with prefix = object key, advancing both markers until the listing is no
// longer truncated, and stop at the first exact key match.
func (d *Dispatcher) scanUploads(ctx context.Context, req Request, status *objectStatus) (bool, error) {
	opts := index.UploadListOptions{Prefix: req.ObjectKey, MaxUploads: statusPageSize}
	for {
		page, err := d.Index.ListMultipartUploads(ctx, req.Bucket, opts)
		if err != nil {
			return false, fmt.Errorf("storequery: listing multipart uploads: %w", err)
		}
		for _, upload := range page.Uploads {
			if upload.Key != req.ObjectKey {
				continue
			}
			status.MultipartUploadInProgress = true
			status.MultipartUploadID = upload.UploadID
			return true, nil
		}
		if !page.IsTruncated {
			return false, nil
		}
		opts.KeyMarker = page.NextKeyMarker
		opts.UploadIDMarker = page.NextUploadIDMarker
	}
}
