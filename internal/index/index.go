// Package index defines the BucketIndex collaborator: the minimal contract
// StoreQuery's objectstatus and listbucket commands need against the
// underlying object/bucket abstraction, which the embedding gateway owns.
// This package provides the contract plus two
// reference implementations (in-memory and SQLite) so the rest of this
// repo — and its tests — have something real to call; a production
// embedding gateway supplies its own.
package index

import "context"

// VersionListOptions bounds a paginated, version-aware object listing.
type VersionListOptions struct {
	Prefix  string
	Marker  string
	MaxKeys int
}

// VersionEntry is one (key, version) pair from a version-aware listing.
type VersionEntry struct {
	Key            string
	VersionID      string
	IsCurrent      bool
	IsDeleteMarker bool
	Size           int64
}

// VersionPage is one page of a version-aware listing.
type VersionPage struct {
	Entries     []VersionEntry
	IsTruncated bool
	NextMarker  string
}

// UploadListOptions bounds a paginated in-progress-multipart-upload listing.
type UploadListOptions struct {
	Prefix         string
	KeyMarker      string
	UploadIDMarker string
	MaxUploads     int
}

// UploadEntry is one in-progress multipart upload.
type UploadEntry struct {
	Key      string
	UploadID string
}

// UploadPage is one page of a multipart-upload listing.
type UploadPage struct {
	Uploads            []UploadEntry
	IsTruncated        bool
	NextKeyMarker      string
	NextUploadIDMarker string
}

// BucketIndex is the contract StoreQuery needs: paginated version listing
// (for objectstatus's committed-object scan and for listbucket) and
// paginated multipart-upload listing (for its in-progress-upload scan).
type BucketIndex interface {
	ListObjectVersions(ctx context.Context, bucket string, opts VersionListOptions) (*VersionPage, error)
	ListMultipartUploads(ctx context.Context, bucket string, opts UploadListOptions) (*UploadPage, error)
}
