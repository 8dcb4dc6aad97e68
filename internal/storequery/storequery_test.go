package storequery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/objectgate/handoff/internal/index"
)

func testDispatcher(idx index.BucketIndex) *Dispatcher {
	return NewDispatcher(idx, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTokenizeLengthBoundary(t *testing.T) {
	// A header of exactly MaxHeaderLen bytes is accepted; one more byte is
	// rejected.
	exact := "ping " + strings.Repeat("a", MaxHeaderLen-5)
	if len(exact) != MaxHeaderLen {
		t.Fatalf("fixture is %d bytes, want %d", len(exact), MaxHeaderLen)
	}
	if _, err := Tokenize(exact); err != nil {
		t.Errorf("Tokenize(%d bytes) = %v, want nil", MaxHeaderLen, err)
	}
	if _, err := Tokenize(exact + "a"); !errors.Is(err, ErrHeaderTooLong) {
		t.Errorf("Tokenize(%d bytes) = %v, want ErrHeaderTooLong", MaxHeaderLen+1, err)
	}
}

func TestTokenizeRejectsNonPrintable(t *testing.T) {
	for _, header := range []string{"ping\tfoo", "ping \x1b[1m", "ping f\x00o", "ping caf\xc3\xa9"} {
		if _, err := Tokenize(header); !errors.Is(err, ErrNonPrintableByte) {
			t.Errorf("Tokenize(%q) = %v, want ErrNonPrintableByte", header, err)
		}
	}
}

func TestTokenizeGrammar(t *testing.T) {
	tests := []struct {
		header     string
		wantName   string
		wantParams []string
	}{
		{"ping foo", "ping", []string{"foo"}},
		{"PING Foo", "ping", []string{"Foo"}},
		{`ping "two words"`, "ping", []string{"two words"}},
		{`ping "say \"hi\""`, "ping", []string{`say "hi"`}},
		{"objectstatus", "objectstatus", nil},
		{"  ping   spaced  ", "ping", []string{"spaced"}},
	}
	for _, tt := range tests {
		got, err := Tokenize(tt.header)
		if err != nil {
			t.Errorf("Tokenize(%q) error: %v", tt.header, err)
			continue
		}
		if got.Name != tt.wantName {
			t.Errorf("Tokenize(%q).Name = %q, want %q", tt.header, got.Name, tt.wantName)
		}
		if len(got.Params) != len(tt.wantParams) {
			t.Errorf("Tokenize(%q).Params = %v, want %v", tt.header, got.Params, tt.wantParams)
			continue
		}
		for i := range got.Params {
			if got.Params[i] != tt.wantParams[i] {
				t.Errorf("Tokenize(%q).Params[%d] = %q, want %q", tt.header, i, got.Params[i], tt.wantParams[i])
			}
		}
	}
}

func TestTokenizeUnterminatedQuote(t *testing.T) {
	if _, err := Tokenize(`ping "never closed`); !errors.Is(err, ErrUnterminatedQuote) {
		t.Errorf("err = %v, want ErrUnterminatedQuote", err)
	}
}

func TestPing(t *testing.T) {
	d := testDispatcher(index.NewMemoryIndex())
	resp, err := d.Dispatch(context.Background(), ServiceContext, "ping foo", Request{})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	want := `{"StoreQueryPingResult":{"request_id":"foo"}}`
	if string(resp.Body) != want {
		t.Errorf("body = %s, want %s", resp.Body, want)
	}
	if d.lastPingID != "foo" {
		t.Errorf("lastPingID = %q, want foo", d.lastPingID)
	}
}

func TestPingAnyContext(t *testing.T) {
	d := testDispatcher(index.NewMemoryIndex())
	for _, hctx := range []HandlerContext{ServiceContext, BucketContext, ObjectContext} {
		if _, err := d.Dispatch(context.Background(), hctx, "ping x", Request{}); err != nil {
			t.Errorf("ping in %s context: %v", hctx, err)
		}
	}
}

func TestPingParamCount(t *testing.T) {
	d := testDispatcher(index.NewMemoryIndex())
	for _, header := range []string{"ping", "ping a b"} {
		if _, err := d.Dispatch(context.Background(), ServiceContext, header, Request{}); !errors.Is(err, ErrBadParams) {
			t.Errorf("Dispatch(%q) = %v, want ErrBadParams", header, err)
		}
	}
}

func TestObjectStatusRequiresObjectContext(t *testing.T) {
	d := testDispatcher(index.NewMemoryIndex())
	for _, hctx := range []HandlerContext{ServiceContext, BucketContext} {
		if _, err := d.Dispatch(context.Background(), hctx, "objectstatus", Request{}); !errors.Is(err, ErrWrongContext) {
			t.Errorf("objectstatus in %s context: err = %v, want ErrWrongContext", hctx, err)
		}
	}
}

type statusResult struct {
	Result struct {
		Object struct {
			Bucket                    string `json:"bucket"`
			Key                       string `json:"key"`
			Deleted                   bool   `json:"deleted"`
			MultipartUploadInProgress bool   `json:"multipart_upload_in_progress"`
			VersionID                 string `json:"version_id"`
			Size                      *int64 `json:"size"`
			MultipartUploadID         string `json:"multipart_upload_id"`
		} `json:"Object"`
	} `json:"StoreQueryObjectStatusResult"`
}

func dispatchObjectStatus(t *testing.T, d *Dispatcher, req Request) statusResult {
	t.Helper()
	resp, err := d.Dispatch(context.Background(), ObjectContext, "objectstatus", req)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	var parsed statusResult
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		t.Fatalf("unmarshal %s: %v", resp.Body, err)
	}
	return parsed
}

func TestObjectStatusCommittedObject(t *testing.T) {
	idx := index.NewMemoryIndex()
	idx.PutObjectVersion("b", "k", "v123", false, 123)
	d := testDispatcher(idx)

	got := dispatchObjectStatus(t, d, Request{Bucket: "b", ObjectKey: "k"})
	obj := got.Result.Object
	if obj.Bucket != "b" || obj.Key != "k" {
		t.Errorf("bucket/key = %q/%q, want b/k", obj.Bucket, obj.Key)
	}
	if obj.Deleted {
		t.Error("deleted = true, want false")
	}
	if obj.MultipartUploadInProgress {
		t.Error("multipart_upload_in_progress = true, want false")
	}
	if obj.VersionID != "v123" {
		t.Errorf("version_id = %q, want v123", obj.VersionID)
	}
	if obj.Size == nil || *obj.Size != 123 {
		t.Errorf("size = %v, want 123", obj.Size)
	}
}

func TestObjectStatusDeleteMarker(t *testing.T) {
	idx := index.NewMemoryIndex()
	idx.PutObjectVersion("b", "k", "v1", false, 10)
	idx.PutObjectVersion("b", "k", "v2", true, 0)
	d := testDispatcher(idx)

	got := dispatchObjectStatus(t, d, Request{Bucket: "b", ObjectKey: "k"})
	obj := got.Result.Object
	if !obj.Deleted {
		t.Error("deleted = false, want true")
	}
	if obj.Size != nil {
		t.Errorf("size = %v, want omitted", *obj.Size)
	}
	if obj.VersionID != "" {
		t.Errorf("version_id = %q, want omitted", obj.VersionID)
	}
}

func TestObjectStatusIgnoresPrefixSiblings(t *testing.T) {
	// A prefix-matching sibling ("k2") must not satisfy the exact-match
	// scan.
	idx := index.NewMemoryIndex()
	idx.PutObjectVersion("b", "k2", "sibling", false, 99)
	idx.PutMultipartUpload("b", "k", "u-1")
	d := testDispatcher(idx)

	got := dispatchObjectStatus(t, d, Request{Bucket: "b", ObjectKey: "k"})
	obj := got.Result.Object
	if !obj.MultipartUploadInProgress {
		t.Error("multipart_upload_in_progress = false, want true")
	}
	if obj.MultipartUploadID != "u-1" {
		t.Errorf("multipart_upload_id = %q, want u-1", obj.MultipartUploadID)
	}
	if obj.Deleted {
		t.Error("deleted = true, want false")
	}
}

// pagingIndex returns an empty committed listing and a two-page multipart
// listing: page one is truncated filler, page two holds the exact match. It
// records the options of each multipart call so the test can assert the
// marker cursor advanced between pages.
type pagingIndex struct {
	uploadCalls []index.UploadListOptions
}

func (p *pagingIndex) ListObjectVersions(ctx context.Context, bucket string, opts index.VersionListOptions) (*index.VersionPage, error) {
	return &index.VersionPage{}, nil
}

func (p *pagingIndex) ListMultipartUploads(ctx context.Context, bucket string, opts index.UploadListOptions) (*index.UploadPage, error) {
	p.uploadCalls = append(p.uploadCalls, opts)
	if len(p.uploadCalls) == 1 {
		return &index.UploadPage{
			Uploads:            []index.UploadEntry{{Key: "key-filler", UploadID: "u-0"}},
			IsTruncated:        true,
			NextKeyMarker:      "key-filler",
			NextUploadIDMarker: "u-0",
		}, nil
	}
	return &index.UploadPage{
		Uploads: []index.UploadEntry{{Key: "key", UploadID: "u-1"}},
	}, nil
}

func TestObjectStatusMultipartAcrossPages(t *testing.T) {
	idx := &pagingIndex{}
	d := testDispatcher(idx)

	got := dispatchObjectStatus(t, d, Request{Bucket: "b", ObjectKey: "key"})
	obj := got.Result.Object
	if !obj.MultipartUploadInProgress || obj.MultipartUploadID != "u-1" {
		t.Errorf("got %+v, want multipart upload u-1", obj)
	}

	if len(idx.uploadCalls) != 2 {
		t.Fatalf("multipart listing called %d times, want 2", len(idx.uploadCalls))
	}
	second := idx.uploadCalls[1]
	if second.KeyMarker != "key-filler" || second.UploadIDMarker != "u-0" {
		t.Errorf("second page markers = %q/%q, want key-filler/u-0", second.KeyMarker, second.UploadIDMarker)
	}
}

func TestObjectStatusNotFound(t *testing.T) {
	d := testDispatcher(index.NewMemoryIndex())
	_, err := d.Dispatch(context.Background(), ObjectContext, "objectstatus", Request{Bucket: "b", ObjectKey: "missing"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

type failingIndex struct{ index.BucketIndex }

func (failingIndex) ListObjectVersions(ctx context.Context, bucket string, opts index.VersionListOptions) (*index.VersionPage, error) {
	return nil, errors.New("index unavailable")
}

func TestObjectStatusListFailurePropagates(t *testing.T) {
	d := testDispatcher(failingIndex{})
	_, err := d.Dispatch(context.Background(), ObjectContext, "objectstatus", Request{Bucket: "b", ObjectKey: "k"})
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want propagated list failure", err)
	}
}

func TestListBucket(t *testing.T) {
	idx := index.NewMemoryIndex()
	idx.PutObjectVersion("b", "a/1", "v1", false, 1)
	idx.PutObjectVersion("b", "a/2", "v2", true, 0)
	idx.PutObjectVersion("b", "z", "v3", false, 3)
	d := testDispatcher(idx)

	resp, err := d.Dispatch(context.Background(), BucketContext, "listbucket a/", Request{Bucket: "b"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	var parsed struct {
		Result struct {
			Bucket  string `json:"bucket"`
			Prefix  string `json:"prefix"`
			Entries []struct {
				Key string `json:"key"`
			} `json:"entries"`
		} `json:"StoreQueryListBucketResult"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed.Result.Bucket != "b" || parsed.Result.Prefix != "a/" {
		t.Errorf("bucket/prefix = %q/%q", parsed.Result.Bucket, parsed.Result.Prefix)
	}
	if len(parsed.Result.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(parsed.Result.Entries))
	}
}

func TestListBucketRequiresBucketContext(t *testing.T) {
	d := testDispatcher(index.NewMemoryIndex())
	if _, err := d.Dispatch(context.Background(), ObjectContext, "listbucket", Request{Bucket: "b"}); !errors.Is(err, ErrWrongContext) {
		t.Errorf("err = %v, want ErrWrongContext", err)
	}
}

func TestUnknownCommand(t *testing.T) {
	d := testDispatcher(index.NewMemoryIndex())
	if _, err := d.Dispatch(context.Background(), ServiceContext, "frobnicate", Request{}); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("err = %v, want ErrUnknownCommand", err)
	}
}
