// Package object implements the S3-compatible object store adapter
// (C13): deterministic segment keys, payload PUT/GET/HEAD/DELETE, and
// presigned URL minting.
//
// Grounded on original_source/app/storage/s3_store.py, reimplemented
// over minio-go/v7 (an S3-compatible client idiomatic in Go, in place of
// boto3).
package object

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jesseVast/tamscore/internal/store/timerange"
	"github.com/jesseVast/tamscore/pkg/logger"
)

var log = logger.NewDefault("object")

const (
	defaultContentType         = "application/octet-stream"
	defaultPresignedURLTimeout = time.Hour
)

// Segment describes a flow segment's metadata, mirroring the fields the
// original's FlowSegment model contributes to the stored object's
// metadata map.
type Segment struct {
	ObjectID      string
	Timerange     string
	TSOffset      string
	LastDuration  string
	SampleOffset  int64
	SampleCount   int64
	KeyFrameCount int64
}

// BackendInfo describes the storage backend surfaced by
// TAMSCompliantGetURLs, matching the original's storage-backend.json
// descriptor shape.
type BackendInfo struct {
	StoreType        string
	Provider         string
	Region           string
	AvailabilityZone string
	StoreProduct     string
}

// GetURL is a TAMS-compliant access URL returned alongside a backend
// descriptor.
type GetURL struct {
	URL              string
	Label            string
	StoreType        string
	Provider         string
	Region           string
	AvailabilityZone string
	StoreProduct     string
	StorageID        string
	Presigned        bool
	Controlled       bool
}

// Store is an S3-compatible object store adapter.
type Store struct {
	client              *minio.Client
	bucket              string
	presignedURLTimeout time.Duration
	defaultBackendID    string
	backendManager      func(id string) BackendInfo
}

// Config configures a Store.
type Config struct {
	EndpointURL         string
	AccessKeyID         string
	SecretAccessKey     string
	BucketName          string
	UseSSL              bool
	PresignedURLTimeout time.Duration
	DefaultBackendID    string
	// BackendManager resolves a storage-backend descriptor by ID. A nil
	// value yields a generic S3-compatible default for every ID, since
	// this module has no storage-backend registry of its own.
	BackendManager func(id string) BackendInfo
}

// New builds a Store and ensures the configured bucket exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := minio.New(cfg.EndpointURL, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Errorf("failed to initialize object store client: %v", err)
		return nil, fmt.Errorf("object: new client: %w", err)
	}

	ttl := cfg.PresignedURLTimeout
	if ttl <= 0 {
		ttl = defaultPresignedURLTimeout
	}

	backendManager := cfg.BackendManager
	if backendManager == nil {
		backendManager = func(id string) BackendInfo {
			return BackendInfo{StoreType: "http_object_store", Provider: "S3-Compatible", Region: "default", StoreProduct: "S3-Compatible Storage"}
		}
	}

	s := &Store{
		client:              client,
		bucket:              cfg.BucketName,
		presignedURLTimeout: ttl,
		defaultBackendID:    cfg.DefaultBackendID,
		backendManager:      backendManager,
	}

	if err := s.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	log.Infof("object store initialized with endpoint %s, bucket %s", cfg.EndpointURL, cfg.BucketName)
	return s, nil
}

// EnsureBucket creates the configured bucket if it doesn't already
// exist, mirroring _ensure_bucket_exists's head-then-create pattern.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		log.Errorf("error checking bucket %q: %v", s.bucket, err)
		return fmt.Errorf("object: bucket exists check: %w", err)
	}
	if exists {
		log.Infof("bucket %q already exists", s.bucket)
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		log.Errorf("failed to create bucket %q: %v", s.bucket, err)
		return fmt.Errorf("object: create bucket: %w", err)
	}
	log.Infof("created bucket %q", s.bucket)
	return nil
}

// GenerateSegmentKey derives the deterministic object key
// flow_id/YYYY/MM/DD/segment_id from the segment's timerange start. A
// malformed timerange falls back to the current date, matching the
// original's except-then-now() behavior.
func GenerateSegmentKey(flowID, segmentID, tr string) string {
	year, month, day := time.Now().UTC().Year(), int(time.Now().UTC().Month()), time.Now().UTC().Day()

	if parsed, err := timerange.Parse(tr); err == nil {
		year, month, day = timerange.DeriveKeyComponents(parsed.Start)
	} else {
		log.Warnf("failed to parse timerange %q for key derivation, using current date: %v", tr, err)
	}

	return fmt.Sprintf("%s/%04d/%02d/%02d/%s", flowID, year, month, day, segmentID)
}

func (s *Store) metadataFor(flowID string, seg Segment, contentType string) map[string]string {
	return map[string]string{
		"flow_id":         flowID,
		"segment_id":      seg.ObjectID,
		"timerange":       seg.Timerange,
		"ts_offset":       seg.TSOffset,
		"last_duration":   seg.LastDuration,
		"sample_offset":   strconv.FormatInt(seg.SampleOffset, 10),
		"sample_count":    strconv.FormatInt(seg.SampleCount, 10),
		"key_frame_count": strconv.FormatInt(seg.KeyFrameCount, 10),
		"created":         time.Now().UTC().Format(time.RFC3339),
		"content_type":    contentType,
	}
}

// StoreSegment PUTs data under the segment's deterministic key with a
// metadata map matching the original's store_flow_segment.
func (s *Store) StoreSegment(ctx context.Context, flowID string, seg Segment, data []byte, contentType string) error {
	if contentType == "" {
		contentType = defaultContentType
	}
	key := GenerateSegmentKey(flowID, seg.ObjectID, seg.Timerange)

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: s.metadataFor(flowID, seg, contentType),
	})
	if err != nil {
		log.Errorf("failed to store flow segment for flow %s: %v", flowID, err)
		return fmt.Errorf("object: store segment: %w", err)
	}
	log.Infof("stored flow segment %s for flow %s", seg.ObjectID, flowID)
	return nil
}

// GetSegment retrieves segment data, returning (nil, nil) if the key
// doesn't exist rather than an error, matching get_flow_segment_data's
// None-on-NoSuchKey behavior.
func (s *Store) GetSegment(ctx context.Context, flowID, segmentID, tr string) ([]byte, error) {
	key := GenerateSegmentKey(flowID, segmentID, tr)
	// minio-go's GetObject only dials lazily; NoSuchKey surfaces on the
	// first Read, not here.
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		log.Errorf("failed to retrieve flow segment %s for flow %s: %v", segmentID, flowID, err)
		return nil, nil
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			log.Warnf("flow segment %s for flow %s not found", segmentID, flowID)
			return nil, nil
		}
		log.Errorf("failed to retrieve flow segment %s for flow %s: %v", segmentID, flowID, err)
		return nil, nil
	}
	log.Infof("retrieved flow segment %s for flow %s", segmentID, flowID)
	return data, nil
}

// SegmentMetadata is the result of GetSegmentMetadata.
type SegmentMetadata struct {
	UserMetadata map[string]string
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
}

// GetSegmentMetadata HEADs the segment's object, returning nil if it
// doesn't exist.
func (s *Store) GetSegmentMetadata(ctx context.Context, flowID, segmentID, tr string) (*SegmentMetadata, error) {
	key := GenerateSegmentKey(flowID, segmentID, tr)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			log.Warnf("flow segment %s for flow %s not found", segmentID, flowID)
			return nil, nil
		}
		log.Errorf("failed to get metadata for flow segment %s: %v", segmentID, err)
		return nil, nil
	}
	return &SegmentMetadata{
		UserMetadata: info.UserMetadata,
		Size:         info.Size,
		LastModified: info.LastModified,
		ContentType:  info.ContentType,
		ETag:         info.ETag,
	}, nil
}

// DeleteSegment deletes the segment's object; a missing key is treated
// as success, matching delete_flow_segment.
func (s *Store) DeleteSegment(ctx context.Context, flowID, segmentID, tr string) error {
	key := GenerateSegmentKey(flowID, segmentID, tr)
	return s.DeleteObject(ctx, key)
}

// DeleteObject deletes an object directly by its storage key; a missing
// key is treated as success, matching delete_object.
func (s *Store) DeleteObject(ctx context.Context, storagePath string) error {
	err := s.client.RemoveObject(ctx, s.bucket, storagePath, minio.RemoveObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			log.Warnf("object not found: %s", storagePath)
			return nil
		}
		log.Errorf("failed to delete object %s: %v", storagePath, err)
		return fmt.Errorf("object: delete: %w", err)
	}
	log.Infof("deleted object: %s", storagePath)
	return nil
}

// Operation selects the S3 verb a presigned URL authorizes.
type Operation string

const (
	OpGetObject    Operation = "get_object"
	OpPutObject    Operation = "put_object"
	OpDeleteObject Operation = "delete_object"
)

// PresignedURL mints a presigned URL for op against the segment's
// deterministic key, falling back to the store's configured TTL when
// expiresIn is zero.
func (s *Store) PresignedURL(ctx context.Context, flowID, segmentID, tr string, op Operation, expiresIn time.Duration) (string, error) {
	key := GenerateSegmentKey(flowID, segmentID, tr)
	return s.presignKey(ctx, key, op, expiresIn)
}

func (s *Store) presignKey(ctx context.Context, key string, op Operation, expiresIn time.Duration) (string, error) {
	if expiresIn <= 0 {
		expiresIn = s.presignedURLTimeout
	}

	var u *url.URL
	var err error
	switch op {
	case OpPutObject:
		u, err = s.client.PresignedPutObject(ctx, s.bucket, key, expiresIn)
	case OpDeleteObject:
		// minio-go has no PresignedDeleteObject helper; compose the
		// presigned request the same way PresignedHeadObject does.
		u, err = s.client.Presign(ctx, "DELETE", s.bucket, key, expiresIn, nil)
	default:
		u, err = s.client.PresignedGetObject(ctx, s.bucket, key, expiresIn, nil)
	}
	if err != nil {
		log.Errorf("failed to generate presigned URL for key %s: %v", key, err)
		return "", fmt.Errorf("object: presign: %w", err)
	}
	return u.String(), nil
}

// TAMSCompliantGetURLs augments a presigned get-object URL with a
// storage-backend descriptor, matching
// create_tams_compliant_get_urls. storagePath, when non-empty, is used
// verbatim instead of re-deriving the key from flowID/segmentID/tr.
func (s *Store) TAMSCompliantGetURLs(ctx context.Context, flowID, segmentID, tr, storagePath, backendID string) ([]GetURL, error) {
	key := storagePath
	if key == "" {
		key = GenerateSegmentKey(flowID, segmentID, tr)
	}
	if backendID == "" {
		backendID = s.defaultBackendID
	}

	presigned, err := s.presignKey(ctx, key, OpGetObject, 0)
	if err != nil {
		return nil, err
	}

	info := s.backendManager(backendID)
	log.Infof("created TAMS-compliant get URL for segment %s", segmentID)
	return []GetURL{{
		URL:              presigned,
		Label:            fmt.Sprintf("Direct access for segment %s", segmentID),
		StoreType:        info.StoreType,
		Provider:         info.Provider,
		Region:           info.Region,
		AvailabilityZone: info.AvailabilityZone,
		StoreProduct:     info.StoreProduct,
		StorageID:        backendID,
		Presigned:        true,
		Controlled:       true,
	}}, nil
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey"
}
