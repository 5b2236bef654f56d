// Package archive persists full fault reports as JSON objects in an S3
// bucket, one object per report ID.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/faultline-labs/faultline/config"
	"github.com/faultline-labs/faultline/errdata/errclass"
	"github.com/faultline-labs/faultline/errdata/errfields"
	"github.com/faultline-labs/faultline/report"
	"github.com/faultline-labs/faultline/trace"
)

var (
	ErrNoRegion = errors.New("no region supplied")
	ErrNoBucket = errors.New("no bucket supplied")
	ErrNotFound = errors.New("report not found")
)

//go:generate mockgen -source store.go -destination mock_store.go -package archive

// S3Client is the part of the SDK client the store needs.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store archives reports under `<prefix>/<id>.json`.
type Store struct {
	bucket string
	prefix string
	s3     S3Client
}

type StoreConfig struct {
	Endpoint        string `koanf:"endpoint"`
	AccessKeyID     string `koanf:"accesskeyid"`
	SecretAccessKey string `koanf:"secretaccesskey"`
	Bucket          string `koanf:"bucket"`
	Prefix          string `koanf:"prefix"`
	Region          string `koanf:"region"`

	// Set to true for minio, false for AWS
	S3ForcePathStyle bool `koanf:"s3forcepathstyle"`
	// Set to true for minio, false for AWS
	DisableSSL bool `koanf:"disablessl"`
}

// NewStoreFromConfig creates a Store and its S3 client from settings.
func NewStoreFromConfig(ctx context.Context, settings StoreConfig) (*Store, error) {
	if settings.Region == "" {
		return nil, trace.WrapError(ErrNoRegion)
	}
	if settings.Bucket == "" {
		return nil, trace.WrapError(ErrNoBucket)
	}

	client, err := newS3Client(ctx, settings)
	if err != nil {
		return nil, err
	}

	return &Store{
		bucket: settings.Bucket,
		prefix: strings.Trim(settings.Prefix, "/"),
		s3:     client,
	}, nil
}

// NewStore creates a Store from the configuration section at cfgPath.
func NewStore(ctx context.Context, cfg *config.Configuration, cfgPath string) (*Store, error) {
	settings := StoreConfig{}
	if err := cfg.Unmarshal(cfgPath, &settings); err != nil {
		return nil, trace.WrapError(err)
	}

	return NewStoreFromConfig(ctx, settings)
}

// NewS3Client builds a real SDK client from the configuration section at
// cfgPath, using static credentials when the section provides them.
func NewS3Client(ctx context.Context, cfg *config.Configuration, cfgPath string) (S3Client, error) {
	settings := StoreConfig{}
	if err := cfg.Unmarshal(cfgPath, &settings); err != nil {
		return nil, trace.WrapError(err)
	}
	if settings.Region == "" {
		return nil, trace.WrapError(ErrNoRegion)
	}

	return newS3Client(ctx, settings)
}

func newS3Client(ctx context.Context, settings StoreConfig) (S3Client, error) {
	var awsConfig aws.Config
	var err error
	if settings.AccessKeyID != "" && settings.SecretAccessKey != "" {
		awsConfig, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(settings.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				settings.AccessKeyID,
				settings.SecretAccessKey,
				"",
			)),
		)
	} else {
		awsConfig, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(settings.Region),
		)
	}
	if err != nil {
		return nil, trace.WrapError(err)
	}

	clientOptions := []func(*s3.Options){
		func(o *s3.Options) {
			if settings.Endpoint != "" {
				o.BaseEndpoint = aws.String(settings.Endpoint)
			}
			o.UsePathStyle = settings.S3ForcePathStyle
			if settings.DisableSSL {
				o.EndpointOptions.DisableHTTPS = true
			}
		},
	}

	return s3.NewFromConfig(awsConfig, clientOptions...), nil
}

func (s *Store) key(id string) string {
	if s.prefix == "" {
		return id + ".json"
	}
	return s.prefix + "/" + id + ".json"
}

// Ship uploads the report as a JSON object keyed by its ID.
func (s *Store) Ship(ctx context.Context, rep report.Report) (err error) {
	defer func() {
		err = errfields.Add(err, slog.String("report_id", rep.ID))
	}()

	data, err := json.Marshal(rep)
	if err != nil {
		return errclass.Mark(trace.WrapError(err), errclass.Persistent)
	}

	_, err = s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(rep.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errclass.Mark(trace.WrapError(err), errclass.Transient)
	}

	return nil
}

// Load fetches and decodes an archived report.
func (s *Store) Load(ctx context.Context, id string) (rep report.Report, err error) {
	defer func() {
		err = errfields.Add(err, slog.String("report_id", id))
	}()

	out, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return report.Report{}, errclass.Mark(trace.WrapError(ErrNotFound), errclass.Persistent)
		}
		return report.Report{}, errclass.Mark(trace.WrapError(err), errclass.Transient)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return report.Report{}, errclass.Mark(trace.WrapError(err), errclass.Transient)
	}

	if err := json.Unmarshal(data, &rep); err != nil {
		return report.Report{}, errclass.Mark(trace.WrapError(err), errclass.Persistent)
	}

	return rep, nil
}

// List returns up to limit archived report IDs; limit <= 0 means all of
// them. IDs come back in chronological order because xid leads with its
// timestamp and S3 lists keys lexicographically.
func (s *Store) List(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	var continuationToken *string

	prefix := ""
	if s.prefix != "" {
		prefix = s.prefix + "/"
	}

	for {
		// handle context cancellation
		select {
		case <-ctx.Done():
			return nil, trace.WrapError(ctx.Err())
		default:
		}

		input := &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			ContinuationToken: continuationToken,
		}
		if prefix != "" {
			input.Prefix = aws.String(prefix)
		}

		output, err := s.s3.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, errclass.Mark(trace.WrapError(err), errclass.Transient)
		}

		for _, obj := range output.Contents {
			if obj.Key == nil {
				continue
			}
			id, ok := strings.CutSuffix(strings.TrimPrefix(*obj.Key, prefix), ".json")
			if !ok {
				continue
			}
			ids = append(ids, id)
			if limit > 0 && len(ids) == limit {
				return ids, nil
			}
		}

		if output.IsTruncated == nil || !*output.IsTruncated {
			break
		}
		continuationToken = output.NextContinuationToken
	}

	return ids, nil
}

// Delete removes an archived report. Deleting an absent ID is not an error.
func (s *Store) Delete(ctx context.Context, id string) (err error) {
	defer func() {
		err = errfields.Add(err, slog.String("report_id", id))
	}()

	_, err = s.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return errclass.Mark(trace.WrapError(err), errclass.Transient)
	}
	return nil
}
