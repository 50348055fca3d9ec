package datastore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/danthegoodman1/icejoin/utils"
	"github.com/rs/zerolog"
	s3_pq "github.com/xitongsys/parquet-go-source/s3"
	"github.com/xitongsys/parquet-go/source"
)

var ErrNoBucket = errors.New("S3_BUCKET_NAME is not set")

type (
	S3DataStore struct {
		bucket   string
		client   s3iface.S3API
		uploader *s3manager.Uploader
		// MaxRetryTime bounds retries of a single upload
		MaxRetryTime time.Duration
	}
)

func NewS3DataStore(bucket string) (*S3DataStore, error) {
	if bucket == "" {
		return nil, ErrNoBucket
	}
	s3Config := &aws.Config{
		Region:      aws.String(utils.AWS_DEFAULT_REGION),
		Credentials: credentials.NewEnvCredentials(),
	}
	if utils.S3_ENDPOINT != "" {
		s3Config.Endpoint = aws.String(utils.S3_ENDPOINT)
		s3Config.S3ForcePathStyle = aws.Bool(true)
	}

	s3Session, err := session.NewSession(s3Config)
	if err != nil {
		return nil, fmt.Errorf("error making new session: %w", err)
	}

	client := s3.New(s3Session)
	return &S3DataStore{
		bucket:       bucket,
		client:       client,
		uploader:     s3manager.NewUploaderWithClient(client),
		MaxRetryTime: time.Minute,
	}, nil
}

func (sds *S3DataStore) Put(ctx context.Context, key string, body io.Reader) error {
	ctx = logger.WithContext(ctx)
	logger := zerolog.Ctx(ctx)

	// buffered so each retry can replay the body
	b, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("error in io.ReadAll: %w", err)
	}

	s := time.Now()
	err = utils.Retry(ctx, sds.MaxRetryTime, func(ctx context.Context) error {
		_, err := sds.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket:      aws.String(sds.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(b),
			ContentType: aws.String("application/vnd.apache.parquet"),
		})
		return classify(err)
	})
	if err != nil {
		return fmt.Errorf("error uploading to s3: %w", err)
	}

	d := time.Since(s)
	logger.Debug().Str("fileName", key).Int64("durationNS", d.Nanoseconds()).Str("durationHuman", d.String()).Msg("uploaded file to s3")
	return nil
}

func (sds *S3DataStore) Open(ctx context.Context, key string) (source.ParquetFile, error) {
	f, err := s3_pq.NewS3FileReaderWithClient(ctx, sds.client, sds.bucket, key)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("error creating new s3 file reader: %w", err)
	}
	return f, nil
}

func (sds *S3DataStore) Delete(ctx context.Context, key string) error {
	return utils.Retry(ctx, sds.MaxRetryTime, func(ctx context.Context) error {
		_, err := sds.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(sds.bucket),
			Key:    aws.String(key),
		})
		return classify(err)
	})
}

func (sds *S3DataStore) Shutdown(context.Context) error {
	return nil
}

// classify marks client side S3 failures as permanent so they are not retried.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() >= 400 && reqErr.StatusCode() < 500 {
		return utils.Permanent(err)
	}
	return err
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound":
		return true
	}
	return false
}
