// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cloudstorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/filestat/internal/awsclient"
)

var (
	readErrors metric.Int64Counter
	readCount  metric.Int64Counter
	readBytes  metric.Int64Counter
	statCount  metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/filestat/internal/cloudstorage")

	var err error
	readErrors, err = meter.Int64Counter(
		"filestat.storage.read.errors",
		metric.WithDescription("Number of failed object storage requests"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create read.errors counter: %w", err))
	}

	readCount, err = meter.Int64Counter(
		"filestat.storage.read.count",
		metric.WithDescription("Number of ranged reads issued to object storage"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create read.count counter: %w", err))
	}

	readBytes, err = meter.Int64Counter(
		"filestat.storage.read.bytes",
		metric.WithDescription("Bytes requested from object storage by ranged reads"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create read.bytes counter: %w", err))
	}

	statCount, err = meter.Int64Counter(
		"filestat.storage.stat.count",
		metric.WithDescription("Number of metadata requests issued to object storage"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create stat.count counter: %w", err))
	}
}

// classifyS3Error maps SDK errors onto ErrNotFound / ErrAccess.
func classifyS3Error(err error) error {
	var (
		noKey    *types.NoSuchKey
		noBucket *types.NoSuchBucket
		notFound *types.NotFound
	)
	if errors.As(err, &noKey) || errors.As(err, &noBucket) || errors.As(err, &notFound) {
		return ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return ErrNotFound
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "AllAccessDisabled":
			return ErrAccess
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return ErrAccess
		}
	}
	return nil
}

func reason(kind error) string {
	switch {
	case errors.Is(kind, ErrNotFound):
		return "not_found"
	case errors.Is(kind, ErrAccess):
		return "access"
	default:
		return "unknown"
	}
}

func headS3Object(ctx context.Context, s3client *awsclient.S3Client, bucketID, objectID string) (int64, error) {
	ctx, span := s3client.Tracer.Start(ctx, "cloudstorage.headS3Object",
		trace.WithAttributes(
			attribute.String("bucketID", bucketID),
			attribute.String("objectID", objectID),
		),
	)
	defer span.End()

	statCount.Add(ctx, 1, metric.WithAttributes(attribute.String("bucket", bucketID)))

	out, err := s3client.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucketID),
		Key:    aws.String(objectID),
	})
	if err != nil {
		span.RecordError(err)
		readErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("bucket", bucketID),
			attribute.String("reason", reason(classifyS3Error(err))),
		))
		return 0, err
	}
	return aws.ToInt64(out.ContentLength), nil
}

func getS3Range(ctx context.Context, s3client *awsclient.S3Client, bucketID, objectID string, offset, length int64) (io.ReadCloser, error) {
	ctx, span := s3client.Tracer.Start(ctx, "cloudstorage.getS3Range",
		trace.WithAttributes(
			attribute.String("bucketID", bucketID),
			attribute.String("objectID", objectID),
			attribute.Int64("offset", offset),
			attribute.Int64("length", length),
		),
	)
	defer span.End()

	out, err := s3client.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucketID),
		Key:    aws.String(objectID),
		Range:  aws.String(httpRange(offset, length)),
	})
	if err != nil {
		span.RecordError(err)
		readErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("bucket", bucketID),
			attribute.String("reason", reason(classifyS3Error(err))),
		))
		return nil, err
	}

	readCount.Add(ctx, 1, metric.WithAttributes(attribute.String("bucket", bucketID)))
	readBytes.Add(ctx, length, metric.WithAttributes(attribute.String("bucket", bucketID)))
	return out.Body, nil
}
