package join

import (
	"errors"
	"fmt"
)

type (
	// KeyNotFoundError is returned when a key column is missing from one of the inputs.
	KeyNotFoundError struct {
		Key  string
		Side string
	}

	// UnsupportedJoinKindError is returned for a join kind other than inner, left or right.
	UnsupportedJoinKindError struct {
		How How
	}

	// UnsupportedPartitionFuncError is returned for a partition function that is not registered
	// with the partitioner.
	UnsupportedPartitionFuncError struct {
		Func string
	}

	// ColumnCollisionError is returned when the suffix pair leaves two output columns with the
	// same name.
	ColumnCollisionError struct {
		Column string
	}

	// ShuffleFailureError is returned when rows could not be redistributed into buckets.
	ShuffleFailureError struct {
		Side      string
		Partition int
		Bucket    int
		Err       error
	}
)

var ErrBucketTooLarge = errors.New("bucket exceeds the shuffle row limit")

func (e *KeyNotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("no join keys: %s input has no index or shared columns", e.Side)
	}
	return fmt.Sprintf("key column %q not found in %s input", e.Key, e.Side)
}

func (e *KeyNotFoundError) IsPermanent() bool {
	return true
}

func (e *UnsupportedJoinKindError) Error() string {
	return fmt.Sprintf("unsupported join kind %q, expected one of inner, left, right", string(e.How))
}

func (e *UnsupportedJoinKindError) IsPermanent() bool {
	return true
}

func (e *UnsupportedPartitionFuncError) Error() string {
	return fmt.Sprintf("unsupported partition function %q, expected hash or range", e.Func)
}

func (e *UnsupportedPartitionFuncError) IsPermanent() bool {
	return true
}

func (e *ColumnCollisionError) Error() string {
	return fmt.Sprintf("column %q appears twice in the join output, use distinct suffixes", e.Column)
}

func (e *ColumnCollisionError) IsPermanent() bool {
	return true
}

func (e *ShuffleFailureError) Error() string {
	if e.Bucket >= 0 {
		return fmt.Sprintf("shuffle failed for %s bucket %d: %s", e.Side, e.Bucket, e.Err)
	}
	return fmt.Sprintf("shuffle failed for %s partition %d: %s", e.Side, e.Partition, e.Err)
}

func (e *ShuffleFailureError) Unwrap() error {
	return e.Err
}

func (e *ShuffleFailureError) IsPermanent() bool {
	return true
}
