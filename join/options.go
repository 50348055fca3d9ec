package join

import (
	"fmt"
	"strings"

	"github.com/danthegoodman1/icejoin/partitioner"
	"github.com/danthegoodman1/icejoin/table"
)

type How string

const (
	Inner How = "inner"
	Left  How = "left"
	Right How = "right"
)

const (
	DefaultMergeLSuffix = "_x"
	DefaultMergeRSuffix = "_y"
)

type (
	Options struct {
		// On names the key columns. Join defaults to the index of the inputs, Merge to the
		// columns both inputs share.
		On      []string
		How     How
		LSuffix string
		RSuffix string
		// Buckets is the shuffle width, 0 means the larger input partition count
		Buckets int
		// PartitionFunc is partitioner.Hash (default) or partitioner.Range
		PartitionFunc string
		// Workers bounds the worker pool, 0 means JOIN_WORKERS or GOMAXPROCS
		Workers int
		// MaxBucketRows caps the rows one side may route into a bucket, 0 means SHUFFLE_MAX_BUCKET_ROWS
		MaxBucketRows int
		// Sort orders each output partition by key
		Sort bool
	}

	// Spec is a validated join specification for a pair of schemas.
	Spec struct {
		Keys    []string
		How     How
		LSuffix string
		RSuffix string
		// Indexed makes the keys the index of the result, as an index join does
		Indexed bool
		Sort    bool
	}

	outputColumn struct {
		name string
		typ  table.ColumnType
		// left is false for columns sourced from the right input
		left bool
		src  int
		// key columns take the preserved side's value
		key    bool
		keyPos int
	}
)

// ParseHow validates a join kind from user input.
func ParseHow(s string) (How, error) {
	h := How(strings.ToLower(strings.TrimSpace(s)))
	switch h {
	case Inner, Left, Right:
		return h, nil
	case "":
		return Inner, nil
	}
	return "", &UnsupportedJoinKindError{How: How(s)}
}

func (o Options) partitionFunc() string {
	if o.PartitionFunc == "" {
		return partitioner.Hash
	}
	return o.PartitionFunc
}

// Resolve checks opts against the two input schemas and produces the join spec. It reports the
// same errors the engine would, before any rows move.
func Resolve(left, right []table.Field, leftIndex, rightIndex []string, opts Options, indexed bool) (Spec, error) {
	spec := Spec{How: opts.How, LSuffix: opts.LSuffix, RSuffix: opts.RSuffix, Indexed: indexed, Sort: opts.Sort}
	if spec.How == "" {
		spec.How = Inner
	}
	switch spec.How {
	case Inner, Left, Right:
	default:
		return Spec{}, &UnsupportedJoinKindError{How: spec.How}
	}
	if _, ok := partitioner.Functions[opts.partitionFunc()]; !ok {
		return Spec{}, &UnsupportedPartitionFuncError{Func: opts.PartitionFunc}
	}

	spec.Keys = opts.On
	if len(spec.Keys) == 0 {
		if indexed {
			if len(leftIndex) == 0 {
				return Spec{}, &KeyNotFoundError{Side: "left"}
			}
			spec.Keys = leftIndex
		} else {
			for _, f := range left {
				if fieldIndex(right, f.Name) >= 0 {
					spec.Keys = append(spec.Keys, f.Name)
				}
			}
			if len(spec.Keys) == 0 {
				return Spec{}, &KeyNotFoundError{Side: "right"}
			}
		}
	}
	if !indexed && opts.LSuffix == "" && opts.RSuffix == "" {
		spec.LSuffix, spec.RSuffix = DefaultMergeLSuffix, DefaultMergeRSuffix
	}

	if _, err := layout(left, right, spec); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// layout decides the output columns: keys first when indexed, otherwise left columns in order
// with keys in place, followed by the right non-key columns.
func layout(left, right []table.Field, spec Spec) ([]outputColumn, error) {
	keyPos := make(map[string]int, len(spec.Keys))
	for i, k := range spec.Keys {
		if fieldIndex(left, k) < 0 {
			return nil, &KeyNotFoundError{Key: k, Side: "left"}
		}
		if fieldIndex(right, k) < 0 {
			return nil, &KeyNotFoundError{Key: k, Side: "right"}
		}
		keyPos[k] = i
	}

	keyColumn := func(k string) (outputColumn, error) {
		li, ri := fieldIndex(left, k), fieldIndex(right, k)
		typ, err := table.Unify(left[li].Type, right[ri].Type)
		if err != nil {
			return outputColumn{}, fmt.Errorf("error in key column %s: %w", k, err)
		}
		return outputColumn{name: k, typ: typ, left: true, src: li, key: true, keyPos: keyPos[k]}, nil
	}

	var out []outputColumn
	if spec.Indexed {
		for _, k := range spec.Keys {
			c, err := keyColumn(k)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}
	for i, f := range left {
		if _, isKey := keyPos[f.Name]; isKey {
			if spec.Indexed {
				continue
			}
			c, err := keyColumn(f.Name)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
			continue
		}
		name := f.Name
		if fieldIndex(right, f.Name) >= 0 {
			if spec.LSuffix == spec.RSuffix {
				return nil, &ColumnCollisionError{Column: f.Name}
			}
			name += spec.LSuffix
		}
		out = append(out, outputColumn{name: name, typ: f.Type, left: true, src: i})
	}
	for i, f := range right {
		if _, isKey := keyPos[f.Name]; isKey {
			continue
		}
		name := f.Name
		if fieldIndex(left, f.Name) >= 0 {
			name += spec.RSuffix
		}
		out = append(out, outputColumn{name: name, typ: f.Type, src: i})
	}

	seen := make(map[string]bool, len(out))
	for _, c := range out {
		if seen[c.name] {
			return nil, &ColumnCollisionError{Column: c.name}
		}
		seen[c.name] = true
	}
	return out, nil
}

func fieldIndex(fields []table.Field, name string) int {
	for i, f := range fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}
