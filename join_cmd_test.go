package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danthegoodman1/icejoin/csvio"
	"github.com/danthegoodman1/icejoin/join"
	"github.com/danthegoodman1/icejoin/table"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestJoinCmd(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "l", "0.csv"), "x,a\n0,0\n")
	writeFile(t, filepath.Join(dir, "l", "1.csv"), "x,a\n1,1\n")
	writeFile(t, filepath.Join(dir, "r", "0.csv"), "x,a\n0,10\n0,11\n")

	paths, err := runJoinCmd(context.Background(), joinFlags{
		left:          filepath.Join(dir, "l", "*.csv"),
		right:         filepath.Join(dir, "r", "*.csv"),
		on:            []string{"x"},
		how:           "left",
		index:         true,
		lsuffix:       "_l",
		rsuffix:       "_r",
		partitionFunc: "hash",
		out:           filepath.Join(dir, "out"),
		pattern:       "part-*.csv",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatal("expected one file per bucket, got", paths)
	}

	back, err := csvio.ReadCSV(context.Background(), filepath.Join(dir, "out", "part-*.csv"), csvio.ReadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := back.Compute()
	if err != nil {
		t.Fatal(err)
	}
	expect := table.MustNew(
		table.Ints("x", 0, 0, 1),
		table.Ints("a_l", 0, 0, 1),
		&table.Column{Name: "a_r", Type: table.Int, Values: []any{int64(10), int64(11), nil}},
	)
	if err = table.Equivalent(expect, got); err != nil {
		t.Fatal(err)
	}
}

func TestJoinCmdBadHow(t *testing.T) {
	_, err := runJoinCmd(context.Background(), joinFlags{how: "cross"})
	if err == nil {
		t.Fatal("expected an error for an unsupported join kind")
	}
}

func TestJoinCmdIndexKeyMissing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "l", "0.csv"), "x,a\n0,0\n")
	writeFile(t, filepath.Join(dir, "r", "0.csv"), "y,b\n0,10\n")

	_, err := runJoinCmd(context.Background(), joinFlags{
		left:    filepath.Join(dir, "l", "*.csv"),
		right:   filepath.Join(dir, "r", "*.csv"),
		on:      []string{"x"},
		how:     "inner",
		index:   true,
		out:     filepath.Join(dir, "out"),
		pattern: "part-*.csv",
	})
	var knf *join.KeyNotFoundError
	if !errors.As(err, &knf) {
		t.Fatalf("expected a KeyNotFoundError, got %v", err)
	}
	if knf.Key != "x" || knf.Side != "right" {
		t.Fatalf("unexpected key error: %+v", knf)
	}
}

func TestJoinCmdBadPartitionFunc(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "l", "0.csv"), "x,a\n0,0\n")
	writeFile(t, filepath.Join(dir, "r", "0.csv"), "x,b\n0,10\n")

	_, err := runJoinCmd(context.Background(), joinFlags{
		left:          filepath.Join(dir, "l", "*.csv"),
		right:         filepath.Join(dir, "r", "*.csv"),
		on:            []string{"x"},
		how:           "inner",
		partitionFunc: "foo",
		out:           filepath.Join(dir, "out"),
		pattern:       "part-*.csv",
	})
	var upf *join.UnsupportedPartitionFuncError
	if !errors.As(err, &upf) {
		t.Fatalf("expected an UnsupportedPartitionFuncError, got %v", err)
	}
}
