package app

import (
	"context"
	"testing"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestBuildDBCheck_NilPool(t *testing.T) {
	check := BuildDBCheck(nil)
	if err := check(context.Background()); err == nil {
		t.Fatal("expected error for nil pool")
	}
}

func TestBuildDBCheck_Healthy(t *testing.T) {
	check := BuildDBCheck(fakePinger{})
	if err := check(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestBuildDBCheck_Failing(t *testing.T) {
	check := BuildDBCheck(fakePinger{err: context.DeadlineExceeded})
	if err := check(context.Background()); err == nil {
		t.Fatal("expected error from failing ping")
	}
}
