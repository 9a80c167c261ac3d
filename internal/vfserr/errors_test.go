package vfserr

import (
	"context"
	"errors"
	"io/fs"
	"testing"
)

func TestKindString(t *testing.T) {
	testCases := []struct {
		kind     Kind
		expected string
	}{
		{KindNotFound, "not found"},
		{KindPermissionDenied, "permission denied"},
		{KindUnsupported, "unsupported"},
		{KindConnectionFailed, "connection failed"},
		{KindAuthenticationFailed, "authentication failed"},
		{KindTimeout, "timeout"},
		{KindCancelled, "cancelled"},
		{Kind(999), "unknown"},
	}

	for _, tc := range testCases {
		result := tc.kind.String()
		if result != tc.expected {
			t.Errorf("For kind %v, expected '%s', got '%s'", tc.kind, tc.expected, result)
		}
	}
}

func TestErrorFormat(t *testing.T) {
	err := New(KindNotFound, "list_entries", "/tmp/missing", errors.New("no such file"))
	expected := "not found error in list_entries [/tmp/missing]: no such file"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}

	err2 := New(KindConnectionFailed, "dial", "", errors.New("refused"))
	expected2 := "connection failed error in dial: refused"
	if err2.Error() != expected2 {
		t.Errorf("Expected error message '%s', got '%s'", expected2, err2.Error())
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := New(KindTimeout, "read_file", "/a", inner)
	if !errors.Is(err, inner) {
		t.Error("Expected errors.Is to find the wrapped error")
	}
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"not exist", fs.ErrNotExist, KindNotFound},
		{"permission", fs.ErrPermission, KindPermissionDenied},
		{"cancelled", context.Canceled, KindCancelled},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"other", errors.New("boom"), KindUnknown},
	}

	for _, tc := range testCases {
		got := KindOf(Classify("op", "/p", tc.err))
		if got != tc.expected {
			t.Errorf("%s: expected kind %v, got %v", tc.name, tc.expected, got)
		}
	}
}

func TestClassifyPassthrough(t *testing.T) {
	orig := Unsupported("write_file", "/arc.zip!/a")
	classified := Classify("write_file", "/arc.zip!/a", orig)
	if classified != error(orig) {
		t.Error("Expected an existing *Error to pass through Classify unchanged")
	}
	if !IsKind(classified, KindUnsupported) {
		t.Error("Expected unsupported kind to survive classification")
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := NotFound("metadata", "/x", nil)
	if !errors.Is(err, &Error{Kind: KindNotFound}) {
		t.Error("Expected errors.Is to match on kind")
	}
	if errors.Is(err, &Error{Kind: KindTimeout}) {
		t.Error("Did not expect errors.Is to match a different kind")
	}
}
