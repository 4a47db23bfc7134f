package gitx

import (
	"testing"

	"golden-go/internal/golden"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   golden.FetchCategory
	}{
		{
			name:   "dns failure is transient",
			stderr: "fatal: unable to access 'https://example.com/repo.git/': Could not resolve host: example.com",
			want:   golden.FetchTransient,
		},
		{
			name:   "connection refused is transient",
			stderr: "fatal: unable to connect: Connection refused",
			want:   golden.FetchTransient,
		},
		{
			name:   "timeout is transient",
			stderr: "fatal: unable to access remote: Operation timed out",
			want:   golden.FetchTransient,
		},
		{
			name:   "remote hangup is transient",
			stderr: "fatal: The remote end hung up unexpectedly",
			want:   golden.FetchTransient,
		},
		{
			name:   "bad object is corruption",
			stderr: "error: refs/heads/main does not point to a valid object!\nfatal: bad object HEAD",
			want:   golden.FetchCorruption,
		},
		{
			name:   "corrupt pack is corruption",
			stderr: "fatal: pack has bad object at offset 12345",
			want:   golden.FetchCorruption,
		},
		{
			name:   "corrupt loose object is corruption",
			stderr: "error: object file .git/objects/ab/cdef is empty\nfatal: loose object abcdef is corrupt",
			want:   golden.FetchCorruption,
		},
		{
			name:   "missing git dir is corruption",
			stderr: "fatal: not a git repository (or any of the parent directories): .git",
			want:   golden.FetchCorruption,
		},
		{
			name:   "unknown output defaults to transient",
			stderr: "fatal: something nobody has ever seen before",
			want:   golden.FetchTransient,
		},
		{
			name:   "empty stderr defaults to transient",
			stderr: "",
			want:   golden.FetchTransient,
		},
		{
			name:   "matching is case-insensitive",
			stderr: "FATAL: BAD OBJECT deadbeef",
			want:   golden.FetchCorruption,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.stderr); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.stderr, got, tt.want)
			}
		})
	}
}
