package drive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinPath(t *testing.T) {
	tests := []struct {
		base, name, want string
	}{
		{"/r", "x.txt", "/r/x.txt"},
		{"/r/", "x.txt", "/r/x.txt"},
		{"/r", "/x.txt", "/r/x.txt"},
		{"", "x.txt", "/x.txt"},
		{"/", "x.txt", "/x.txt"},
		{"/r", "sub/x.txt", "/r/sub/x.txt"},
		{"/r", "sub\\x.txt", "/r/sub/x.txt"},
		{"/r//", "//x.txt", "/r/x.txt"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, JoinPath(tt.base, tt.name), "JoinPath(%q, %q)", tt.base, tt.name)
	}
}

func TestParentPath(t *testing.T) {
	assert.Equal(t, "/r", ParentPath("/r/x.txt"))
	assert.Equal(t, "/", ParentPath("/x.txt"))
	assert.Equal(t, "", ParentPath("/"))
	assert.Equal(t, "/r/sub", ParentPath("/r/sub/x"))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "x.txt", Filename("/r/x.txt"))
	assert.Equal(t, "x", Filename("/x"))
	assert.Equal(t, "/", Filename("/"))
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/", NormalizePath(""))
	assert.Equal(t, "/", NormalizePath("/"))
	assert.Equal(t, "/a/b", NormalizePath("a/b"))
	assert.Equal(t, "/a/b", NormalizePath("//a//b"))
}
