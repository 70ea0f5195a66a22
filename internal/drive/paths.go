package drive

import (
	"path"
	"strings"
)

// Remote paths are POSIX with a leading slash regardless of the local
// platform; these helpers keep that invariant.

// JoinPath joins a remote base with a (possibly OS-separated) relative
// name, collapsing duplicate separators.
func JoinPath(base, name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base = strings.TrimRight(base, "/")
	name = strings.TrimLeft(name, "/")

	if base == "" {
		return NormalizePath("/" + name)
	}
	return NormalizePath(base + "/" + name)
}

// ParentPath returns the parent of a remote path, or "" for the root.
func ParentPath(p string) string {
	p = NormalizePath(p)
	if p == "/" {
		return ""
	}
	parent := path.Dir(p)
	return parent
}

// Filename returns the last element of a remote path.
func Filename(p string) string {
	p = NormalizePath(p)
	if p == "/" {
		return "/"
	}
	return path.Base(p)
}

// NormalizePath ensures a single leading slash and collapses "//".
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "//", "/")
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return "/"
	}
	return "/" + p
}
