package svn

import "strings"

// IsChildPath reports whether path equals base or lies underneath it.
// Both are repository-absolute.
func IsChildPath(path, base string) bool {
	if path == base {
		return true
	}

	return strings.HasPrefix(path, strings.TrimRight(base, "/")+"/")
}

// PathOffset returns the part of path below base, without a leading
// slash, and whether path is under base at all. The offset of base
// itself is "".
func PathOffset(path, base string) (string, bool) {
	if !IsChildPath(path, base) {
		return "", false
	}

	return strings.Trim(path[len(base):], "/"), true
}

// JoinPath joins base and child, tolerating empty child and trailing
// slashes on base.
func JoinPath(base, child string) string {
	base = strings.TrimRight(base, "/")
	if child == "" {
		return base
	}

	return base + "/" + strings.TrimLeft(child, "/")
}
