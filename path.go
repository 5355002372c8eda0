package archive

import "strings"

// NormalizePath converts a user-provided path to the form used for tree
// lookups.
//
// It performs the following transformations:
//   - Strips leading slashes: "/etc/nginx" → "etc/nginx"
//   - Strips trailing slashes: "etc/nginx/" → "etc/nginx"
//   - Collapses consecutive slashes: "etc//nginx" → "etc/nginx"
//   - Drops "." segments: "./etc/./nginx" → "etc/nginx"
//   - Converts empty string and "/" to root: "" → "."
//
// ".." segments are preserved; lookups treat them as ordinary names, so
// they never resolve outside the tree.
func NormalizePath(p string) string {
	parts := strings.Split(p, "/")
	result := parts[:0] // reuse backing array
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return "."
	}
	return strings.Join(result, "/")
}

// splitPath splits a normalized path into its parent directory and base
// name. The parent of a top-level name is ".".
func splitPath(p string) (dir, base string) {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return ".", p
	}
	return p[:i], p[i+1:]
}
