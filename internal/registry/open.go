package registry

import (
	"context"
	"strings"
)

// OpenStore picks a backend from path:
//   - "memory" or ":memory:"        -> MemoryStore
//   - "sqlite://..." or *.db/*.sqlite -> SQLiteStore
//   - anything else                  -> FileStore (JSON)
func OpenStore(ctx context.Context, path string) (Store, error) {
	p := strings.TrimSpace(path)
	lower := strings.ToLower(p)
	switch {
	case p == "":
		return NewFileStore(DefaultPath), nil
	case lower == "memory" || lower == ":memory:":
		return NewMemoryStore(nil), nil
	case strings.HasPrefix(lower, "sqlite://"), strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"):
		return NewSQLiteStore(ctx, p)
	default:
		return NewFileStore(p), nil
	}
}
