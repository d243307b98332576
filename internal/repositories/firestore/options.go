package firestore

import "strings"

type settings struct {
	collection string
}

// Option customises repository construction.
type Option func(*settings)

// WithCollection overrides the default Firestore collection name, letting
// environments run against isolated datasets.
func WithCollection(name string) Option {
	return func(s *settings) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			s.collection = trimmed
		}
	}
}

func resolveCollection(fallback string, opts []Option) string {
	s := settings{collection: fallback}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s.collection
}
