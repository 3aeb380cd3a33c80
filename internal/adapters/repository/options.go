package repository

import "os"

// Option applies a configuration option to the JSONFileStore.
type Option func(*JSONFileStore)

// WithFileMode sets the permissions of a newly written history file.
func WithFileMode(mode os.FileMode) Option {
	return func(s *JSONFileStore) {
		if mode != 0 {
			s.mode = mode
		}
	}
}
