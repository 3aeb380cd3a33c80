// Package source reads the roster and exempt-meeting files.
//
// Both files are plain lists: the roster is a list of identifiers and the
// exempt meetings a list of identifier lists. JSON files may carry
// comments and trailing commas; YAML is accepted too.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/okian/groupsplit/pkg/logger"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format identifies how a file is decoded.
type Format int

// Supported formats.
const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// LoadRoster reads the ordered roster at path. An empty path yields no roster.
func LoadRoster(ctx context.Context, path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster %s: %w", path, err)
	}
	roster, err := ParseRoster(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Get().Named("source").Debug(ctx, "roster loaded",
		logger.String("path", path), logger.Int("individuals", len(roster)))
	return roster, nil
}

// LoadExemptMeetings reads the exempt-meeting sets at path. An empty path
// or a file that does not exist yields no exemptions.
func LoadExemptMeetings(ctx context.Context, path string) ([][]string, error) {
	if path == "" {
		return nil, nil
	}
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Get().Named("source").Debug(ctx, "no exempt meetings file", logger.String("path", path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading exempt meetings %s: %w", path, err)
	}
	sets, err := ParseExemptMeetings(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Get().Named("source").Debug(ctx, "exempt meetings loaded",
		logger.String("path", path), logger.Int("sets", len(sets)))
	return sets, nil
}

// ParseRoster decodes a roster. Entries are trimmed; blank and repeated
// entries are rejected. Order is preserved since it drives generation.
func ParseRoster(data []byte, format Format) ([]string, error) {
	var raw []string
	if err := decode(data, format, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoster, err)
	}

	roster := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("%w: entry %d is blank", ErrInvalidRoster, i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %q is listed more than once", ErrInvalidRoster, id)
		}
		seen[id] = struct{}{}
		roster = append(roster, id)
	}
	return roster, nil
}

// ParseExemptMeetings decodes exempt-meeting sets. Entries are trimmed,
// repeats within a set collapse, and empty sets are dropped.
func ParseExemptMeetings(data []byte, format Format) ([][]string, error) {
	var raw [][]string
	if err := decode(data, format, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExemptions, err)
	}

	sets := make([][]string, 0, len(raw))
	for i, set := range raw {
		members := make([]string, 0, len(set))
		seen := make(map[string]struct{}, len(set))
		for _, id := range set {
			id = strings.TrimSpace(id)
			if id == "" {
				return nil, fmt.Errorf("%w: set %d has a blank entry", ErrInvalidExemptions, i)
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			members = append(members, id)
		}
		if len(members) > 0 {
			sets = append(sets, members)
		}
	}
	return sets, nil
}

func decode(data []byte, format Format, v any) error {
	switch format {
	case FormatJSON:
		return json.Unmarshal(jsonc.ToJSON(data), v)
	case FormatYAML:
		return yaml.Unmarshal(data, v)
	default:
		return fmt.Errorf("%w: format %d", ErrUnsupportedFormat, format)
	}
}
