package catalog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

var (
	ErrDuplicate = errors.New("duplicate platform id")
	ErrInvalidID = errors.New("invalid platform id")
)

// Load reads the ordered platform list at name. Text files hold one ID per
// line ("#" starts a comment); .yaml/.yml files hold a sequence or a
// "platforms" sequence.
func Load(fsys fs.FS, name string) ([]string, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", name, err)
	}
	var ids []string
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		ids, err = parseYAML(data)
	default:
		ids, err = parseText(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", name, err)
	}
	if err := validate(ids); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", name, err)
	}
	return ids, nil
}

func parseText(data []byte) ([]string, error) {
	var ids []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ids = append(ids, line)
	}
	return ids, sc.Err()
}

type yamlCatalog struct {
	Platforms []string `yaml:"platforms"`
}

func parseYAML(data []byte) ([]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var ids []string
		if err := root.Decode(&ids); err != nil {
			return nil, err
		}
		return trimAll(ids), nil
	case yaml.MappingNode:
		var c yamlCatalog
		if err := root.Decode(&c); err != nil {
			return nil, err
		}
		return trimAll(c.Platforms), nil
	default:
		return nil, fmt.Errorf("expected a sequence or a mapping with a platforms key")
	}
}

func trimAll(ids []string) []string {
	for i := range ids {
		ids[i] = strings.TrimSpace(ids[i])
	}
	return ids
}

func validate(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" || strings.ContainsAny(id, "/\\") || strings.IndexFunc(id, unicode.IsSpace) >= 0 {
			return fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicate, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
