package policy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExceptionTable maps a manager identity to areas governed in addition to
// the manager's own area.
type ExceptionTable interface {
	ExtraAreas(identity string) []string
}

// StaticExceptionTable is an immutable ExceptionTable keyed by lower-cased
// email.
type StaticExceptionTable struct {
	entries map[string][]string
}

// NewStaticExceptionTable copies entries, normalizing identities.
func NewStaticExceptionTable(entries map[string][]string) *StaticExceptionTable {
	normalized := make(map[string][]string, len(entries))
	for identity, areas := range entries {
		key := normalizeIdentity(identity)
		if key == "" {
			continue
		}
		normalized[key] = append(normalized[key], areas...)
	}
	return &StaticExceptionTable{entries: normalized}
}

// ExtraAreas implements ExceptionTable.
func (t *StaticExceptionTable) ExtraAreas(identity string) []string {
	if t == nil {
		return nil
	}
	areas := t.entries[normalizeIdentity(identity)]
	if len(areas) == 0 {
		return nil
	}
	return append([]string(nil), areas...)
}

// Len reports the number of identities in the table.
func (t *StaticExceptionTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// ResolveAreas returns a copy of t with every area reference passed through
// resolve. It lets the policy file name areas by code.
func (t *StaticExceptionTable) ResolveAreas(resolve func(ref string) (string, error)) (*StaticExceptionTable, error) {
	if t == nil {
		return NewStaticExceptionTable(nil), nil
	}
	resolved := make(map[string][]string, len(t.entries))
	for identity, refs := range t.entries {
		for _, ref := range refs {
			id, err := resolve(ref)
			if err != nil {
				return nil, fmt.Errorf("policy file: area %q for %q: %w", ref, identity, err)
			}
			resolved[identity] = append(resolved[identity], id)
		}
	}
	return &StaticExceptionTable{entries: resolved}, nil
}

func normalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

type exceptionFile struct {
	ManagerExceptions map[string][]string `yaml:"manager_exceptions"`
}

// LoadExceptionFile reads a YAML policy file of the form
//
//	manager_exceptions:
//	  someone@example.com: [ELECTRICAL, BUILDING]
//
// An empty path yields an empty table.
func LoadExceptionFile(path string) (*StaticExceptionTable, error) {
	if path == "" {
		return NewStaticExceptionTable(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParseExceptions(data)
}

// ParseExceptions decodes the YAML policy document.
func ParseExceptions(data []byte) (*StaticExceptionTable, error) {
	var doc exceptionFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	for identity, areas := range doc.ManagerExceptions {
		for _, area := range areas {
			if strings.TrimSpace(area) == "" {
				return nil, fmt.Errorf("policy file: empty area id for %q", identity)
			}
		}
	}
	return NewStaticExceptionTable(doc.ManagerExceptions), nil
}
