package indexer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Dump is an API description: the classes with their members, and the enums
// with their items. A dump may be split over several files.
type Dump struct {
	Classes []Class `yaml:"classes"`
	Enums   []Enum  `yaml:"enums"`
}

type Class struct {
	Name           string   `yaml:"name"`
	Superclass     string   `yaml:"superclass"`
	MemoryCategory string   `yaml:"memory_category"`
	Tags           []string `yaml:"tags"`
	Removed        bool     `yaml:"removed"`
	Members        []Member `yaml:"members"`
}

// Member is a property, function, event or callback. Fields that do not
// apply to MemberType are ignored.
type Member struct {
	MemberType   string   `yaml:"member_type"`
	Name         string   `yaml:"name"`
	Tags         []string `yaml:"tags"`
	Removed      bool     `yaml:"removed"`
	ThreadSafety string   `yaml:"thread_safety"`
	Security     string   `yaml:"security"`

	ReadSecurity  string   `yaml:"read_security"`
	WriteSecurity string   `yaml:"write_security"`
	CanSave       bool     `yaml:"can_save"`
	CanLoad       bool     `yaml:"can_load"`
	Category      string   `yaml:"category"`
	Default       string   `yaml:"default"`
	ValueType     TypeDesc `yaml:"value_type"`

	Parameters []Parameter `yaml:"parameters"`
	ReturnType []TypeDesc  `yaml:"return_type"`
}

type TypeDesc struct {
	Category string `yaml:"category"`
	Name     string `yaml:"name"`
	Optional bool   `yaml:"optional"`
}

type Parameter struct {
	Name    string   `yaml:"name"`
	Type    TypeDesc `yaml:"type"`
	Default string   `yaml:"default"`
}

type Enum struct {
	Name    string     `yaml:"name"`
	Tags    []string   `yaml:"tags"`
	Removed bool       `yaml:"removed"`
	Items   []EnumItem `yaml:"items"`
}

type EnumItem struct {
	Name        string   `yaml:"name"`
	Value       int      `yaml:"value"`
	LegacyNames []string `yaml:"legacy_names"`
	Tags        []string `yaml:"tags"`
	Removed     bool     `yaml:"removed"`
}

// DecodeDump reads one YAML dump. Unknown keys are rejected so that typos in
// hand-written dumps do not silently drop data.
func DecodeDump(r io.Reader) (*Dump, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var d Dump
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return &d, nil
		}
		return nil, fmt.Errorf("decoding dump: %w", err)
	}
	return &d, nil
}

// ReadDumps reads the files at paths concurrently and merges them in the
// order given. A class or enum defined twice is an error.
func ReadDumps(ctx context.Context, paths []string) (*Dump, error) {
	dumps := make([]*Dump, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading dump %s: %w", path, err)
			}
			d, err := DecodeDump(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			dumps[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Merge(dumps...)
}

// Merge concatenates dumps.
func Merge(dumps ...*Dump) (*Dump, error) {
	out := &Dump{}
	classes := map[string]bool{}
	enums := map[string]bool{}
	for _, d := range dumps {
		for _, c := range d.Classes {
			if classes[c.Name] {
				return nil, fmt.Errorf("class %q is defined more than once", c.Name)
			}
			classes[c.Name] = true
			out.Classes = append(out.Classes, c)
		}
		for _, e := range d.Enums {
			if enums[e.Name] {
				return nil, fmt.Errorf("enum %q is defined more than once", e.Name)
			}
			enums[e.Name] = true
			out.Enums = append(out.Enums, e)
		}
	}
	return out, nil
}
