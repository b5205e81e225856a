package parser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
)

// DescriptorSuffixes mark files holding pre-resolved unit descriptors.
var DescriptorSuffixes = []string{".units.json", ".units.yaml", ".units.yml"}

func IsDescriptorFile(path string) bool {
	for _, s := range DescriptorSuffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}

// LoadDescriptors reads a descriptor file. JSON and YAML are both accepted; the document is
// either a list of descriptors or an object with a "units" list.
func LoadDescriptors(path string) ([]domain.Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ds, err := DecodeDescriptors(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	for i := range ds {
		if ds[i].Source == "" {
			ds[i].Source = path
		}
	}
	return ds, nil
}

// DecodeDescriptors decodes descriptors from r.
func DecodeDescriptors(r io.Reader) ([]domain.Descriptor, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, err
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}

	var ds []domain.Descriptor
	switch root.Kind {
	case yaml.SequenceNode:
		err = root.Decode(&ds)
	case yaml.MappingNode:
		var wrapped struct {
			Units []domain.Descriptor `yaml:"units"`
		}
		err = root.Decode(&wrapped)
		ds = wrapped.Units
	default:
		err = fmt.Errorf("expected a list of units or an object with \"units\"")
	}
	return ds, err
}
