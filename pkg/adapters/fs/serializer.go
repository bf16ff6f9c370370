package fs

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/fieldbook/pkg/core"
)

// document is the on-disk form of a row.
type document struct {
	ID     string      `json:"id" yaml:"id"`
	Owner  string      `json:"owner" yaml:"owner"`
	Synced bool        `json:"synced" yaml:"synced"`
	Seq    int64       `json:"seq" yaml:"seq"`
	Fields core.Fields `json:"fields" yaml:"fields"`
}

func documentFromRow(r core.Row) document {
	return document{ID: r.ID, Owner: r.Owner, Synced: r.Synced, Seq: r.Seq, Fields: r.Fields}
}

func (d document) row() core.Row {
	fields := d.Fields
	if fields == nil {
		fields = core.Fields{}
	}
	return core.Row{ID: d.ID, Owner: d.Owner, Synced: d.Synced, Seq: d.Seq, Fields: fields}
}

// Serializer defines how to read and write a specific file format.
type Serializer interface {
	Decode(data []byte) (document, error)
	Encode(doc document) ([]byte, error)
}

// Formats maps a format name to its file extension.
var Formats = map[string]string{
	"json": ".json",
	"yaml": ".yaml",
}

// DefaultSerializers returns the standard set of serializers by extension.
func DefaultSerializers(strict bool) map[string]Serializer {
	return map[string]Serializer{
		".json": NewJSONSerializer(strict),
		".yaml": NewYAMLSerializer(),
		".yml":  NewYAMLSerializer(),
	}
}

// --- JSON Serializer ---

// JSONSerializer handles reading and writing JSON records.
type JSONSerializer struct {
	// Strict decodes numbers as json.Number to avoid precision loss.
	Strict bool
}

// NewJSONSerializer creates a new JSON serializer.
func NewJSONSerializer(strict bool) *JSONSerializer {
	return &JSONSerializer{Strict: strict}
}

func (s *JSONSerializer) Decode(data []byte) (document, error) {
	var doc document
	decoder := json.NewDecoder(bytes.NewReader(data))
	if s.Strict {
		decoder.UseNumber()
	}
	if err := decoder.Decode(&doc); err != nil {
		return document{}, fmt.Errorf("invalid json: %w", err)
	}
	return doc, nil
}

func (s *JSONSerializer) Encode(doc document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// --- YAML Serializer ---

// YAMLSerializer handles reading and writing YAML records.
type YAMLSerializer struct{}

// NewYAMLSerializer creates a new YAML serializer.
func NewYAMLSerializer() *YAMLSerializer {
	return &YAMLSerializer{}
}

// yamlDocument decodes fields as a plain map; yaml.v3 reuses the target map
// type for nested mappings.
type yamlDocument struct {
	ID     string         `yaml:"id"`
	Owner  string         `yaml:"owner"`
	Synced bool           `yaml:"synced"`
	Seq    int64          `yaml:"seq"`
	Fields map[string]any `yaml:"fields"`
}

func (s *YAMLSerializer) Decode(data []byte) (document, error) {
	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("invalid yaml: %w", err)
	}
	return document{ID: doc.ID, Owner: doc.Owner, Synced: doc.Synced, Seq: doc.Seq, Fields: doc.Fields}, nil
}

func (s *YAMLSerializer) Encode(doc document) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
