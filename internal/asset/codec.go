package asset

// codec.go converts records to and from their YAML file form.
//
// The file body is a two-level mapping: category → field → scalar. Text
// values are always written double-quoted so that readers never turn a
// serial number like 0012 into an integer; flags are written as plain YAML
// booleans; absent values are written as the quoted literal "MISSING".
//
// Decoding only accepts mappings, sequences, and plain scalar types. Custom
// tags, anchors, and aliases are rejected so a hostile or corrupted file
// cannot make the parser build anything but data.

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Encode renders the record body. Hostname and Domain are not part of the
// body; they belong in the file name.
func Encode(rec Record) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	for _, cat := range Categories {
		catNode := &yaml.Node{Kind: yaml.MappingNode}
		for _, spec := range Fields(cat) {
			catNode.Content = append(catNode.Content,
				keyNode(spec.Key.Name),
				valueNode(rec.Get(spec.Key)),
			)
		}
		root.Content = append(root.Content, keyNode(string(cat)), catNode)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return buf.Bytes(), nil
}

func keyNode(name string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}
}

// valueNode is the formatting directive for one leaf.
func valueNode(v Value) *yaml.Node {
	switch v.Kind() {
	case KindFlag:
		b, _ := v.Flag()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(b)}
	case KindText:
		s, _ := v.Text()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.DoubleQuotedStyle, Value: s}
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.DoubleQuotedStyle, Value: Missing}
	}
}

// Decode parses a record body. Categories or fields missing from the file
// decode as Absent; unknown keys are ignored. Hostname and Domain are left
// empty. All parse failures match ErrMalformedRecord.
func Decode(data []byte) (Record, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return Record{}, fmt.Errorf("%w: empty document", ErrMalformedRecord)
	}
	if err := checkSafe(&doc); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return Record{}, fmt.Errorf("%w: document root is not a mapping", ErrMalformedRecord)
	}

	var rec Record
	for i := 0; i+1 < len(root.Content); i += 2 {
		cat := Category(root.Content[i].Value)
		if len(Fields(cat)) == 0 {
			continue
		}
		body := root.Content[i+1]
		if body.ShortTag() == "!!null" {
			continue
		}
		if body.Kind != yaml.MappingNode {
			return Record{}, fmt.Errorf("%w: category %q is not a mapping", ErrMalformedRecord, cat)
		}
		for j := 0; j+1 < len(body.Content); j += 2 {
			key := FieldKey{cat, body.Content[j].Value}
			spec, ok := LookupField(key)
			if !ok {
				continue
			}
			v, err := decodeValue(spec, body.Content[j+1])
			if err != nil {
				return Record{}, fmt.Errorf("%w: %s: %v", ErrMalformedRecord, key, err)
			}
			rec.Set(key, v)
		}
	}
	return rec, nil
}

func decodeValue(spec FieldSpec, n *yaml.Node) (Value, error) {
	if n.Kind != yaml.ScalarNode {
		return Value{}, errors.New("expected a scalar value")
	}

	tag := n.ShortTag()
	if tag == "!!null" || (tag == "!!str" && n.Value == Missing) {
		return Absent(), nil
	}

	if spec.Kind == KindFlag {
		if tag != "!!bool" {
			return Value{}, fmt.Errorf("expected a boolean, got %s %q", tag, n.Value)
		}
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, err
		}
		return Flag(b), nil
	}

	// Hand-edited files may carry unquoted numbers or dates; keep their
	// literal text. A boolean in a text field is a type mismatch.
	if tag == "!!bool" {
		return Value{}, fmt.Errorf("expected text, got boolean %q", n.Value)
	}
	return Text(n.Value), nil
}

var safeTags = map[string]bool{
	"!!str":       true,
	"!!bool":      true,
	"!!int":       true,
	"!!float":     true,
	"!!null":      true,
	"!!timestamp": true,
	"!!map":       true,
	"!!seq":       true,
}

// checkSafe rejects aliases, anchors, and any tag outside the core schema.
func checkSafe(n *yaml.Node) error {
	switch n.Kind {
	case yaml.AliasNode:
		return fmt.Errorf("line %d: aliases are not allowed", n.Line)
	case yaml.DocumentNode:
	default:
		if n.Anchor != "" {
			return fmt.Errorf("line %d: anchors are not allowed", n.Line)
		}
		if tag := n.ShortTag(); !safeTags[tag] {
			return fmt.Errorf("line %d: tag %s is not allowed", n.Line, tag)
		}
	}
	for _, c := range n.Content {
		if err := checkSafe(c); err != nil {
			return err
		}
	}
	return nil
}
