package icsdoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotObject is returned when JSON input is not an object where a document
// is expected.
var ErrNotObject = errors.New("icsdoc: expected a JSON object")

// MarshalJSON encodes d as a JSON object with keys in insertion order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeDocument(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalIndent encodes d like MarshalJSON, indented by two spaces.
func MarshalIndent(d *Document) ([]byte, error) {
	raw, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func writeDocument(buf *bytes.Buffer, d *Document) error {
	buf.WriteByte('{')
	for i, e := range d.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, e.Key); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeValue(buf, e.Value); err != nil {
			return fmt.Errorf("encoding %s: %w", e.Key, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeValue(buf *bytes.Buffer, v Value) error {
	switch v := v.(type) {
	case Scalar:
		return writeString(buf, string(v))
	case ParamList:
		buf.WriteByte('[')
		for i, params := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('{')
			for j, p := range params {
				if j > 0 {
					buf.WriteByte(',')
				}
				if err := writeString(buf, p.Name); err != nil {
					return err
				}
				buf.WriteByte(':')
				if err := writeString(buf, p.Value); err != nil {
					return err
				}
			}
			buf.WriteByte('}')
		}
		buf.WriteByte(']')
	case Sections:
		buf.WriteByte('[')
		for i, sub := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeDocument(buf, sub); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("icsdoc: unsupported value %T", v)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}

// UnmarshalJSON decodes a JSON object into d using DefaultGrammar to tell
// parameter lists from section arrays.
func (d *Document) UnmarshalJSON(data []byte) error {
	doc, err := DecodeJSON(data, DefaultGrammar())
	if err != nil {
		return err
	}
	*d = *doc
	return nil
}

// DecodeOption configures DecodeJSON.
type DecodeOption func(*decoder)

// WithDecodeReporter forwards decoding diagnostics to r.
func WithDecodeReporter(r Reporter) DecodeOption {
	return func(d *decoder) { d.sink.reporter = r }
}

// DecodeJSON decodes a JSON object into a Document, preserving key order.
//
// An array is read as Sections when its key is a component name in g or any
// element holds a nested value or nothing at all. An array of flat objects
// under a known property name is read as a ParamList. Any other flat array is
// also read as a ParamList, but an ambiguous diagnostic is raised since it may
// have been a section. Numbers and booleans keep their literal text, null
// becomes an empty scalar, and a bare object becomes a single-element
// Sections.
func DecodeJSON(data []byte, g *Grammar, opts ...DecodeOption) (*Document, error) {
	if g == nil {
		g = DefaultGrammar()
	}
	d := &decoder{grammar: g, sink: &diagSink{}}
	for _, opt := range opts {
		opt(d)
	}
	return d.object("", data)
}

type decoder struct {
	grammar *Grammar
	sink    *diagSink
}

func (d *decoder) object(path string, data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrNotObject
	}

	doc := NewDocument()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("icsdoc: unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", key, err)
		}
		v, err := d.value(joinPath(path, key), key, raw)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", key, err)
		}
		doc.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *decoder) value(path, key string, raw json.RawMessage) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Scalar(""), nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return Scalar(s), nil
	case '{':
		sub, err := d.object(path, raw)
		if err != nil {
			return nil, err
		}
		return Sections{sub}, nil
	case '[':
		return d.array(path, key, raw)
	case 'n':
		return Scalar(""), nil
	default:
		return Scalar(raw), nil
	}
}

func (d *decoder) array(path, key string, raw json.RawMessage) (Value, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, err
	}
	subs := make(Sections, 0, len(elems))
	flat := !d.grammar.IsComponent(key)
	for i, elem := range elems {
		sub, err := d.object(path, elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		if sub.Len() == 0 || !allScalars(sub) {
			flat = false
		}
		subs = append(subs, sub)
	}
	if !flat || len(subs) == 0 {
		return subs, nil
	}
	if !d.grammar.IsProperty(key) {
		d.sink.add(DiagAmbiguous, 0, path, "%s is neither a known component nor a known property; read as parameter lists", key)
	}

	list := make(ParamList, len(subs))
	for i, sub := range subs {
		params := make(Params, 0, sub.Len())
		for _, e := range sub.Entries() {
			params = append(params, Param{Name: e.Key, Value: string(e.Value.(Scalar))})
		}
		list[i] = params
	}
	return list, nil
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func allScalars(d *Document) bool {
	for _, e := range d.Entries() {
		if e.Value.Kind() != KindScalar {
			return false
		}
	}
	return true
}
