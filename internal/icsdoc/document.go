package icsdoc

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindScalar Kind = iota
	KindParams
	KindSections
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindParams:
		return "params"
	case KindSections:
		return "sections"
	default:
		return "unknown"
	}
}

// Value is the closed set of things a Document slot can hold: Scalar,
// ParamList or Sections.
type Value interface {
	Kind() Kind
	isValue()
}

// Scalar is a plain property value.
type Scalar string

// ParamList collects every parameterized occurrence of one property.
type ParamList []Params

// Sections collects every occurrence of one BEGIN/END section name.
type Sections []*Document

func (Scalar) Kind() Kind    { return KindScalar }
func (ParamList) Kind() Kind { return KindParams }
func (Sections) Kind() Kind  { return KindSections }

func (Scalar) isValue()    {}
func (ParamList) isValue() {}
func (Sections) isValue()  {}

// Param is a single NAME=VALUE segment of a property line.
type Param struct {
	Name  string
	Value string
}

// Params is the ordered parameter set of one property line.
type Params []Param

// Get returns the value of the first parameter called name.
func (p Params) Get(name string) (string, bool) {
	for _, param := range p {
		if param.Name == name {
			return param.Value, true
		}
	}
	return "", false
}

// Entry is one key/value pair of a Document.
type Entry struct {
	Key   string
	Value Value
}

// Document is an ordered mapping from property or section name to Value.
// The zero value is an empty document ready to use.
type Document struct {
	entries []Entry
	index   map[string]int
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{}
}

// Len returns the number of keys.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// Entries returns the entries in insertion order. The slice must not be
// modified.
func (d *Document) Entries() []Entry {
	if d == nil {
		return nil
	}
	return d.entries
}

// Keys returns the keys in insertion order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, d.Len())
	for _, e := range d.Entries() {
		keys = append(keys, e.Key)
	}
	return keys
}

// Get returns the value stored under key.
func (d *Document) Get(key string) (Value, bool) {
	if d == nil || d.index == nil {
		return nil, false
	}
	i, ok := d.index[key]
	if !ok {
		return nil, false
	}
	return d.entries[i].Value, true
}

// Scalar returns the scalar stored under key, if key holds one.
func (d *Document) Scalar(key string) (string, bool) {
	v, ok := d.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(Scalar)
	return string(s), ok
}

// Params returns the parameter list stored under key, if key holds one.
func (d *Document) Params(key string) (ParamList, bool) {
	v, ok := d.Get(key)
	if !ok {
		return nil, false
	}
	p, ok := v.(ParamList)
	return p, ok
}

// Sections returns the sub-documents stored under key, if key holds them.
func (d *Document) Sections(key string) (Sections, bool) {
	v, ok := d.Get(key)
	if !ok {
		return nil, false
	}
	s, ok := v.(Sections)
	return s, ok
}

// Set stores v under key. An existing key keeps its position.
func (d *Document) Set(key string, v Value) {
	if d.index == nil {
		d.index = make(map[string]int)
	}
	if i, ok := d.index[key]; ok {
		d.entries[i].Value = v
		return
	}
	d.index[key] = len(d.entries)
	d.entries = append(d.entries, Entry{Key: key, Value: v})
}

// SetScalar is shorthand for Set(key, Scalar(value)).
func (d *Document) SetScalar(key, value string) {
	d.Set(key, Scalar(value))
}

// AppendParams appends one parameter set under key. It reports false when
// key held a value of another kind, which is replaced.
func (d *Document) AppendParams(key string, p Params) bool {
	existing, ok := d.Get(key)
	if !ok {
		d.Set(key, ParamList{p})
		return true
	}
	if list, isList := existing.(ParamList); isList {
		d.Set(key, append(list, p))
		return true
	}
	d.Set(key, ParamList{p})
	return false
}

// AppendSection appends one sub-document under key. It reports false when
// key held a value of another kind, which is replaced.
func (d *Document) AppendSection(key string, sub *Document) bool {
	existing, ok := d.Get(key)
	if !ok {
		d.Set(key, Sections{sub})
		return true
	}
	if list, isList := existing.(Sections); isList {
		d.Set(key, append(list, sub))
		return true
	}
	d.Set(key, Sections{sub})
	return false
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	out := NewDocument()
	for _, e := range d.Entries() {
		switch v := e.Value.(type) {
		case Scalar:
			out.Set(e.Key, v)
		case ParamList:
			list := make(ParamList, len(v))
			for i, p := range v {
				list[i] = append(Params(nil), p...)
			}
			out.Set(e.Key, list)
		case Sections:
			subs := make(Sections, len(v))
			for i, sub := range v {
				subs[i] = sub.Clone()
			}
			out.Set(e.Key, subs)
		}
	}
	return out
}

// Equal reports whether d and other hold the same entries in the same order.
func (d *Document) Equal(other *Document) bool {
	if d.Len() != other.Len() {
		return false
	}
	a, b := d.Entries(), other.Entries()
	for i := range a {
		if a[i].Key != b[i].Key || !valuesEqual(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b Value) bool {
	switch av := a.(type) {
	case Scalar:
		bv, ok := b.(Scalar)
		return ok && av == bv
	case ParamList:
		bv, ok := b.(ParamList)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if len(av[i]) != len(bv[i]) {
				return false
			}
			for j := range av[i] {
				if av[i][j] != bv[i][j] {
					return false
				}
			}
		}
		return true
	case Sections:
		bv, ok := b.(Sections)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !av[i].Equal(bv[i]) {
				return false
			}
		}
		return true
	}
	return false
}
