// document.go - the Document type: an immutable top-level object. The
// primary-key field name is held by the Store, not the Document.
// Documents are immutable after ingest; updates are modeled as a remove
// paired with an add.

package aggo

// Document is an immutable object-shaped Value. It does not record a
// primary-key field name; the Store keeps that (see Store.PKField,
// defaulting to "_id") and passes it to PrimaryKey.
type Document struct {
	root *Object
}

// NewDocument wraps o as a Document. o is not copied; callers must not
// mutate it afterwards, since Document is defined to be immutable.
func NewDocument(o *Object) Document {
	if o == nil {
		o = NewObject()
	}
	return Document{root: o}
}

// DocumentFromGo builds a Document from a plain Go map/struct-shaped value
// via FromGo.
func DocumentFromGo(in interface{}) Document {
	v := FromGo(in)
	if v.Kind() != KindObject {
		o := NewObject()
		o.Set("value", v)
		return Document{root: o}
	}
	return Document{root: v.AsObject()}
}

// Root returns the document's top-level object as a Value.
func (d Document) Root() Value { return ObjectValue(d.root) }

// Object returns the document's backing Object.
func (d Document) Object() *Object { return d.root }

// Get resolves a top-level field. Dotted-path and array-index access used
// by expression field paths is handled by resolvePath in expr.go, which
// calls into this for the first segment.
func (d Document) Get(key string) Value { return d.root.Get(key) }

// PrimaryKey returns the value of the given primary-key field, or Missing
// if absent.
func (d Document) PrimaryKey(field string) Value { return d.root.Get(field) }

// WithField returns a new Document with key set to v, leaving the
// receiver untouched (Documents are immutable).
func (d Document) WithField(key string, v Value) Document {
	clone := d.root.Clone()
	clone.Set(key, v)
	return Document{root: clone}
}

// WithoutField returns a new Document with key removed.
func (d Document) WithoutField(key string) Document {
	clone := d.root.Clone()
	clone.Delete(key)
	return Document{root: clone}
}
