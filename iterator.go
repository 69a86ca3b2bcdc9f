// iterator.go - Iterator: walks a materialized result set one document
// at a time. aggo's query/pipeline results are already fully
// materialized before an Iterator is handed back, so this is a plain
// in-memory slice walk rather than a streaming cursor.
package aggo

// Next advances the iterator and reports whether a document is available.
func (it *Iterator) Next() (Document, bool) {
	if it.err != nil || it.pos >= len(it.docs) {
		return Document{}, false
	}
	d := it.docs[it.pos]
	it.pos++
	return d, true
}

// Err returns the first error encountered, if any.
func (it *Iterator) Err() error { return it.err }

// Close releases the iterator's backing slice. An Iterator over an
// in-memory result set holds no external resource, so Close only clears
// references and returns any error recorded during iteration.
func (it *Iterator) Close() error {
	it.docs = nil
	return it.err
}

// All drains every remaining document.
func (it *Iterator) All() ([]Document, error) {
	if it.err != nil {
		return nil, it.err
	}
	rest := it.docs[it.pos:]
	it.pos = len(it.docs)
	return rest, nil
}
