// aggregate.go - struct-decoding convenience methods layered on top of
// PipelineHandle.Run, for callers who would rather receive typed Go
// values than walk Documents by hand.

package aggo

// Iter runs the pipeline and returns an Iterator over its results.
func (p *PipelineHandle) Iter() (*Iterator, error) {
	docs, err := p.Run()
	if err != nil {
		return nil, err
	}
	return &Iterator{docs: docs}, nil
}

// All runs the pipeline and decodes every result document into dst, a
// pointer to a slice.
func (p *PipelineHandle) All(dst interface{}) error {
	docs, err := p.Run()
	if err != nil {
		return err
	}
	arr := make([]Value, len(docs))
	for i, d := range docs {
		arr[i] = d.Root()
	}
	return ValueToStruct(Array(arr...), dst)
}

// One runs the pipeline and decodes its first result document into dst,
// a pointer. It returns ErrNotFound if the pipeline produced no results.
func (p *PipelineHandle) One(dst interface{}) error {
	docs, err := p.Run()
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return ErrNotFound
	}
	return ValueToStruct(docs[0].Root(), dst)
}
