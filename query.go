// query.go - Query: a fluent convenience builder that assembles an
// equivalent aggregation pipeline from Sort/Skip/Limit/Select calls and
// runs it through the same compiler and executor as Pipe. Apply
// (find-and-modify) has no equivalent: aggo documents are immutable once
// inserted, replaced only by a Remove+Insert pair, so there is no
// in-place update to apply.
package aggo

// Sort orders results by fields; a "-" prefix means descending.
func (q *Query) Sort(fields ...string) *Query {
	keys := make([]SortKey, 0, len(fields))
	for _, f := range fields {
		asc := true
		if len(f) > 0 && f[0] == '-' {
			asc = false
			f = f[1:]
		}
		keys = append(keys, SortKey{Field: f, Ascending: asc})
	}
	q.sortKeys = keys
	return q
}

// Limit caps the result count.
func (q *Query) Limit(n int) *Query {
	q.limitN = int64(n)
	q.hasLimit = true
	return q
}

// Skip discards the first n matching documents.
func (q *Query) Skip(n int) *Query {
	q.skipN = int64(n)
	q.hasSkip = true
	return q
}

// Select restricts the output to the given inclusion projection, keyed by
// field name with a truthy Value meaning "include".
func (q *Query) Select(fields map[string]bool) *Query {
	o := NewObject()
	for k, v := range fields {
		o.Set(k, Bool(v))
	}
	q.projection = ObjectValue(o)
	q.hasProj = true
	return q
}

func (q *Query) toPipeline() *PipelineHandle {
	var stages []Stage
	stages = append(stages, Stage{Kind: StageMatch, MatchExpr: q.filter})
	if len(q.sortKeys) > 0 {
		stages = append(stages, Stage{Kind: StageSort, SortKeys: q.sortKeys})
	}
	if q.hasSkip {
		stages = append(stages, Stage{Kind: StageSkip, N: q.skipN})
	}
	if q.hasLimit {
		stages = append(stages, Stage{Kind: StageLimit, N: q.limitN})
	}
	if q.hasProj {
		fields, _ := projectFieldsFromDoc(q.projection)
		stages = append(stages, Stage{Kind: StageProject, Fields: fields})
	}
	plan, err := CompilePlan(stages, q.coll.engine.cfg, q.coll.store.Count())
	if err != nil {
		return nil
	}
	return &PipelineHandle{coll: q.coll, plan: plan, stages: stages}
}

// projectFieldsFromDoc turns an inclusion-projection Value (as built by
// Select) into ProjectFields, reusing parseProjectLike's field-shorthand
// rules.
func projectFieldsFromDoc(doc Value) ([]ProjectField, bool) {
	st, err := parseProjectLike(doc, StageProject)
	if err != nil {
		return nil, false
	}
	return st.Fields, st.Inclusive
}

// All runs the query and returns every matching document.
func (q *Query) All() ([]Document, error) {
	h := q.toPipeline()
	if h == nil {
		return nil, NewEngineError(InvalidPipeline, "", "query: failed to compile")
	}
	return h.Run()
}

// One returns the first matching document, or ErrNotFound.
func (q *Query) One() (Document, error) {
	q.Limit(1)
	docs, err := q.All()
	if err != nil {
		return Document{}, err
	}
	if len(docs) == 0 {
		return Document{}, ErrNotFound
	}
	return docs[0], nil
}

// Count returns the number of matching documents, ignoring Skip/Limit.
func (q *Query) Count() (int, error) {
	h, err := q.coll.Pipe([]Value{matchStageValue(q.filter)})
	if err != nil {
		return 0, err
	}
	docs, err := h.Run()
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func matchStageValue(filter Value) Value {
	o := NewObject()
	o.Set("$match", filter)
	return ObjectValue(o)
}

// Iter returns an iterator over the query's results.
func (q *Query) Iter() *Iterator {
	docs, err := q.All()
	return &Iterator{docs: docs, err: err}
}
