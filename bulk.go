// bulk.go - Bulk: an ordered or unordered batch of insert/remove
// mutations against one Store, run atomically-per-call and reporting
// per-operation failures through a BulkError. There is no in-place
// update: a replace is expressed as a remove paired with an insert (see
// query.go).
//
// Ordered mode stops at the first failing operation, matching
// mongo's bulk-write semantics; unordered mode runs every operation and
// aggregates every failure.
package aggo

// BulkResult summarizes a completed Bulk.Run call.
type BulkResult struct {
	Inserted int
	Removed  int
}

// Unordered switches the batch to unordered mode.
func (b *Bulk) Unordered() *Bulk {
	b.ordered = false
	return b
}

// Insert queues docs for insertion.
func (b *Bulk) Insert(docs ...Document) *Bulk {
	for _, d := range docs {
		b.inserts = append(b.inserts, d)
		b.opcount++
	}
	return b
}

// Remove queues primary keys for removal; each is resolved against the
// store at Run time, not at queue time, so a key inserted earlier in the
// same batch can be removed by a later op.
func (b *Bulk) Remove(pks ...Value) *Bulk {
	b.removePKs = append(b.removePKs, pks...)
	b.opcount += len(pks)
	return b
}

// Run executes every queued operation against the collection's Store,
// insertions first (in queue order), then removals.
func (b *Bulk) Run() (*BulkResult, error) {
	result := &BulkResult{}
	var cases []BulkErrorCase

	for i, doc := range b.inserts {
		func() {
			defer func() {
				if r := recover(); r != nil {
					cases = append(cases, BulkErrorCase{Index: i, Err: NewEngineError(RuntimeFailure, "", "insert panicked: %v", r)})
				}
			}()
			b.coll.store.Insert(doc)
			result.Inserted++
		}()
		if b.ordered && len(cases) > 0 {
			return result, newBulkError(cases)
		}
	}

	base := len(b.inserts)
	for i, pk := range b.removePKs {
		if _, ok := b.coll.store.RemoveByPK(pk); ok {
			result.Removed++
		} else {
			cases = append(cases, BulkErrorCase{Index: base + i, Err: ErrNotFound})
			if b.ordered {
				return result, newBulkError(cases)
			}
		}
	}

	return result, newBulkError(cases)
}
