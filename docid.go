// docid.go - DocID: a compact, sortable, auto-generated primary-key value
// for documents ingested without one (time-derived prefix + per-process
// counter), stored as a plain 12-byte identifier Value.

package aggo

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

// DocID is a 12-byte identifier: a 4-byte seconds-since-epoch timestamp, a
// 5-byte random machine/process salt (generated once per process), and a
// 3-byte monotonic counter, mirroring the well-known ObjectId layout.
type DocID [12]byte

var (
	docIDSalt    [5]byte
	docIDCounter uint32
)

func init() {
	_, _ = rand.Read(docIDSalt[:])
	var seed [4]byte
	_, _ = rand.Read(seed[:])
	docIDCounter = binary.BigEndian.Uint32(seed[:])
}

// NewDocID generates a fresh, process-unique DocID.
func NewDocID() DocID {
	var id DocID
	binary.BigEndian.PutUint32(id[0:4], uint32(time.Now().Unix()))
	copy(id[4:9], docIDSalt[:])
	c := atomic.AddUint32(&docIDCounter, 1)
	id[9] = byte(c >> 16)
	id[10] = byte(c >> 8)
	id[11] = byte(c)
	return id
}

// Hex returns the lowercase 24-character hex encoding of id.
func (id DocID) Hex() string { return hex.EncodeToString(id[:]) }

// String implements fmt.Stringer.
func (id DocID) String() string { return id.Hex() }

// DocIDHex parses a 24-character hex string into a DocID, panicking on a
// malformed string, since a hard-coded literal hex string is the
// overwhelmingly common caller.
func DocIDHex(s string) DocID {
	id, ok := parseDocIDHex(s)
	if !ok {
		panic(fmt.Sprintf("aggo: invalid DocID hex string: %q", s))
	}
	return id
}

// IsDocIDHex reports whether s is a well-formed 24-character DocID hex
// string.
func IsDocIDHex(s string) bool {
	_, ok := parseDocIDHex(s)
	return ok
}

func parseDocIDHex(s string) (DocID, bool) {
	var id DocID
	if len(s) != 24 {
		return id, false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, false
	}
	copy(id[:], b)
	return id, true
}

// docIDValue converts a DocID to the Value used to store it as a document
// field (its hex string; Value has no dedicated binary-id kind).
func docIDValue(id DocID) Value { return String(id.Hex()) }

// ensurePrimaryKey returns doc unchanged if it already has a non-missing
// pkField, otherwise returns a copy with a fresh DocID assigned.
func ensurePrimaryKey(doc Document, pkField string) Document {
	if !doc.PrimaryKey(pkField).IsMissing() {
		return doc
	}
	return doc.WithField(pkField, docIDValue(NewDocID()))
}
