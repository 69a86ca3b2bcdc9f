package aggo_test

import (
	"testing"

	"github.com/globalsign/aggo"
)

func TestDocIDHexRoundTrip(t *testing.T) {
	id := aggo.NewDocID()
	hex := id.Hex()
	parsed := aggo.DocIDHex(hex)
	AssertEqual(t, hex, parsed.Hex(), "DocID hex round trip mismatch")
}

func TestDocIDHexPanicsOnInvalid(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected DocIDHex to panic on an invalid hex string")
		}
	}()
	aggo.DocIDHex("invalid-hex")
}

func TestDocIDUnique(t *testing.T) {
	a := aggo.NewDocID()
	b := aggo.NewDocID()
	if a.Hex() == b.Hex() {
		t.Fatalf("expected two generated DocIDs to differ, got %s twice", a.Hex())
	}
}

func TestDocIDInQueries(t *testing.T) {
	engine := aggo.NewEngine(aggo.DefaultConfig())
	coll := engine.C("refs")

	userID1 := aggo.NewDocID().Hex()
	userID2 := aggo.NewDocID().Hex()

	insert := func(userID, groupID, kind string) {
		o := aggo.NewObject()
		o.Set("userId", aggo.String(userID))
		o.Set("groupId", aggo.String(groupID))
		o.Set("type", aggo.String(kind))
		coll.Insert(aggo.NewDocument(o))
	}
	insert(userID1, userID2, "A")
	insert(userID2, userID1, "B")
	insert(userID1, userID1, "C")

	eq := aggo.NewObject()
	eq.Set("userId", aggo.String(userID1))
	count, err := coll.Find(aggo.ObjectValue(eq)).Count()
	AssertNoError(t, err, "count by userId")
	AssertEqual(t, 2, count, "expected 2 documents with userID1")

	in := aggo.NewObject()
	inOp := aggo.NewObject()
	inOp.Set("$in", aggo.Array(aggo.String(userID1), aggo.String(userID2)))
	in.Set("userId", aggo.ObjectValue(inOp))
	count, err = coll.Find(aggo.ObjectValue(in)).Count()
	AssertNoError(t, err, "count with $in")
	AssertEqual(t, 3, count, "expected all 3 documents to match $in")

	orA := aggo.NewObject()
	orA.Set("userId", aggo.String(userID1))
	orB := aggo.NewObject()
	orB.Set("groupId", aggo.String(userID1))
	or := aggo.NewObject()
	or.Set("$or", aggo.Array(aggo.ObjectValue(orA), aggo.ObjectValue(orB)))
	count, err = coll.Find(aggo.ObjectValue(or)).Count()
	AssertNoError(t, err, "count with $or")
	AssertEqual(t, 3, count, "expected 3 documents to match $or")
}
