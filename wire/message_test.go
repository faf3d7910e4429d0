package wire

import (
	"bytes"
	"testing"

	"cardtable/security"
)

func TestSealAndParseEnvelope(t *testing.T) {
	session, err := security.NewSession()
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	params, err := session.Params()
	if err != nil {
		t.Fatalf("failed to export params: %v", err)
	}

	env, err := Seal(Play{Intent: IntentPlay, TableID: "t1", Card: "Sp-A"}, session.Sign)
	if err != nil {
		t.Fatalf("failed to seal: %v", err)
	}
	frame, err := env.Frame()
	if err != nil {
		t.Fatalf("failed to frame: %v", err)
	}

	framer := NewFramer(bytes.NewReader(frame))
	raw, err := framer.Next()
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	parsed, err := ParseEnvelope(raw)
	if err != nil {
		t.Fatalf("failed to parse envelope: %v", err)
	}
	if err := security.VerifySessionSignature(parsed.Message, parsed.Signature, params.PubKey); err != nil {
		t.Fatalf("signature does not cover the message bytes: %v", err)
	}

	msg, err := DecodeRequest(parsed.Message)
	if err != nil {
		t.Fatalf("failed to decode request: %v", err)
	}
	play, ok := msg.(*Play)
	if !ok {
		t.Fatalf("decoded wrong type %T", msg)
	}
	if play.Card != "Sp-A" || play.TableID != "t1" {
		t.Fatalf("decoded wrong fields: %+v", play)
	}
}

func TestSealUnsigned(t *testing.T) {
	env, err := Seal(GetTableList{Intent: IntentGetTableList}, nil)
	if err != nil {
		t.Fatalf("failed to seal: %v", err)
	}
	if len(env.Signature) != 0 {
		t.Fatal("unsigned envelope carries a signature")
	}
}

func TestDecodeRequestUnknownIntent(t *testing.T) {
	if _, err := DecodeRequest([]byte(`{"intent":"shuffle_everything"}`)); err == nil {
		t.Fatal("expected unknown intent to be rejected")
	}
	if _, err := DecodeRequest([]byte(`{"no_intent":true}`)); err == nil {
		t.Fatal("expected missing intent to be rejected")
	}
}

func TestPassingDataMergeKeepsExisting(t *testing.T) {
	mine := NewPassingData()
	mine.Commits["0"] = security.Commit([]byte("mine"))
	mine.DeckKeys["0"] = DeckKey{Key: []byte("key0"), IV: []byte("iv0")}

	theirs := NewPassingData()
	theirs.Commits["0"] = security.Commit([]byte("theirs"))
	theirs.Commits["1"] = security.Commit([]byte("one"))
	theirs.DeckKeys["1"] = DeckKey{Key: []byte("key1"), IV: []byte("iv1")}

	mine.Merge(theirs)
	if len(mine.Commits) != 2 || len(mine.DeckKeys) != 2 {
		t.Fatalf("merge did not fold new entries: %d commits, %d keys", len(mine.Commits), len(mine.DeckKeys))
	}
	if !mine.Commits["0"].Verify([]byte("mine")) {
		t.Fatal("merge overwrote an existing commitment")
	}
	if string(mine.DeckKeys["0"].Key) != "key0" {
		t.Fatal("merge overwrote an existing deck key")
	}
}
