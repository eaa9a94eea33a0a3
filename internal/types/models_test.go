// internal/types/models_test.go
package types

import (
	"encoding/json"
	"testing"
)

func TestModelRefForms(t *testing.T) {
	ref := ModelRef{Owner: "alice", Name: "cats"}
	if ref.String() != "alice/cats" {
		t.Errorf("expected alice/cats, got %s", ref.String())
	}
	if ref.Path() != "/generate/alice/cats" {
		t.Errorf("expected /generate/alice/cats, got %s", ref.Path())
	}
	if ref.BlockHash() != "/alice/cats" {
		t.Errorf("expected /alice/cats, got %s", ref.BlockHash())
	}
}

func TestBlockNullTransactions(t *testing.T) {
	raw := `{"index":0,"timestamp":"2024-01-02T03:04:05Z","transactions":null,"prev_hash":"","hash":"h0","proof":"p"}`

	var b Block
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		t.Fatal(err)
	}
	if b.Transactions != nil {
		t.Errorf("expected nil transactions, got %v", b.Transactions)
	}
	if b.Hash != "h0" || b.Timestamp.Year() != 2024 {
		t.Errorf("unexpected block: %+v", b)
	}
}

func TestCheckResultWithoutMatches(t *testing.T) {
	var r CheckResult
	if err := json.Unmarshal([]byte(`{"trained":false}`), &r); err != nil {
		t.Fatal(err)
	}
	if r.Trained || len(r.Matches) != 0 {
		t.Errorf("unexpected result: %+v", r)
	}
}
