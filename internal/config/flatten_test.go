package config

import (
	"testing"
)

func TestFlatten_Nested(t *testing.T) {
	m := map[string]any{
		"api": map[string]any{
			"base_url": "http://ledger:8080",
		},
		"generate": map[string]any{
			"batch_size":      9.0,
			"send_block_hash": true,
		},
		"log_level": "info",
	}
	got := Flatten(m)
	if got["api.base_url"] != "http://ledger:8080" {
		t.Errorf("expected api.base_url=http://ledger:8080, got %v", got["api.base_url"])
	}
	if got["generate.batch_size"] != 9.0 {
		t.Errorf("expected generate.batch_size=9, got %v", got["generate.batch_size"])
	}
	if got["generate.send_block_hash"] != true {
		t.Errorf("expected generate.send_block_hash=true, got %v", got["generate.send_block_hash"])
	}
	if len(got) != 4 {
		t.Errorf("expected 4 keys, got %d", len(got))
	}
}

func TestFlatten_EmptyNestedMap(t *testing.T) {
	got := Flatten(map[string]any{"a": map[string]any{}})
	if len(got) != 0 {
		t.Errorf("expected 0 keys (empty nested map produces nothing), got %d", len(got))
	}
}

func TestUnflatten_DeeplyNested(t *testing.T) {
	got := Unflatten(map[string]any{"a.b.c": "deep"})
	a, ok := got["a"].(map[string]any)
	if !ok {
		t.Fatalf("expected a to be map, got %T", got["a"])
	}
	b, ok := a["b"].(map[string]any)
	if !ok {
		t.Fatalf("expected a.b to be map, got %T", a["b"])
	}
	if b["c"] != "deep" {
		t.Errorf("expected a.b.c=deep, got %v", b["c"])
	}
}

func TestUnflatten_ScalarReplacedByMap(t *testing.T) {
	got := Unflatten(map[string]any{"preview": "x", "preview.addr": ":9000"})
	// Map iteration order decides which write lands last; either way the
	// result must be well formed.
	switch v := got["preview"].(type) {
	case string:
	case map[string]any:
		if v["addr"] != ":9000" {
			t.Errorf("expected preview.addr=:9000, got %v", v["addr"])
		}
	default:
		t.Fatalf("unexpected type %T", v)
	}
}

func TestRoundTrip_FlattenUnflatten(t *testing.T) {
	original := map[string]any{
		"data_dir":  "/home/test/.pixledger",
		"log_level": "debug",
		"api": map[string]any{
			"base_url": "http://127.0.0.1:8080",
		},
		"generator": map[string]any{
			"base_url": "http://127.0.0.1:5000",
		},
		"preview": map[string]any{
			"addr": "127.0.0.1:8090",
		},
	}

	restored := Unflatten(Flatten(original))

	if restored["data_dir"] != original["data_dir"] {
		t.Errorf("data_dir mismatch: %v != %v", restored["data_dir"], original["data_dir"])
	}
	for _, section := range []string{"api", "generator", "preview"} {
		got, ok := restored[section].(map[string]any)
		if !ok {
			t.Fatalf("%s: expected map, got %T", section, restored[section])
		}
		want := original[section].(map[string]any)
		for k, v := range want {
			if got[k] != v {
				t.Errorf("%s.%s mismatch: %v != %v", section, k, got[k], v)
			}
		}
	}
}
