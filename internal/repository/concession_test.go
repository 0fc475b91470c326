package repository

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDecodeApplicability(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		includes map[string]bool
		all      bool
		wantErr  bool
	}{
		{name: "null column", raw: "", all: true, includes: map[string]bool{"tuition": true}},
		{name: "json null", raw: "null", all: true, includes: map[string]bool{"x": true}},
		{name: "explicit list", raw: `["tuition","transport"]`, includes: map[string]bool{"tuition": true, "transport": true, "library": false}},
		{name: "empty list", raw: `[]`, includes: map[string]bool{"tuition": false}},
		{name: "not a list", raw: `{"a":1}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw []byte
			if tt.raw != "" {
				raw = []byte(tt.raw)
			}
			got, err := decodeApplicability(raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.IsAll() != tt.all {
				t.Fatalf("expected all=%v", tt.all)
			}
			for id, want := range tt.includes {
				if got.Includes(id) != want {
					t.Errorf("Includes(%s): expected %v", id, want)
				}
			}
		})
	}
}

func TestDecodeTermAmounts(t *testing.T) {
	got, err := decodeTermAmounts([]byte(`{"term1":"1500.50","term2":2000}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got["term1"].Equal(decimal.RequireFromString("1500.50")) || !got["term2"].Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("unexpected amounts %v", got)
	}

	none, err := decodeTermAmounts(nil)
	if err != nil || none != nil {
		t.Fatalf("expected nil map for NULL; got %v (%v)", none, err)
	}
}
