package codec

import (
	"testing"
	"time"
)

type sample struct {
	Name  string
	When  time.Time
	Items map[string]int
}

func TestCodecs(t *testing.T) {
	codecs := []ICodec{NewJSONCodec(), NewGOBCodec()}

	in := sample{
		Name:  "Air Max 90",
		When:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Items: map[string]int{"a": 1, "b": 2},
	}

	for _, c := range codecs {
		t.Run(c.Name(), func(t *testing.T) {
			b, err := c.Marshal(in)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}

			var out sample
			if err := c.Unmarshal(b, &out); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if out.Name != in.Name || !out.When.Equal(in.When) || out.Items["b"] != 2 {
				t.Errorf("round trip mismatch: got %+v", out)
			}

			if err := c.Unmarshal([]byte("\x00garbage"), &out); err == nil {
				t.Errorf("expected error for garbage input")
			}
		})
	}
}

func TestByName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"json", "json", false},
		{"", "json", false},
		{"gob", "gob", false},
		{"binary", "", true},
	}

	for _, tt := range tests {
		c, err := ByName(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ByName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if err == nil && c.Name() != tt.want {
			t.Errorf("ByName(%q) = %s, want %s", tt.name, c.Name(), tt.want)
		}
	}
}
