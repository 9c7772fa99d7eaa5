package prompt

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		def   bool
		want  bool
	}{
		{"yes", "y\n", false, true},
		{"full word", "YES\n", false, true},
		{"no", "no\n", true, false},
		{"empty picks default", "\n", true, true},
		{"eof picks default", "", false, false},
		{"retry after garbage", "maybe\ny\n", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := New(strings.NewReader(tt.input), &out, true)
			got, err := p.Confirm("Run apt-get update?", tt.def)
			if err != nil {
				t.Fatalf("Confirm error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Confirm() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfirm_Hint(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("\n"), &out, true)
	if _, err := p.Confirm("Remove libfoo-dev?", false); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "Remove libfoo-dev? [y]es/[N]o: " {
		t.Errorf("prompt = %q", got)
	}
}

func TestChoose(t *testing.T) {
	options := []string{"yes", "no", "interactive"}
	tests := []struct {
		input string
		want  int
	}{
		{"i\n", 2},
		{"interactive\n", 2},
		{"1\n", 0},
		{"\n", 1},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		p := New(strings.NewReader(tt.input), &out, true)
		got, err := p.Choose("Remove them?", options, 1)
		if err != nil {
			t.Fatalf("Choose(%q) error: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("Choose(%q) = %d, want %d", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "[y]es/[N]o/[i]nteractive") {
			t.Errorf("prompt = %q", out.String())
		}
	}
}

func TestChoose_TooManyInvalid(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("x\nz\nq\ny\n"), &out, true)
	got, err := p.Choose("Remove them?", []string{"yes", "no"}, 1)
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
	if got != 1 {
		t.Errorf("Choose() = %d, want default 1", got)
	}
}

func TestNonInteractiveUsesDefault(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("y\n"), &out, false)
	if p.Interactive() {
		t.Fatal("expected non-interactive prompter")
	}
	got, err := p.Confirm("Remove?", false)
	if err != nil {
		t.Fatal(err)
	}
	if got {
		t.Error("non-interactive Confirm should return the default")
	}
	if out.Len() != 0 {
		t.Errorf("non-interactive prompter wrote %q", out.String())
	}
}

func TestChoose_BadDefault(t *testing.T) {
	p := New(strings.NewReader(""), &bytes.Buffer{}, true)
	if _, err := p.Choose("?", []string{"a"}, 3); err == nil {
		t.Error("expected error for out-of-range default")
	}
}

func TestChoose_EmptyOption(t *testing.T) {
	options := []string{"", "skip"}
	for input, want := range map[string]int{"s\n": 1, "1\n": 0, "2\n": 1} {
		p := New(strings.NewReader(input), &bytes.Buffer{}, true)
		got, err := p.Choose("?", options, 1)
		if err != nil {
			t.Fatalf("Choose(%q) error: %v", input, err)
		}
		if got != want {
			t.Errorf("Choose(%q) = %d, want %d", input, got, want)
		}
	}
}
