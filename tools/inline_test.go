package tools

import (
	"strings"
	"testing"
)

func TestInline(t *testing.T) {
	input := `
I like %inline("tacos"), and
I also like %inline("queso").
Both are delicious.
`
	want := `
I like TACOS, and
I also like QUESO.
Both are delicious.
`

	find := func(name string) ([]byte, error) {
		return []byte(strings.ToUpper(name)), nil
	}

	got, err := Inline([]byte(input), find)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != want {
		t.Fatalf("got %s", got)
	}
}

func TestInlineNone(t *testing.T) {
	input := "no directives here"
	got, err := Inline([]byte(input), func(string) ([]byte, error) {
		t.Fatal("should not be called")
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != input {
		t.Fatalf("got %s", got)
	}
}
