package phone

import (
	"errors"
	"testing"
)

func TestNormalize_InternationalFormatting(t *testing.T) {
	got, err := Normalize("+7 916 123-45-67")
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if got != "+79161234567" {
		t.Fatalf("unexpected canonical form: %q", got)
	}
}

func TestNormalize_TrunkPrefixRewrite(t *testing.T) {
	got, err := Normalize("89161234567")
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if got != "+79161234567" {
		t.Fatalf("leading-8 rewrite: got %q, want %q", got, "+79161234567")
	}

	// 11 digits but leading 7: the rewrite branch must not fire.
	got, err = Normalize("79161234567")
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if got != "79161234567" {
		t.Fatalf("plain digits should pass through unchanged, got %q", got)
	}
}

func TestNormalize_PunctuationStripped(t *testing.T) {
	got, err := Normalize("8 (916) 123-45-67")
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if got != "+79161234567" {
		t.Fatalf("got %q", got)
	}

	// '+' not in leading position is discarded, not kept.
	got, err = Normalize("123+456")
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if got != "123456" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalize_Invalid(t *testing.T) {
	for _, raw := range []string{"", "abc", "+", "()- ", "+abc"} {
		if _, err := Normalize(raw); !errors.Is(err, ErrInvalidPhone) {
			t.Fatalf("Normalize(%q): want ErrInvalidPhone, got %v", raw, err)
		}
	}
}

func TestNormalize_IdempotentOnOutput(t *testing.T) {
	inputs := []string{"+7 916 123-45-67", "79161234567", "+1 (202) 555-0101", "89161234567"}
	for _, raw := range inputs {
		once, err := Normalize(raw)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", raw, err)
		}
		twice, err := Normalize(once)
		if err != nil {
			t.Fatalf("Normalize(%q) second pass: %v", once, err)
		}
		if twice != once {
			t.Fatalf("not stable: %q -> %q -> %q", raw, once, twice)
		}
	}
}
