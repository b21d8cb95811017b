package embedding

import (
	"testing"
)

func TestHashTokenizer_Tokenize(t *testing.T) {
	tok := &HashTokenizer{}
	ids, attn, types := tok.Tokenize("hello world", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths: ids=%d attn=%d types=%d", len(ids), len(attn), len(types))
	}
	if ids[0] != tokenCLS {
		t.Errorf("expected CLS %d, got %d", tokenCLS, ids[0])
	}
	if ids[3] != tokenSEP {
		t.Errorf("expected SEP at 3, got %d", ids[3])
	}
	for i := 0; i < 4; i++ {
		if attn[i] != 1 {
			t.Errorf("attention[%d] should be 1", i)
		}
	}
	for i := 4; i < 10; i++ {
		if attn[i] != 0 || ids[i] != 0 {
			t.Errorf("position %d should be padding", i)
		}
	}
	if ids[1] < 1000 || ids[1] >= vocabSpace {
		t.Errorf("word id out of range: %d", ids[1])
	}
}

func TestHashTokenizer_caseInsensitive(t *testing.T) {
	tok := &HashTokenizer{}
	a, _, _ := tok.Tokenize("Hello", 8)
	b, _, _ := tok.Tokenize("hello", 8)
	if a[1] != b[1] {
		t.Errorf("expected same id for Hello and hello, got %d and %d", a[1], b[1])
	}
}

func TestHashTokenizer_truncates(t *testing.T) {
	tok := &HashTokenizer{}
	ids, attn, _ := tok.Tokenize("a b c d e f g h i j k l", 5)
	if ids[4] != tokenSEP {
		t.Errorf("expected SEP in last slot, got %d", ids[4])
	}
	for i, v := range attn {
		if v != 1 {
			t.Errorf("attention[%d] = %d, want 1", i, v)
		}
	}
}

func TestHashTokenizer_defaultLength(t *testing.T) {
	tok := &HashTokenizer{}
	ids, _, _ := tok.Tokenize("x", 0)
	if len(ids) != 256 {
		t.Errorf("expected default 256 tokens, got %d", len(ids))
	}
}

func TestSplitWords(t *testing.T) {
	words := SplitWords("  a  b\tc\n ")
	if len(words) != 3 {
		t.Errorf("expected 3 words, got %v", words)
	}
	if SplitWords("") != nil {
		t.Error("empty string should return nil")
	}
	if SplitWords("   ") != nil {
		t.Error("blank string should return nil")
	}
}

func TestHashString(t *testing.T) {
	if HashString("abc") == 0 {
		t.Error("hash should be non-zero")
	}
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
	if HashString("abc") == HashString("abd") {
		t.Error("different inputs should hash differently")
	}
}
