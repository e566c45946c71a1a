package trie

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/devchain-eth/devchain/rlp"
)

func hashHex(h [32]byte) string { return hex.EncodeToString(h[:]) }

func TestEmptyTrieRoot(t *testing.T) {
	got := New().Hash()
	want := "56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421"
	if hashHex(got) != want {
		t.Errorf("empty root = %s, want %s", hashHex(got), want)
	}
}

func TestKnownRoots(t *testing.T) {
	tests := []struct {
		name  string
		pairs [][2]string
		want  string
	}{
		{
			name:  "single entry",
			pairs: [][2]string{{"A", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}},
			want:  "d23786fb4a010da3ce639d66d5e904a11dbc02746d1ce25029e53290cabf28ab",
		},
		{
			name: "branching keys",
			pairs: [][2]string{
				{"do", "verb"},
				{"dog", "puppy"},
				{"doge", "coin"},
				{"horse", "stallion"},
			},
			want: "5991bb8c6514148a29db676a14ac506cd2cd5775ace63c30a4fe457715e9ac84",
		},
		{
			name: "overwrite",
			pairs: [][2]string{
				{"abc", "123"},
				{"abcd", "abcd"},
				{"abc", "abc"},
			},
			want: "7a320748f780ad9ad5b0837302075ce0eeba6c26e3d8562c67ccc0f1b273298a",
		},
	}
	for _, tt := range tests {
		tr := New()
		for _, p := range tt.pairs {
			if err := tr.Put([]byte(p[0]), []byte(p[1])); err != nil {
				t.Fatalf("%s: put %q: %v", tt.name, p[0], err)
			}
		}
		if got := hashHex(tr.Hash()); got != tt.want {
			t.Errorf("%s: root = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestGetAfterPut(t *testing.T) {
	tr := New()
	pairs := map[string]string{
		"do":    "verb",
		"dog":   "puppy",
		"doge":  "coin",
		"horse": "stallion",
	}
	for k, v := range pairs {
		if err := tr.Put([]byte(k), []byte(v)); err != nil {
			t.Fatalf("put %q: %v", k, err)
		}
	}
	for k, v := range pairs {
		got, err := tr.Get([]byte(k))
		if err != nil {
			t.Errorf("get %q: %v", k, err)
			continue
		}
		if !bytes.Equal(got, []byte(v)) {
			t.Errorf("get %q = %q, want %q", k, got, v)
		}
	}
	if _, err := tr.Get([]byte("cat")); !errors.Is(err, ErrNotFound) {
		t.Errorf("get missing key err = %v, want ErrNotFound", err)
	}
}

func TestDeleteRestoresRoot(t *testing.T) {
	tr := New()
	tr.Put([]byte("do"), []byte("verb"))
	tr.Put([]byte("dog"), []byte("puppy"))
	before := tr.Hash()

	tr.Put([]byte("doge"), []byte("coin"))
	tr.Put([]byte("doge"), nil)
	if after := tr.Hash(); after != before {
		t.Errorf("root after insert+delete = %s, want %s", hashHex(after), hashHex(before))
	}
}

type byteList [][]byte

func (l byteList) Len() int                        { return len(l) }
func (l byteList) EncodeIndex(i int) ([]byte, error) { return l[i], nil }

func TestDeriveRootEmpty(t *testing.T) {
	if got := DeriveRoot(byteList{}); got != EmptyRoot {
		t.Errorf("empty list root = %s", hashHex(got))
	}
}

func TestDeriveRootMatchesManualTrie(t *testing.T) {
	items := byteList{
		[]byte("first"),
		[]byte("second"),
		[]byte("third"),
	}
	want := New()
	for i, item := range items {
		key, _ := rlp.EncodeToBytes(uint64(i))
		want.Put(key, item)
	}
	if got := DeriveRoot(items); got != want.Hash() {
		t.Errorf("derived root = %s, want %s", hashHex(got), hashHex(want.Hash()))
	}
}

func TestSecureRootSkipsEmptyValues(t *testing.T) {
	withEmpty := SecureRoot([]KeyValuePair{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: nil},
	})
	without := SecureRoot([]KeyValuePair{
		{Key: []byte("a"), Value: []byte("1")},
	})
	if withEmpty != without {
		t.Errorf("empty values must not contribute to the root")
	}
	if SecureRoot(nil) != EmptyRoot {
		t.Errorf("nil pairs must hash to the empty root")
	}
}
