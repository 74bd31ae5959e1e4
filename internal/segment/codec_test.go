package segment

import (
	"reflect"
	"testing"

	"github.com/RoaringBitmap/roaring"
)

func TestEncodeDecodePostings_Empty(t *testing.T) {
	encoded := EncodePostings([]Posting{})
	decoded, err := DecodePostings(encoded, true)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("expected empty, got %d postings", len(decoded))
	}
}

func TestEncodeDecodePostings_DeltaEncoding(t *testing.T) {
	// Large gaps between docNums
	postings := []Posting{
		{DocNum: 1000, Frequency: 1, Positions: []uint64{0}},
		{DocNum: 1001, Frequency: 1, Positions: []uint64{0}},
		{DocNum: 2000, Frequency: 1, Positions: []uint64{0}},
	}
	decoded, err := DecodePostings(EncodePostings(postings), true)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if decoded[0].DocNum != 1000 || decoded[1].DocNum != 1001 || decoded[2].DocNum != 2000 {
		t.Errorf("docNums mismatch: got %d, %d, %d", decoded[0].DocNum, decoded[1].DocNum, decoded[2].DocNum)
	}
}

func TestEncodeDecodePostings_FrequencyAndPositions(t *testing.T) {
	postings := []Posting{
		{DocNum: 0, Frequency: 3, Positions: []uint64{0, 5, 10}},
		{DocNum: 7, Frequency: 1, Positions: []uint64{2}},
	}
	decoded, err := DecodePostings(EncodePostings(postings), true)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if !reflect.DeepEqual(decoded, postings) {
		t.Errorf("got %+v, want %+v", decoded, postings)
	}
}

func TestDecodePostings_WithoutPositions(t *testing.T) {
	postings := []Posting{
		{DocNum: 3, Frequency: 2, Positions: []uint64{1, 4}},
		{DocNum: 9, Frequency: 1, Positions: []uint64{0}},
	}
	decoded, err := DecodePostings(EncodePostings(postings), false)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(decoded))
	}
	for i, p := range decoded {
		if p.DocNum != postings[i].DocNum || p.Frequency != postings[i].Frequency {
			t.Errorf("posting %d: got %+v", i, p)
		}
		if p.Positions != nil {
			t.Errorf("posting %d: positions should not be decoded, got %v", i, p.Positions)
		}
	}
}

func TestPostingsCount(t *testing.T) {
	postings := []Posting{{DocNum: 1, Frequency: 1}, {DocNum: 2, Frequency: 1}, {DocNum: 4, Frequency: 1}}
	count, err := PostingsCount(EncodePostings(postings))
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if count != 3 {
		t.Errorf("count: got %d, want 3", count)
	}

	if _, err := PostingsCount(nil); err == nil {
		t.Error("expected error for empty data")
	}
}

func TestDecodePostings_Truncated(t *testing.T) {
	encoded := EncodePostings([]Posting{{DocNum: 300, Frequency: 2, Positions: []uint64{1, 200}}})
	if _, err := DecodePostings(encoded[:len(encoded)-1], true); err == nil {
		t.Error("expected error for truncated postings")
	}
}

func TestPrefixSuccessor(t *testing.T) {
	tests := []struct {
		in   []byte
		want []byte
	}{
		{[]byte("abc"), []byte("abd")},
		{[]byte{'a', 0xff}, []byte("b")},
		{[]byte{0xff, 0xff}, nil},
		{[]byte{}, nil},
	}
	for _, tt := range tests {
		got := PrefixSuccessor(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("PrefixSuccessor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func newTestBitmap(vals ...uint32) *roaring.Bitmap {
	bm := roaring.New()
	for _, v := range vals {
		bm.Add(v)
	}
	return bm
}
