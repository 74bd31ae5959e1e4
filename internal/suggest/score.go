package suggest

import (
	"math"
	"math/bits"

	"github.com/RoaringBitmap/roaring"

	"harshagw/suggester/internal/search"
	"harshagw/suggester/internal/segment"
)

// DefaultPopularityMultiplier weighs one recorded search of a term. It is
// far above any document frequency a suggestion sees, so a searched term
// outranks every unsearched term with an equal or higher raw score.
const DefaultPopularityMultiplier = 1000

// AdjustScore returns raw + count*multiplier, saturating at the maximum
// uint64.
func AdjustScore(raw, count, multiplier uint64) uint64 {
	hi, boost := bits.Mul64(count, multiplier)
	if hi != 0 {
		return math.MaxUint64
	}
	sum, carry := bits.Add64(raw, boost, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

// filteredDocFreq counts the postings whose document is in docs.
func filteredDocFreq(it segment.PostingsIterator, docs *roaring.Bitmap) uint64 {
	var score uint64
	for it.Next() {
		if docs.Contains(uint32(it.DocNum())) {
			score++
		}
	}
	return score
}

// phraseOverlap counts occurrences of the term, in documents of docs, that
// fall on a position the phrase validated. The iterator must carry
// positions.
func phraseOverlap(it segment.PostingsIterator, docs *roaring.Bitmap, positions search.Positions) uint64 {
	var score uint64
	for it.Next() {
		doc := uint32(it.DocNum())
		if !docs.Contains(doc) {
			continue
		}
		valid := positions.At(doc)
		if valid == nil {
			continue
		}
		for _, pos := range it.Positions() {
			if valid.Contains(uint32(pos)) {
				score++
			}
		}
	}
	return score
}

// scoreTerm scores the iterator's current term. Without a match context the
// score is the term's document frequency. A constraint containing a phrase
// scores by phrase overlap, and scores 0 when no phrase positions were
// reachable. Any other constraint scores by filtered document frequency.
func scoreTerm(terms segment.TermIterator, mc *matchContext, phrase bool) (uint64, error) {
	if mc == nil {
		return terms.DocFreq()
	}
	if mc.docs.IsEmpty() || (phrase && !mc.hasPhrase) {
		return 0, nil
	}

	it, err := terms.Postings(phrase)
	if err != nil {
		return 0, err
	}
	if phrase {
		return phraseOverlap(it, mc.docs, mc.positions), nil
	}
	return filteredDocFreq(it, mc.docs), nil
}
