package segment

import (
	"github.com/RoaringBitmap/roaring"

	"harshagw/suggester/internal/analysis"
)

// IDField is the special field name used to store document IDs for lookup.
const IDField = "_id"

// Builder accumulates documents before flushing to an immutable segment.
type Builder struct {
	Fields   map[string]map[string][]Posting // field -> term -> postings
	Docs     []map[string]any                // stored documents
	DocIDs   []string                        // external IDs by docNum
	Deleted  *roaring.Bitmap                 // deleted docNums
	numDocs  uint64
	analyzer analysis.Analyzer
}

// NewBuilder creates a new segment builder.
func NewBuilder(analyzer analysis.Analyzer) *Builder {
	return &Builder{
		Fields:   make(map[string]map[string][]Posting),
		Docs:     make([]map[string]any, 0),
		DocIDs:   make([]string, 0),
		Deleted:  roaring.New(),
		analyzer: analyzer,
	}
}

// Add adds a document to the builder and returns its docNum.
// Only string values are indexed; every value is stored.
func (b *Builder) Add(externalID string, doc map[string]any) uint64 {
	docNum := b.numDocs
	b.numDocs++

	b.Docs = append(b.Docs, doc)
	b.DocIDs = append(b.DocIDs, externalID)

	b.addPostings(IDField, externalID, Posting{DocNum: docNum, Frequency: 1, Positions: []uint64{0}})

	for fieldName, value := range doc {
		text, ok := value.(string)
		if !ok || fieldName == IDField {
			continue
		}

		termPositions := make(map[string][]uint64)
		for _, tp := range b.analyzer.Analyze(text) {
			termPositions[tp.Token] = append(termPositions[tp.Token], tp.Position)
		}

		for term, positions := range termPositions {
			b.addPostings(fieldName, term, Posting{
				DocNum:    docNum,
				Frequency: uint64(len(positions)),
				Positions: positions,
			})
		}
	}

	return docNum
}

func (b *Builder) addPostings(field, term string, p Posting) {
	terms := b.Fields[field]
	if terms == nil {
		terms = make(map[string][]Posting)
		b.Fields[field] = terms
	}
	terms[term] = append(terms[term], p)
}

// Delete marks a document as deleted. Returns true if found.
func (b *Builder) Delete(externalID string) bool {
	for i, id := range b.DocIDs {
		if id == externalID && !b.Deleted.Contains(uint32(i)) {
			b.Deleted.Add(uint32(i))
			return true
		}
	}
	return false
}

// IsDeleted checks if a docNum is deleted.
func (b *Builder) IsDeleted(docNum uint64) bool {
	return b.Deleted.Contains(uint32(docNum))
}

// NumDocs returns the number of non-deleted documents in the builder.
func (b *Builder) NumDocs() uint64 {
	return b.numDocs - b.Deleted.GetCardinality()
}

// TotalDocs returns the total number of documents (including deleted) for persistence.
func (b *Builder) TotalDocs() uint64 {
	return b.numDocs
}
