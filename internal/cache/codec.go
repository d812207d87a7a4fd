package cache

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jward/tads3ls/internal/symbols"
)

// keywordPair serializes as a two-element JSON array: ["name", [ranges...]].
type keywordPair struct {
	Word   string
	Ranges []symbols.Range
}

func (p keywordPair) MarshalJSON() ([]byte, error) {
	ranges := p.Ranges
	if ranges == nil {
		ranges = []symbols.Range{}
	}
	return json.Marshal([]any{p.Word, ranges})
}

func (p *keywordPair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("keyword entry: expected 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Word); err != nil {
		return fmt.Errorf("keyword entry name: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Ranges); err != nil {
		return fmt.Errorf("keyword entry %q ranges: %w", p.Word, err)
	}
	return nil
}

// encodeKeywords flattens a keyword map into pairs ordered by keyword.
func encodeKeywords(kws map[string][]symbols.Range) ([]byte, error) {
	pairs := make([]keywordPair, 0, len(kws))
	for word, ranges := range kws {
		pairs = append(pairs, keywordPair{Word: word, Ranges: ranges})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Word < pairs[j].Word })
	return json.Marshal(pairs)
}

func decodeKeywords(data []byte) (map[string][]symbols.Range, error) {
	var pairs []keywordPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, err
	}
	kws := make(map[string][]symbols.Range, len(pairs))
	for _, p := range pairs {
		kws[p.Word] = p.Ranges
	}
	return kws, nil
}

func encodeSymbols(syms []symbols.Symbol) ([]byte, error) {
	if syms == nil {
		syms = []symbols.Symbol{}
	}
	return json.Marshal(syms)
}

func decodeSymbols(data []byte) ([]symbols.Symbol, error) {
	var syms []symbols.Symbol
	if err := json.Unmarshal(data, &syms); err != nil {
		return nil, err
	}
	if syms == nil {
		syms = []symbols.Symbol{}
	}
	return syms, nil
}
