package extraction

import "sort"

// overlapRatio returns the overlap of two spans as a fraction of the
// shorter span. Zero-length spans never overlap.
func overlapRatio(aStart, aEnd, bStart, bEnd int) float64 {
	lo := aStart
	if bStart > lo {
		lo = bStart
	}
	hi := aEnd
	if bEnd < hi {
		hi = bEnd
	}
	if hi <= lo {
		return 0
	}
	shorter := aEnd - aStart
	if bEnd-bStart < shorter {
		shorter = bEnd - bStart
	}
	if shorter <= 0 {
		return 0
	}
	return float64(hi-lo) / float64(shorter)
}

// sameClause reports whether two absolute-offset extractions describe the
// same clause: matching class and offset ranges overlapping by more than
// half of the shorter span.
func sameClause(a, b RawExtraction) bool {
	return a.Class == b.Class && overlapRatio(a.Start, a.End, b.Start, b.End) > 0.5
}

// mergeExtractions deduplicates extractions detected across overlapping
// windows. Duplicates keep the span of the most confident constituent,
// take the maximum confidence (corroboration must not dilute a strong
// match) and union their attributes.
func mergeExtractions(raws []RawExtraction) []RawExtraction {
	sortExtractions(raws)

	merged := make([]RawExtraction, 0, len(raws))
	for _, raw := range raws {
		matched := false
		for i := range merged {
			if !sameClause(merged[i], raw) {
				continue
			}
			merged[i] = mergePair(merged[i], raw)
			matched = true
			break
		}
		if !matched {
			merged = append(merged, cloneExtraction(raw))
		}
	}

	sortExtractions(merged)
	return merged
}

// mergePair combines two duplicates of the same clause.
func mergePair(a, b RawExtraction) RawExtraction {
	winner, loser := a, b
	if b.Confidence > a.Confidence {
		winner, loser = b, a
	}
	out := cloneExtraction(winner)
	if loser.Confidence > out.Confidence {
		out.Confidence = loser.Confidence
	}
	for k, v := range loser.Attributes {
		if cur, ok := out.Attributes[k]; ok && k == keyTermsAttribute {
			out.Attributes[k] = cur + ", " + v
			continue
		}
		if _, ok := out.Attributes[k]; !ok {
			out.Attributes[k] = v
		}
	}
	return out
}

func cloneExtraction(raw RawExtraction) RawExtraction {
	out := raw
	out.Attributes = make(map[string]string, len(raw.Attributes))
	for k, v := range raw.Attributes {
		out.Attributes[k] = v
	}
	return out
}

// sortExtractions establishes a deterministic total order: offset start
// ascending, then longer span first, then class, then text.
func sortExtractions(raws []RawExtraction) {
	sort.SliceStable(raws, func(i, j int) bool {
		if raws[i].Start != raws[j].Start {
			return raws[i].Start < raws[j].Start
		}
		if raws[i].End != raws[j].End {
			return raws[i].End > raws[j].End
		}
		if raws[i].Class != raws[j].Class {
			return raws[i].Class < raws[j].Class
		}
		return raws[i].Text < raws[j].Text
	})
}
