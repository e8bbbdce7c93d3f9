package search

import "sort"

// Group partitions a chunk batch by work, picking a representative chunk and
// collecting matched pasal identifiers per work. Pure and deterministic.
//
// Group keys keep first-seen order while partitioning; within a partition the
// first chunk carrying the maximal score wins. Output is ordered by best
// score descending, ties kept in original relative order.
func Group(chunks []Chunk) []GroupedResult {
	if len(chunks) == 0 {
		return []GroupedResult{}
	}

	order := make([]int64, 0)
	byWork := make(map[int64]*GroupedResult)
	seenPasal := make(map[int64]map[string]struct{})

	for _, chunk := range chunks {
		group, ok := byWork[chunk.WorkID]
		if !ok {
			group = &GroupedResult{
				WorkID:         chunk.WorkID,
				BestChunk:      chunk,
				BestScore:      chunk.Score,
				MatchingPasals: []string{},
			}
			byWork[chunk.WorkID] = group
			seenPasal[chunk.WorkID] = make(map[string]struct{})
			order = append(order, chunk.WorkID)
		} else if chunk.Score > group.BestScore {
			group.BestChunk = chunk
			group.BestScore = chunk.Score
		}

		group.TotalChunks++

		if pasal := chunk.Metadata["pasal"]; pasal != "" {
			if _, dup := seenPasal[chunk.WorkID][pasal]; !dup {
				seenPasal[chunk.WorkID][pasal] = struct{}{}
				group.MatchingPasals = append(group.MatchingPasals, pasal)
			}
		}
	}

	results := make([]GroupedResult, 0, len(order))
	for _, workID := range order {
		results = append(results, *byWork[workID])
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].BestScore > results[j].BestScore
	})
	return results
}
