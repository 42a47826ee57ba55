package catalogue

import "slices"

// TopN is the length of the ranked country and credit lists
const TopN = 10

// Count is a ranked name with its number of occurrences
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats summarises the catalogue for one media type
type Stats struct {
	TotalWatched   int     `json:"totalWatched"`
	TotalCountries int     `json:"totalCountries"`
	TotalDirectors int     `json:"totalDirectors"`
	TopCountries   []Count `json:"topCountries"`
	TopDirectors   []Count `json:"topDirectors"`
}

// CreditsIncomplete reports whether fewer than half the items carry a director or
// creator, which usually means enrichment has not caught up yet
func (s Stats) CreditsIncomplete() bool {
	if s.TotalWatched == 0 {
		return false
	}
	return float64(s.TotalDirectors)/float64(s.TotalWatched) < 0.5
}

// Aggregate counts items of type t and ranks their countries and directors
// (creators for tv). Ties keep first-seen order.
func Aggregate(items []Item, t MediaType) Stats {
	countries := newTally()
	people := newTally()
	watched := 0

	for i := range items {
		item := &items[i]
		if item.ResolvedType() != t {
			continue
		}
		watched++

		if item.ProductionCountries != nil {
			for _, c := range item.ProductionCountries {
				if c.Name != "" {
					countries.add(c.Name)
				}
			}
		} else {
			for _, code := range item.OriginCountry {
				countries.add(code)
			}
		}

		if t == MediaTypeMovie {
			people.add(item.Director)
		} else {
			people.add(item.Creator)
		}
	}

	return Stats{
		TotalWatched:   watched,
		TotalCountries: countries.distinct(),
		TotalDirectors: people.distinct(),
		TopCountries:   countries.top(TopN),
		TopDirectors:   people.top(TopN),
	}
}

// tally counts names while remembering the order they were first seen in
type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(name string) {
	if name == "" {
		return
	}
	if _, seen := t.counts[name]; !seen {
		t.order = append(t.order, name)
	}
	t.counts[name]++
}

func (t *tally) distinct() int {
	return len(t.order)
}

func (t *tally) top(n int) []Count {
	ranked := make([]Count, 0, len(t.order))
	for _, name := range t.order {
		ranked = append(ranked, Count{Name: name, Count: t.counts[name]})
	}
	slices.SortStableFunc(ranked, func(a, b Count) int {
		return b.Count - a.Count
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
