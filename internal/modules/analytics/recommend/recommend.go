// Package recommend implements user-based collaborative filtering over
// behaviour profiles plus a navigation next-page model.
package recommend

import (
	"math"
	"sort"

	"github.com/google/uuid"
)

const (
	DefaultNeighbors = 10
	tenantWeight     = 0.7
	userWeight       = 0.3
)

type Scored struct {
	Key   string  `json:"key"`
	Score float64 `json:"score"`
}

// Cosine similarity of two sparse non-negative vectors; 0 when either is
// empty or all-zero.
func Cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, na, nb float64
	for k, x := range a {
		na += x * x
		if y, ok := b[k]; ok {
			dot += x * y
		}
	}
	for _, y := range b {
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(0, math.Min(1, s))
}

type Profile struct {
	UserID  uuid.UUID
	Weights map[string]float64
}

type Neighbor struct {
	Profile
	Similarity float64
}

// Neighbors returns the k most similar other users with similarity > 0.
func Neighbors(target Profile, others []Profile, k int) []Neighbor {
	if k <= 0 {
		k = DefaultNeighbors
	}
	out := make([]Neighbor, 0, len(others))
	for _, p := range others {
		if p.UserID == target.UserID {
			continue
		}
		if sim := Cosine(target.Weights, p.Weights); sim > 0 {
			out = append(out, Neighbor{Profile: p, Similarity: sim})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].UserID.String() < out[j].UserID.String()
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// ContentScores scores items the target has not touched as the
// similarity-weighted mean of neighbour weights, normalised so the best
// item scores 1.
func ContentScores(target map[string]float64, neighbors []Neighbor, n int) []Scored {
	var simTotal float64
	acc := map[string]float64{}
	for _, nb := range neighbors {
		simTotal += nb.Similarity
		for item, w := range nb.Weights {
			if _, seen := target[item]; seen {
				continue
			}
			acc[item] += nb.Similarity * w
		}
	}
	if simTotal == 0 {
		return nil
	}
	for k := range acc {
		acc[k] /= simTotal
	}
	return topN(normalize(acc), n)
}

// Popular ranks items by total weight across all profiles, skipping items
// in exclude.
func Popular(profiles []Profile, exclude map[string]float64, n int) []Scored {
	acc := map[string]float64{}
	for _, p := range profiles {
		for item, w := range p.Weights {
			if _, seen := exclude[item]; seen {
				continue
			}
			acc[item] += w
		}
	}
	return topN(normalize(acc), n)
}

// Navigation blends the tenant-wide transition distribution out of from
// with the user's own page-view distribution.
func Navigation(transitions map[string]int64, userViews map[string]float64, from string, n int) []Scored {
	var tenantTotal float64
	for to, c := range transitions {
		if to != from && c > 0 {
			tenantTotal += float64(c)
		}
	}
	var userTotal float64
	for p, v := range userViews {
		if p != from && v > 0 {
			userTotal += v
		}
	}
	candidates := map[string]bool{}
	for to, c := range transitions {
		if to != from && c > 0 {
			candidates[to] = true
		}
	}
	if tenantTotal == 0 {
		for p, v := range userViews {
			if p != from && v > 0 {
				candidates[p] = true
			}
		}
	}
	scores := map[string]float64{}
	for to := range candidates {
		var pt, pu float64
		if tenantTotal > 0 {
			pt = float64(transitions[to]) / tenantTotal
		}
		if userTotal > 0 {
			pu = userViews[to] / userTotal
		}
		if s := tenantWeight*pt + userWeight*pu; s > 0 {
			scores[to] = s
		}
	}
	return topN(scores, n)
}

func normalize(m map[string]float64) map[string]float64 {
	var top float64
	for _, v := range m {
		if v > top {
			top = v
		}
	}
	out := make(map[string]float64, len(m))
	if top <= 0 {
		return out
	}
	for k, v := range m {
		if v > 0 {
			out[k] = v / top
		}
	}
	return out
}

func topN(m map[string]float64, n int) []Scored {
	out := make([]Scored, 0, len(m))
	for k, v := range m {
		out = append(out, Scored{Key: k, Score: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Key < out[j].Key
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
