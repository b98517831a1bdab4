// Package heatmap bins normalised click coordinates into a grid.
package heatmap

import (
	"errors"
	"math"
	"sort"
)

const (
	DefaultGridWidth  = 50
	DefaultGridHeight = 50
	MaxGridSize       = 500
)

var ErrRatioOutOfRange = errors.New("click ratio must be within [0,1]")

type Point struct {
	X float64
	Y float64
}

type Cell struct {
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Count     int64   `json:"count"`
	Intensity float64 `json:"intensity"`
}

func ValidRatio(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func ValidatePoint(p Point) error {
	if !ValidRatio(p.X) || !ValidRatio(p.Y) {
		return ErrRatioOutOfRange
	}
	return nil
}

// GridSize clamps a requested dimension, defaulting non-positive input.
func GridSize(n, def int) int {
	if n <= 0 {
		return def
	}
	if n > MaxGridSize {
		return MaxGridSize
	}
	return n
}

func cellIndex(ratio float64, size int) int {
	i := int(ratio * float64(size))
	if i >= size {
		i = size - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Grid counts points per cell and returns only non-empty cells, row-major,
// with intensity relative to the busiest cell.
func Grid(points []Point, width, height int) []Cell {
	width = GridSize(width, DefaultGridWidth)
	height = GridSize(height, DefaultGridHeight)
	counts := map[[2]int]int64{}
	var peak int64
	for _, p := range points {
		if ValidatePoint(p) != nil {
			continue
		}
		k := [2]int{cellIndex(p.X, width), cellIndex(p.Y, height)}
		counts[k]++
		if counts[k] > peak {
			peak = counts[k]
		}
	}
	out := make([]Cell, 0, len(counts))
	for k, c := range counts {
		out = append(out, Cell{X: k[0], Y: k[1], Count: c, Intensity: float64(c) / float64(peak)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}
