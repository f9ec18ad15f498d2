package grid

import "sort"

// findPeaks locates local maxima in x that are separated by at least
// distance samples and have a base width of at least width samples,
// approximating scipy.signal.find_peaks(distance=..., width=...) from
// original_source/simulator/simulator/grid.py. This is a deliberate
// re-architecture (see SPEC_FULL.md/DESIGN.md): no scipy-equivalent
// library exists in this ecosystem's common usage, so peak detection is
// reimplemented directly rather than taken as a dependency.
func findPeaks(x []float64, distance, width int) []int {
	candidates := localMaxima(x)
	candidates = filterByWidth(x, candidates, width)
	return filterByDistance(x, candidates, distance)
}

// localMaxima finds strict local maxima, treating flat plateaus as a single
// peak located at the plateau's midpoint.
func localMaxima(x []float64) []int {
	var peaks []int
	n := len(x)
	i := 1
	for i < n-1 {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < n-1 && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				peaks = append(peaks, (i+ahead-1)/2)
			}
			i = ahead
		} else {
			i++
		}
	}
	return peaks
}

// filterByWidth keeps only peaks whose span, measured at half their
// prominence above the higher of the two neighboring troughs, is at least
// width samples wide.
func filterByWidth(x []float64, peaks []int, width int) []int {
	var out []int
	for _, p := range peaks {
		leftMin := troughLeft(x, p)
		rightMin := troughRight(x, p)
		base := leftMin
		if rightMin > base {
			base = rightMin
		}
		halfHeight := x[p] - (x[p]-base)/2

		left := p
		for left > 0 && x[left-1] >= halfHeight {
			left--
		}
		right := p
		for right < len(x)-1 && x[right+1] >= halfHeight {
			right++
		}
		if right-left >= width {
			out = append(out, p)
		}
	}
	return out
}

func troughLeft(x []float64, p int) float64 {
	min := x[p]
	for i := p - 1; i >= 0; i-- {
		if x[i] > x[p] {
			break
		}
		if x[i] < min {
			min = x[i]
		}
	}
	return min
}

func troughRight(x []float64, p int) float64 {
	min := x[p]
	for i := p + 1; i < len(x); i++ {
		if x[i] > x[p] {
			break
		}
		if x[i] < min {
			min = x[i]
		}
	}
	return min
}

// filterByDistance greedily keeps the tallest peaks first, discarding any
// shorter peak within distance samples of one already kept.
func filterByDistance(x []float64, peaks []int, distance int) []int {
	order := append([]int(nil), peaks...)
	sort.SliceStable(order, func(i, j int) bool { return x[order[i]] > x[order[j]] })

	kept := make([]int, 0, len(order))
	for _, p := range order {
		tooClose := false
		for _, k := range kept {
			d := p - k
			if d < 0 {
				d = -d
			}
			if d < distance {
				tooClose = true
				break
			}
		}
		if !tooClose {
			kept = append(kept, p)
		}
	}

	sort.Ints(kept)
	return kept
}
