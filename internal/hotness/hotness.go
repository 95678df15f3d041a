// Package hotness tracks how frequently regions are requested, binned
// by H3 cell.
package hotness

type Interface interface {
	Inc(cell string)
	Score(cell string) float64
	Reset(cells ...string)
}
