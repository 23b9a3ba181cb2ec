package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/radarmon/internal/monitor"
)

// Braille character rendering for high-resolution terminal graphs.
//
// Braille patterns use a 2x4 dot matrix per character:
//
//	  Col 0  Col 1
//	Row 0:   ⠁      ⠈     (dots 1, 4)
//	Row 1:   ⠂      ⠐     (dots 2, 5)
//	Row 2:   ⠄      ⠠     (dots 3, 6)
//	Row 3:   ⡀      ⢀     (dots 7, 8)
//
// Unicode braille starts at U+2800 (empty) and uses bit patterns:
// bit 0 = dot 1, bit 1 = dot 2, bit 2 = dot 3, bit 3 = dot 4,
// bit 4 = dot 5, bit 5 = dot 6, bit 6 = dot 7, bit 7 = dot 8

const brailleBase = '⠀'

// sparklineBlocks are block characters for 8-level vertical resolution (lowest to highest).
var sparklineBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// brailleDots maps row/column to the bit offset for braille pattern
// [row][col] where row is 0-3 (top to bottom) and col is 0-1 (left to right)
var brailleDots = [4][2]uint8{
	{0, 3}, // Row 0: dots 1 and 4
	{1, 4}, // Row 1: dots 2 and 5
	{2, 5}, // Row 2: dots 3 and 6
	{6, 7}, // Row 3: dots 7 and 8
}

// findMinMax returns the minimum and maximum values in a slice.
func findMinMax(data []float64) (minVal, maxVal float64) {
	if len(data) == 0 {
		return 0, 0
	}
	minVal, maxVal = data[0], data[0]
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	return minVal, maxVal
}

// normalizeValue converts a value to 0-1 range given min/max bounds.
func normalizeValue(val, minVal, maxVal float64) float64 {
	if maxVal > minVal {
		return (val - minVal) / (maxVal - minVal)
	}
	return 0.5
}

// clampInt clamps an integer to a range [0, maxVal].
func clampInt(val, maxVal int) int {
	if val < 0 {
		return 0
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// ChartSeries is one source's line on the chart.
type ChartSeries struct {
	Color lipgloss.Color
	// Segments are runs of consecutive present readings. Lines are drawn
	// within a segment, never across the gap between two.
	Segments [][]monitor.Point
}

// SeriesSegments splits a series into drawable runs, breaking wherever the
// sensor reported no presence.
func SeriesSegments(s monitor.Series, start func(r monitor.Reading) float64) [][]monitor.Point {
	var segments [][]monitor.Point
	var current []monitor.Point
	for _, r := range s.Readings {
		if !r.Presence {
			if len(current) > 0 {
				segments = append(segments, current)
				current = nil
			}
			continue
		}
		current = append(current, monitor.Point{Offset: start(r), Distance: r.Distance})
	}
	if len(current) > 0 {
		segments = append(segments, current)
	}
	return segments
}

// brailleCanvas is a dot grid where each cell remembers which series drew it last.
type brailleCanvas struct {
	width, height int // in characters
	cells         [][]rune
	owner         [][]int
}

func newBrailleCanvas(width, height int) *brailleCanvas {
	c := &brailleCanvas{width: width, height: height}
	c.cells = make([][]rune, height)
	c.owner = make([][]int, height)
	for i := range c.cells {
		c.cells[i] = make([]rune, width)
		c.owner[i] = make([]int, width)
		for j := range c.cells[i] {
			c.cells[i][j] = brailleBase
			c.owner[i][j] = -1
		}
	}
	return c
}

// set lights dot (x, y), where (0, 0) is the top-left dot.
func (c *brailleCanvas) set(x, y, series int) {
	if x < 0 || y < 0 || x >= c.width*2 || y >= c.height*4 {
		return
	}
	row, col := y/4, x/2
	c.cells[row][col] |= rune(1 << brailleDots[y%4][x%2])
	c.owner[row][col] = series
}

// line draws between two dots with Bresenham's algorithm.
func (c *brailleCanvas) line(x0, y0, x1, y1, series int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		c.set(x0, y0, series)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// RenderBrailleChart plots every series onto a width x height character
// grid. xAxis and yAxis give the data range mapped onto the grid; points
// outside it are clipped. Returns one string per row, top first.
func RenderBrailleChart(series []ChartSeries, xAxis, yAxis monitor.Axis, width, height int) []string {
	if width <= 0 || height <= 0 {
		return nil
	}

	canvas := newBrailleCanvas(width, height)
	dotsX, dotsY := width*2, height*4

	toDot := func(p monitor.Point) (int, int, bool) {
		if p.Offset < xAxis.Min || p.Offset > xAxis.Max || p.Distance < yAxis.Min || p.Distance > yAxis.Max {
			return 0, 0, false
		}
		x := clampInt(int(normalizeValue(p.Offset, xAxis.Min, xAxis.Max)*float64(dotsX-1)+0.5), dotsX-1)
		y := clampInt(int(normalizeValue(p.Distance, yAxis.Min, yAxis.Max)*float64(dotsY-1)+0.5), dotsY-1)
		return x, dotsY - 1 - y, true
	}

	for idx, s := range series {
		for _, seg := range s.Segments {
			px, py, havePrev := 0, 0, false
			for _, p := range seg {
				x, y, ok := toDot(p)
				if !ok {
					havePrev = false
					continue
				}
				if havePrev {
					canvas.line(px, py, x, y, idx)
				} else {
					canvas.set(x, y, idx)
				}
				px, py, havePrev = x, y, true
			}
		}
	}

	lines := make([]string, height)
	for r := 0; r < height; r++ {
		var b strings.Builder
		for col := 0; col < width; col++ {
			ch := string(canvas.cells[r][col])
			if owner := canvas.owner[r][col]; owner >= 0 {
				b.WriteString(lipgloss.NewStyle().Foreground(series[owner].Color).Render(ch))
			} else {
				b.WriteString(ch)
			}
		}
		lines[r] = b.String()
	}
	return lines
}

// RenderChart draws the chart with a value axis on the left and a time
// axis underneath.
func RenderChart(series []ChartSeries, xAxis, yAxis monitor.Axis, width, height int) string {
	top := fmt.Sprintf("%.2fm", yAxis.Max)
	bottom := fmt.Sprintf("%.2fm", yAxis.Min)
	mid := fmt.Sprintf("%.2fm", (yAxis.Max+yAxis.Min)/2)
	labelWidth := lipgloss.Width(top)
	for _, l := range []string{bottom, mid} {
		if w := lipgloss.Width(l); w > labelWidth {
			labelWidth = w
		}
	}

	plotWidth := width - labelWidth - 2
	if plotWidth < 4 || height < 2 {
		return ""
	}

	rows := RenderBrailleChart(series, xAxis, yAxis, plotWidth, height)
	labelStyle := AxisStyle.Width(labelWidth).Align(lipgloss.Right)

	var b strings.Builder
	for i, row := range rows {
		label := ""
		switch i {
		case 0:
			label = top
		case height / 2:
			label = mid
		case height - 1:
			label = bottom
		}
		b.WriteString(labelStyle.Render(label))
		b.WriteString(AxisStyle.Render(" ┤"))
		b.WriteString(row)
		b.WriteString("\n")
	}

	left := fmt.Sprintf("%.0fs", xAxis.Min)
	right := fmt.Sprintf("%.0fs", xAxis.Max)
	gap := plotWidth - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	b.WriteString(strings.Repeat(" ", labelWidth+2))
	b.WriteString(AxisStyle.Render(left + strings.Repeat(" ", gap) + right))

	return b.String()
}

// RenderMiniSparkline renders a single-row sparkline using block characters,
// scaled to the data's own range.
func RenderMiniSparkline(data []float64, width int) string {
	if len(data) == 0 || width <= 0 {
		return ""
	}

	minVal, maxVal := findMinMax(data)
	resampled := data
	if len(data) > width {
		resampled = resampleData(data, width)
	}

	var result strings.Builder
	for _, val := range resampled {
		normalized := normalizeValue(val, minVal, maxVal)
		idx := clampInt(int(normalized*float64(len(sparklineBlocks)-1)), len(sparklineBlocks)-1)
		result.WriteRune(sparklineBlocks[idx])
	}

	return result.String()
}

// resampleData resamples data to the target size.
// When downsampling (compressing), uses max-based sampling to preserve peaks/spikes.
// When upsampling (expanding), uses linear interpolation.
func resampleData(data []float64, targetSize int) []float64 {
	if len(data) == 0 || targetSize <= 0 {
		return nil
	}

	if len(data) == targetSize {
		return data
	}

	result := make([]float64, targetSize)

	if len(data) == 1 {
		for i := range result {
			result[i] = data[0]
		}
		return result
	}

	// Downsampling: use max within each bucket to preserve peaks
	if len(data) > targetSize {
		bucketSize := float64(len(data)) / float64(targetSize)
		for i := 0; i < targetSize; i++ {
			start := int(float64(i) * bucketSize)
			end := int(float64(i+1) * bucketSize)
			if end > len(data) {
				end = len(data)
			}
			if start >= end {
				start = end - 1
			}
			if start < 0 {
				start = 0
			}

			maxVal := data[start]
			for j := start + 1; j < end; j++ {
				if data[j] > maxVal {
					maxVal = data[j]
				}
			}
			result[i] = maxVal
		}
		return result
	}

	// Upsampling: linear interpolation
	scale := float64(len(data)-1) / float64(targetSize-1)
	for i := 0; i < targetSize; i++ {
		pos := float64(i) * scale
		idx := int(pos)
		frac := pos - float64(idx)

		if idx >= len(data)-1 {
			result[i] = data[len(data)-1]
		} else {
			result[i] = data[idx]*(1-frac) + data[idx+1]*frac
		}
	}

	return result
}
