package visualizer

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
)

const (
	// BarCount is the number of peripheral bars around the disc
	BarCount = 64

	baseRadius    = 100.0
	radiusGain    = 100.0
	barGap        = 20.0
	barMaxLength  = 150.0
	ringThreshold = 50.0
)

var (
	indigo = color.NRGBA{R: 90, G: 103, B: 216}
	violet = color.NRGBA{R: 118, G: 75, B: 162}
)

// Renderer draws the reactive waveform onto an RGBA canvas.
// Frames are a pure function of the frequency data; each one is drawn over a
// translucent black layer so bars leave short trails.
type Renderer struct {
	dc   *gg.Context
	w, h float64
}

// NewRenderer creates a renderer for a width x height canvas
func NewRenderer(width, height int) *Renderer {
	r := &Renderer{
		dc: gg.NewContext(width, height),
		w:  float64(width),
		h:  float64(height),
	}
	r.Clear()
	return r
}

// Clear paints the canvas solid black
func (r *Renderer) Clear() *image.RGBA {
	r.dc.SetRGB(0, 0, 0)
	r.dc.Clear()
	return r.image()
}

// Frame draws one visualization frame from byte frequency bins
func (r *Renderer) Frame(bins []uint8) *image.RGBA {
	dc := r.dc
	cx, cy := r.w/2, r.h/2

	// fade the previous frame
	dc.SetRGBA(0, 0, 0, 0.2)
	dc.DrawRectangle(0, 0, r.w, r.h)
	dc.Fill()

	avg := Average(bins)
	radius := DiscRadius(avg)

	grad := gg.NewRadialGradient(cx, cy, 0, cx, cy, radius)
	grad.AddColorStop(0, withAlpha(indigo, 0.8+avg/255*0.2))
	grad.AddColorStop(0.5, withAlpha(violet, 0.6+avg/255*0.4))
	grad.AddColorStop(1, withAlpha(indigo, 0))
	dc.SetFillStyle(grad)
	dc.DrawCircle(cx, cy, radius)
	dc.Fill()

	dc.SetLineWidth(3)
	dc.SetLineCap(gg.LineCapRound)
	step := 2 * math.Pi / BarCount
	for i := 0; i < BarCount; i++ {
		value := float64(BarValue(bins, i))
		length := value / 255 * barMaxLength
		angle := float64(i) * step
		cos, sin := math.Cos(angle), math.Sin(angle)

		dc.SetColor(barColor(value))
		dc.DrawLine(
			cx+cos*(radius+barGap), cy+sin*(radius+barGap),
			cx+cos*(radius+barGap+length), cy+sin*(radius+barGap+length),
		)
		dc.Stroke()
	}

	if avg > ringThreshold {
		dc.SetColor(withAlpha(indigo, (avg-ringThreshold)/(255-ringThreshold)))
		dc.SetLineWidth(2)
		dc.DrawCircle(cx, cy, radius*1.5)
		dc.Stroke()
	}

	return r.image()
}

// Idle draws the static graphic shown while no audio cue is playing
func (r *Renderer) Idle() *image.RGBA {
	dc := r.dc
	cx, cy := r.w/2, r.h/2

	dc.SetRGB(0, 0, 0)
	dc.Clear()

	grad := gg.NewRadialGradient(cx, cy, 0, cx, cy, baseRadius)
	grad.AddColorStop(0, withAlpha(indigo, 0.35))
	grad.AddColorStop(0.5, withAlpha(violet, 0.25))
	grad.AddColorStop(1, withAlpha(indigo, 0))
	dc.SetFillStyle(grad)
	dc.DrawCircle(cx, cy, baseRadius)
	dc.Fill()

	dc.SetColor(withAlpha(indigo, 0.3))
	dc.SetLineWidth(2)
	dc.DrawCircle(cx, cy, baseRadius+barGap)
	dc.Stroke()

	return r.image()
}

// image returns the live canvas; it is overwritten by the next draw
func (r *Renderer) image() *image.RGBA {
	return r.dc.Image().(*image.RGBA)
}

// Average returns the mean of the bins
func Average(bins []uint8) float64 {
	if len(bins) == 0 {
		return 0
	}
	sum := 0
	for _, v := range bins {
		sum += int(v)
	}
	return float64(sum) / float64(len(bins))
}

// DiscRadius maps the mean magnitude onto the disc radius
func DiscRadius(avg float64) float64 {
	return baseRadius + avg/255*radiusGain
}

// BarValue picks the bin driving bar i; bars sample the bins evenly
func BarValue(bins []uint8, i int) uint8 {
	if len(bins) == 0 {
		return 0
	}
	return bins[i*len(bins)/BarCount]
}

func barColor(value float64) color.Color {
	t := value / 255
	c := colorful.Hsl(250+t*60, 0.7, 0.5+t*0.3)
	r, g, b := c.RGB255()
	return withAlpha(color.NRGBA{R: r, G: g, B: b}, 0.5+t*0.5)
}

func withAlpha(c color.NRGBA, a float64) color.NRGBA {
	c.A = uint8(math.Round(math.Max(0, math.Min(1, a)) * 255))
	return c
}
