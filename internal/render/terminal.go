// SPDX-License-Identifier: MIT
package render

import (
	"fmt"
	"strings"
	"sync"

	"spectrograph/internal/metadata"
	"spectrograph/internal/spectral"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
)

// termui entry points, replaced in tests.
var (
	uiInit       = ui.Init
	uiClose      = ui.Close
	uiRender     = ui.Render
	uiDimensions = ui.TerminalDimensions
	uiPollEvents = ui.PollEvents
)

const (
	statusHeight = 4
	// plotAxisWidth is the columns termui reserves for y-axis labels.
	plotAxisWidth = 10
)

// Terminal draws spectra in the terminal with termui: a braille line plot
// for single-frame spectra, a heat map for spectrograms and a status panel
// with the current track, peak frequency and band energies. Pressing q or
// Ctrl-C calls the stop function given to NewTerminal.
type Terminal struct {
	plot    *widgets.Plot
	heat    *heatmap
	status  *widgets.Paragraph
	floorDB float64

	track   *metadata.Track
	summary string
	plotBuf []float64

	mu            sync.Mutex // guards width, height
	width, height int

	done      chan struct{}
	closeOnce sync.Once
}

var (
	_ Renderer = (*Terminal)(nil)
	_ Notifier = (*Terminal)(nil)
)

// NewTerminal takes over the terminal. floorDB sets the quietest level the
// heat map distinguishes; zero selects DefaultFloorDB. stop is called when
// the user asks to quit.
func NewTerminal(stop func(), floorDB float64) (*Terminal, error) {
	if err := uiInit(); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize terminal: %w", ErrRenderFailure, err)
	}
	if floorDB >= 0 {
		floorDB = DefaultFloorDB
	}

	t := &Terminal{
		plot:    widgets.NewPlot(),
		heat:    newHeatmap(),
		status:  widgets.NewParagraph(),
		floorDB: floorDB,
		done:    make(chan struct{}),
	}
	t.width, t.height = uiDimensions()

	t.plot.Title = " Spectrum "
	t.plot.Marker = widgets.MarkerBraille
	t.plot.LineColors = []ui.Color{ui.ColorCyan}
	t.plot.AxesColor = ui.ColorWhite
	t.plot.Data = [][]float64{{0, 0}}
	t.plot.MaxVal = MinVerticalLimit

	t.heat.Title = " Spectrogram "
	t.status.Title = " Listening for audio... press q to stop "

	go t.pollEvents(uiPollEvents(), stop)
	return t, nil
}

func (t *Terminal) pollEvents(events <-chan ui.Event, stop func()) {
	for {
		select {
		case <-t.done:
			return
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				if stop != nil {
					stop()
				}
			case "<Resize>":
				if r, ok := e.Payload.(ui.Resize); ok {
					t.mu.Lock()
					t.width, t.height = r.Width, r.Height
					t.mu.Unlock()
				}
			}
		}
	}
}

// layout sizes main and the status panel to the current terminal.
func (t *Terminal) layout(main ui.Drawable) {
	t.mu.Lock()
	w, h := t.width, t.height
	t.mu.Unlock()

	split := max(h-statusHeight, 1)
	main.SetRect(0, 0, w, split)
	t.status.SetRect(0, split, w, max(h, split+1))
}

// RenderLine updates the spectrum curve in place and rescales its vertical
// axis to the line's peak.
func (t *Terminal) RenderLine(l spectral.Line) error {
	t.layout(t.plot)

	points := (t.plot.Inner.Dx() - plotAxisWidth) * 2
	t.plotBuf = downsample(t.plotBuf, l.Magnitudes, points)
	for len(t.plotBuf) < 2 {
		t.plotBuf = append(t.plotBuf, 0)
	}
	t.plot.Data[0] = t.plotBuf
	t.plot.MaxVal = VerticalLimit(l.Magnitudes)

	top := 0.0
	if n := len(l.Freqs); n > 0 {
		top = l.Freqs[n-1]
	}
	t.plot.Title = fmt.Sprintf(" Spectrum 0-%.0f Hz, peak %.3g ", top, l.Max())

	t.summary = summarize(l)
	t.draw(t.plot)
	return nil
}

// RenderMatrix replaces the heat map contents and relabels its axes.
func (t *Terminal) RenderMatrix(m spectral.Matrix) error {
	t.layout(t.heat)

	t.heat.levels = matrixLevels(m, t.floorDB)
	if m.Empty() {
		t.heat.Title = " Spectrogram (no data) "
	} else {
		t.heat.Title = fmt.Sprintf(" Frequency [Hz] 0-%.0f, Time [s] %.3f-%.3f ",
			m.Freqs[len(m.Freqs)-1], m.Times[0], m.Times[len(m.Times)-1])
	}

	t.summary = summarize(m.Average())
	t.draw(t.heat)
	return nil
}

// Notify shows the current track in the status panel.
func (t *Terminal) Notify(track *metadata.Track) error {
	t.track = track
	return nil
}

func (t *Terminal) draw(main ui.Drawable) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Now playing: %s\n", t.track.String())
	sb.WriteString(t.summary)
	t.status.Text = sb.String()
	uiRender(main, t.status)
}

// Close releases the terminal. It is safe to call more than once.
func (t *Terminal) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		uiClose()
	})
	return nil
}

// summarize formats the peak frequency and band energies of l.
func summarize(l spectral.Line) string {
	if l.Len() == 0 {
		return "no signal"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "peak %.0f Hz |", spectral.PeakFrequency(l))
	for _, b := range spectral.Bands(l) {
		fmt.Fprintf(&sb, " %s %.3g", b.Name, b.Energy)
	}
	return sb.String()
}
