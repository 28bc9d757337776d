package render

import (
	"fmt"
	"io"

	"spectrograph/internal/metadata"

	"github.com/charmbracelet/lipgloss"
)

var (
	noticeLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#25A065")).
				Bold(true)

	noticeTrackStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFDF5"))

	noticeIdleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676")).
			Italic(true)
)

// Console prints a line to w for every track change.
type Console struct {
	w io.Writer
}

var _ Notifier = (*Console)(nil)

// NewConsole creates a Console notifier writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Notify(t *metadata.Track) error {
	var line string
	if t == nil {
		line = noticeIdleStyle.Render("Nothing playing")
	} else {
		line = noticeLabelStyle.Render("Now playing:") + " " + noticeTrackStyle.Render(t.String())
	}
	_, err := fmt.Fprintln(c.w, line)
	return err
}
