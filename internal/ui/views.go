package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/linuxmatters/wizsync/internal/config"
	"github.com/linuxmatters/wizsync/internal/processor"
)

const (
	panelWidth = 60
	barWidth   = 40
)

var (
	accentColor = lipgloss.Color("#7D56F4")
	mutedColor  = lipgloss.Color("#888888")
	okColor     = lipgloss.Color("#00AA00")
	warnColor   = lipgloss.Color("#FFA500")
	errColor    = lipgloss.Color("#A40000")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1).
			Width(panelWidth)
	labelStyle = lipgloss.NewStyle().Foreground(mutedColor).Width(11)
)

func renderMonitor(m Model) string {
	var b strings.Builder
	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")
	b.WriteString(renderLevels(m))
	b.WriteString("\n")
	b.WriteString(renderCounters(m))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(mutedColor).Render("q to quit"))
	return b.String()
}

func renderHeader(m Model) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(accentColor).
		Render("wizsync 💡 - Music-reactive WiZ lights")

	subtitle := lipgloss.NewStyle().
		Foreground(mutedColor).
		Italic(true).
		Render(fmt.Sprintf("%s → %s", m.Source, endpointList(m.Endpoints)))

	return title + "\n" + subtitle
}

func endpointList(endpoints []string) string {
	switch len(endpoints) {
	case 0:
		return "no lights configured"
	case 1, 2, 3:
		return strings.Join(endpoints, ", ")
	default:
		return fmt.Sprintf("%s and %d more", strings.Join(endpoints[:2], ", "), len(endpoints)-2)
	}
}

func renderLevels(m Model) string {
	r := m.Last.Reading
	shown := m.LastShown

	var content strings.Builder
	fmt.Fprintf(&content, "%s %s\n", labelStyle.Render("Loudness"), renderBar(ratio(r.Loudness, r.Envelope), barWidth))
	fmt.Fprintf(&content, "%s %s\n", labelStyle.Render("Envelope"), renderBar(ratio(r.Envelope, r.Peak), barWidth))
	fmt.Fprintf(&content, "%s %s\n", labelStyle.Render("Status"), renderStatus(m))
	fmt.Fprintf(&content, "%s %s\n", labelStyle.Render("Mode"), renderMode(shown.Output.Mode))
	fmt.Fprintf(&content, "%s %s %s\n", labelStyle.Render("Color"), swatch(shown.Output.Color), shown.Output.Color)
	fmt.Fprintf(&content, "%s %s", labelStyle.Render("Brightness"), renderBar(float64(shown.Output.Brightness)/processor.MaxBrightness, barWidth))
	return panelStyle.Render(content.String())
}

func renderStatus(m Model) string {
	if m.Reopening {
		return lipgloss.NewStyle().Foreground(warnColor).Render("stream reopened")
	}
	switch m.Last.Reading.Status {
	case processor.StatusSilent:
		return lipgloss.NewStyle().Foreground(mutedColor).Render("silent")
	case processor.StatusQuiet:
		return lipgloss.NewStyle().Foreground(mutedColor).Render("quiet")
	}
	if m.Last.Reading.Fault != nil {
		return lipgloss.NewStyle().Foreground(warnColor).Render("numeric fault")
	}
	return lipgloss.NewStyle().Foreground(okColor).Render("active")
}

func renderMode(mode processor.Mode) string {
	style := lipgloss.NewStyle().Bold(true)
	switch mode {
	case processor.ModeDrumBreakActive:
		return style.Foreground(errColor).Render("DRUM BREAK")
	case processor.ModeBeatActive:
		return style.Foreground(warnColor).Render("BEAT")
	default:
		return style.Foreground(okColor).Render("normal")
	}
}

func swatch(c config.RGB) string {
	return lipgloss.NewStyle().Background(lipgloss.Color(c.String())).Render("      ")
}

func renderCounters(m Model) string {
	st := m.Stats
	box := panelStyle.BorderForeground(mutedColor)
	content := fmt.Sprintf(
		"⏱  %s | frames %d | silent %d | quiet %d\n"+
			"🥁 beats %d | drum breaks %d\n"+
			"📡 sent %d | limited %d | failed %d | reopens %d",
		time.Since(m.StartTime).Round(time.Second), st.Frames, st.SilentFrames, st.QuietFrames,
		st.Beats, st.DrumBreaks,
		st.CommandsSent, st.RateLimited, st.TransportFaults, st.StreamReopens)
	return box.Render(content)
}

func renderDone(m Model) string {
	if m.Err != nil {
		icon := lipgloss.NewStyle().Foreground(errColor).Render("✗")
		return fmt.Sprintf(" %s Stopped: %v\n", icon, m.Err)
	}
	icon := lipgloss.NewStyle().Foreground(okColor).Render("✓")
	return fmt.Sprintf(" %s Stopped after %s\n", icon, time.Since(m.StartTime).Round(time.Second))
}

// ratio returns v/of clamped to [0, 1]; 0 when of is not positive.
func ratio(v, of float64) float64 {
	if of <= 0 || math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v/of, 0), 1)
}

// renderBar renders a horizontal level bar.
func renderBar(level float64, width int) string {
	level = math.Min(math.Max(level, 0), 1)
	filled := int(level * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + fmt.Sprintf(" %3d%%", int(level*100))
}
