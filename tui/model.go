package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"go-seqengine/engine"
	"go-seqengine/event"
	"go-seqengine/midi"
	"go-seqengine/sequencer"
	"go-seqengine/theme"
	"go-seqengine/transport"
	"go-seqengine/widgets"
)

const (
	levelStep  = 0.1
	tempoStep  = 5
	meterWidth = 16
	meterScale = 2 // full bar at +6 dB
)

type Model struct {
	Engine    *engine.Engine
	Manager   *sequencer.Manager
	DeviceMgr *midi.DeviceManager
	Theme     *theme.Theme
	Names     map[transport.TrackIndex]string
	MIDITrack transport.TrackIndex // track receiving live input

	selected   int
	quitting   bool
	showHelp   bool
	controller string // connected input (may be empty)
}

var keyHelp = []widgets.KeySection{
	{Title: "Transport", Keys: []widgets.KeyBinding{
		{Key: "p, space", Desc: "play / pause"},
		{Key: "0", Desc: "rewind and restart patterns"},
		{Key: "t / T", Desc: "tempo -5 / +5 BPM"},
	}},
	{Title: "Tracks", Keys: []widgets.KeyBinding{
		{Key: "up/k, down/j", Desc: "select track"},
		{Key: "+ / -", Desc: "level up / down"},
		{Key: "r", Desc: "reset (all notes off)"},
		{Key: "m", Desc: "mute pattern"},
	}},
	{Keys: []widgets.KeyBinding{
		{Key: "?", Desc: "toggle this help"},
		{Key: "q", Desc: "quit"},
	}},
}

type UpdateMsg struct{}

type DeviceEventMsg midi.DeviceEvent

func NewModel(eng *engine.Engine, manager *sequencer.Manager, deviceMgr *midi.DeviceManager, th *theme.Theme) Model {
	return Model{
		Engine:    eng,
		Manager:   manager,
		DeviceMgr: deviceMgr,
		Theme:     th,
		Names:     make(map[transport.TrackIndex]string),
	}
}

func ListenForUpdates(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(ev)
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{ListenForUpdates(m.Manager)}
	if m.DeviceMgr != nil {
		cmds = append(cmds, ListenForDevices(m.DeviceMgr))
	}
	return tea.Batch(cmds...)
}

// selectedTrack returns the highlighted track, NoTrack when there is none.
func (m Model) selectedTrack() transport.TrackIndex {
	tracks := m.Engine.Tracks()
	if len(tracks) == 0 {
		return transport.NoTrack
	}
	return tracks[min(m.selected, len(tracks)-1)]
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case UpdateMsg:
		return m, ListenForUpdates(m.Manager)

	case DeviceEventMsg:
		ev := midi.DeviceEvent(msg)
		if ev.Type == midi.DeviceConnected {
			m.controller = ev.ID
			eng, track := m.Engine, m.MIDITrack
			go midi.Forward(ev.Controller, func(d event.MIDIData) {
				eng.HandleEventsNow(track, []event.Event{event.NewMIDI(0, d.Status, d.Data1, d.Data2)})
			})
		} else if ev.Type == midi.DeviceDisconnected && m.controller == ev.ID {
			m.controller = ""
		}
		return m, ListenForDevices(m.DeviceMgr)
	}

	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	track := m.selectedTrack()

	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		m.Manager.Stop()
		m.Engine.Pause()
		return m, tea.Quit

	case "p", " ":
		if m.Engine.IsPlaying() {
			m.Engine.Pause()
		} else {
			m.Engine.Play()
		}

	case "0":
		m.Engine.SetPosition(0)
		m.Manager.Start()

	case "up", "k":
		m.selected = max(0, m.selected-1)

	case "down", "j":
		m.selected = max(0, min(len(m.Engine.Tracks())-1, m.selected+1))

	case "+", "=":
		m.Engine.SetLevel(track, m.Engine.Level(track)+levelStep)

	case "-", "_":
		m.Engine.SetLevel(track, max(0, m.Engine.Level(track)-levelStep))

	case "r":
		m.Engine.ResetTrack(track)

	case "m":
		if f := m.Manager.Feeder(track); f != nil {
			f.SetMuted(!m.muted(track))
		}

	case "?":
		m.showHelp = !m.showHelp

	case "T":
		m.Manager.SetTempo(m.Manager.Tempo() + tempoStep)

	case "t":
		m.Manager.SetTempo(m.Manager.Tempo() - tempoStep)
	}
	return m, nil
}

func (m Model) muted(track transport.TrackIndex) bool {
	f := m.Manager.Feeder(track)
	return f != nil && f.Muted()
}

func (m Model) trackName(i transport.TrackIndex) string {
	if name, ok := m.Names[i]; ok {
		return name
	}
	return fmt.Sprintf("track %d", i)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	// Styles
	headerStyle := m.Theme.Style(theme.RoleAccent)
	dimStyle := m.Theme.Style(theme.RoleMuted)
	selStyle := m.Theme.Style(theme.RoleCursor)
	warnStyle := m.Theme.Style(theme.RoleWarning)

	sym := m.Theme.Symbols
	playState := fmt.Sprintf("%c STOP", sym.Paused)
	if m.Engine.IsPlaying() {
		playState = fmt.Sprintf("%c PLAY", sym.Playing)
	}

	pos := m.Engine.Position()
	seconds := float64(pos) / float64(m.Engine.SampleRate())
	deviceStatus := ""
	if m.controller != "" {
		deviceStatus = "  in:" + m.controller
	}
	header := headerStyle.Render(fmt.Sprintf("go-seqengine  %s  %3.0fbpm  %8.3fs  frame %d%s",
		playState, m.Manager.Tempo(), seconds, pos, deviceStatus))

	// Track list
	var rows []string
	selected := m.selectedTrack()
	meterColor := [3]uint8(m.Theme.RGB(theme.RoleMeter))
	overColor := [3]uint8(m.Theme.RGB(theme.RoleWarning))
	for _, i := range m.Engine.Tracks() {
		st, ok := m.Engine.Stats(i)
		if !ok {
			continue
		}
		cursor := " "
		if i == selected {
			cursor = string(sym.Selected)
		}
		meter := widgets.RenderMeter(st.Level, meterScale, meterWidth, sym.MeterFull, sym.MeterEmpty, meterColor, overColor)
		line := fmt.Sprintf("%s %2d %-12s %s %4.2f  free %4d", cursor, i, m.trackName(i), meter, st.Level, st.Available)
		if i == selected {
			line = selStyle.Render(line)
		}
		if st.Dropped > 0 || st.Overflows > 0 {
			line += warnStyle.Render(fmt.Sprintf("  late %d  full %d", st.Dropped, st.Overflows))
		}
		if m.muted(i) {
			line += dimStyle.Render("  muted")
		}
		rows = append(rows, line)
	}
	if len(rows) == 0 {
		rows = append(rows, dimStyle.Render("  no tracks"))
	}

	help := dimStyle.Render("p:play/pause  ↑/↓:select  +/-:level  m:mute  ?:help  q:quit")
	if m.showHelp {
		help = dimStyle.Render(widgets.RenderKeyHelp(keyHelp))
	}

	// Build output
	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(strings.Join(rows, "\n"))
	out.WriteString("\n\n")
	out.WriteString(help)

	return out.String()
}
