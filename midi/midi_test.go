package midi

import (
	"errors"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-seqengine/event"
)

func TestKeyboardForwardsChannelMessages(t *testing.T) {
	kb, err := NewKeyboardController("kb", nil)
	require.NoError(t, err)
	assert.Equal(t, ControllerKeyboard, kb.Type())
	assert.Equal(t, "kb", kb.ID())

	kb.handle(gomidi.NoteOn(2, 60, 100))
	kb.handle(gomidi.ControlChange(0, 7, 90))
	kb.handle(gomidi.Message{0xF8})

	got := <-kb.Messages()
	assert.Equal(t, event.MIDIData{Status: event.NoteOn | 2, Data1: 60, Data2: 100}, got)
	assert.Equal(t, uint8(2), got.Channel())
	got = <-kb.Messages()
	assert.Equal(t, event.MIDIData{Status: event.ControlChange, Data1: 7, Data2: 90}, got)
	assert.Empty(t, kb.Messages(), "system messages are not forwarded")

	require.NoError(t, kb.Close())
	require.NoError(t, kb.Close())
	kb.handle(gomidi.NoteOn(0, 1, 1))
	_, open := <-kb.Messages()
	assert.False(t, open)
}

func TestKeyboardDropsWhenReaderIsSlow(t *testing.T) {
	kb, err := NewKeyboardController("kb", nil)
	require.NoError(t, err)
	for i := 0; i < cap(kb.msgChan)+5; i++ {
		kb.handle(gomidi.NoteOn(0, 60, 1))
	}
	assert.Equal(t, uint64(5), kb.Dropped())
}

type fakeController struct {
	id     string
	closed bool
}

func (f *fakeController) ID() string                      { return f.id }
func (f *fakeController) Type() ControllerType            { return ControllerKeyboard }
func (f *fakeController) Messages() <-chan event.MIDIData { return nil }
func (f *fakeController) Close() error                    { f.closed = true; return nil }

func TestReconcileConnectsAndDisconnects(t *testing.T) {
	dm := NewDeviceManager("")
	opened := map[string]*fakeController{}
	open := func(id string) (Controller, error) {
		c := &fakeController{id: id}
		opened[id] = c
		return c, nil
	}

	dm.reconcile([]string{"Midi Through Port-0", "Keystation 49"}, open)
	ev := <-dm.Events()
	assert.Equal(t, DeviceConnected, ev.Type)
	assert.Equal(t, "Keystation 49", ev.ID)
	assert.NotContains(t, opened, "Midi Through Port-0")

	// unchanged ports produce no events
	dm.reconcile([]string{"Keystation 49"}, open)
	assert.Empty(t, dm.Events())
	assert.Len(t, dm.Controllers(), 1)

	dm.reconcile(nil, open)
	ev = <-dm.Events()
	assert.Equal(t, DeviceDisconnected, ev.Type)
	assert.Equal(t, "Keystation 49", ev.ID)
	assert.True(t, opened["Keystation 49"].closed)
	assert.Empty(t, dm.Controllers())
}

func TestReconcileMatchAndOpenFailure(t *testing.T) {
	dm := NewDeviceManager("KEYSTATION")
	open := func(id string) (Controller, error) {
		if id == "Keystation broken" {
			return nil, errors.New("busy")
		}
		return &fakeController{id: id}, nil
	}

	dm.reconcile([]string{"Launchpad X", "Keystation 49", "Keystation broken"}, open)
	ev := <-dm.Events()
	assert.Equal(t, "Keystation 49", ev.ID)
	assert.Empty(t, dm.Events())
	assert.Len(t, dm.Controllers(), 1)
}

func TestDeviceEventTypeString(t *testing.T) {
	assert.Equal(t, "connected", DeviceConnected.String())
	assert.Equal(t, "disconnected", DeviceDisconnected.String())
	assert.Equal(t, "keyboard", ControllerKeyboard.String())
}

func TestForwardUntilClosed(t *testing.T) {
	kb, err := NewKeyboardController("kb", nil)
	require.NoError(t, err)
	kb.handle(gomidi.NoteOn(0, 60, 100))
	kb.handle(gomidi.NoteOff(0, 60))
	require.NoError(t, kb.Close())

	var got []event.MIDIData
	Forward(kb, func(d event.MIDIData) { got = append(got, d) })
	require.Len(t, got, 2)
	assert.Equal(t, event.NoteOn, got[0].Command())
	assert.Equal(t, event.NoteOff, got[1].Command())
}
