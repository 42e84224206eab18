package plugin

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeModule struct {
	name      string
	commands  []tgbotapi.BotCommand
	loadErr   error
	unloadLog *[]string
}

func (m *fakeModule) Name() string                    { return m.name }
func (m *fakeModule) Commands() []tgbotapi.BotCommand { return m.commands }
func (m *fakeModule) OnLoad() error                   { return m.loadErr }
func (m *fakeModule) OnUnload() error {
	if m.unloadLog != nil {
		*m.unloadLog = append(*m.unloadLog, m.name)
	}
	return nil
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.NoError(t, r.Register(&fakeModule{name: "a"}))
	err := r.Register(&fakeModule{name: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryLoadFailure(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	boom := errors.New("boom")
	err := r.Register(&fakeModule{name: "broken", loadErr: boom})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, r.Commands(), "a failed module must not contribute commands")
}

func TestRegistryAggregatesCommands(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.NoError(t, r.Register(&fakeModule{
		name:     "a",
		commands: []tgbotapi.BotCommand{{Command: "start"}, {Command: "help"}},
	}))
	require.NoError(t, r.Register(&fakeModule{
		name:     "b",
		commands: []tgbotapi.BotCommand{{Command: "admin"}},
	}))

	commands := r.Commands()
	require.Len(t, commands, 3)
	assert.Equal(t, "start", commands[0].Command)
	assert.Equal(t, "admin", commands[2].Command)
}

func TestRegistryUnloadsInReverseOrder(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	var log []string
	require.NoError(t, r.Register(&fakeModule{name: "first", unloadLog: &log}))
	require.NoError(t, r.Register(&fakeModule{name: "second", unloadLog: &log}))

	require.NoError(t, r.Close())
	assert.Equal(t, []string{"second", "first"}, log)
}
