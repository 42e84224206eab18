// Package plugin defines the fixed interface every feature module of the
// bot implements, and the static registry they are registered into at
// startup. Discovery is explicit: there is no directory scanning and no
// optional hooks.
package plugin

import (
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Module is a self-contained feature of the bot. Commands returns the
// command list the module contributes to the bot's command menu.
type Module interface {
	Name() string
	Commands() []tgbotapi.BotCommand
	OnLoad() error
	OnUnload() error
}

// Registry owns the loaded modules. Register order is unload order reversed.
type Registry struct {
	mu      sync.Mutex
	modules []Module
	byName  map[string]Module
	logger  *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		byName: make(map[string]Module),
		logger: logger,
	}
}

// Register loads a module. Duplicate names are rejected.
func (r *Registry) Register(m Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[m.Name()]; exists {
		return fmt.Errorf("module %q already registered", m.Name())
	}
	if err := m.OnLoad(); err != nil {
		return fmt.Errorf("failed to load module %q: %w", m.Name(), err)
	}
	r.byName[m.Name()] = m
	r.modules = append(r.modules, m)
	r.logger.Info("Module loaded", zap.String("module", m.Name()))
	return nil
}

// Commands aggregates the command lists of all loaded modules.
func (r *Registry) Commands() []tgbotapi.BotCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	var commands []tgbotapi.BotCommand
	for _, m := range r.modules {
		commands = append(commands, m.Commands()...)
	}
	return commands
}

// Close unloads all modules in reverse registration order.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for i := len(r.modules) - 1; i >= 0; i-- {
		m := r.modules[i]
		if err := m.OnUnload(); err != nil {
			r.logger.Warn("Module unload failed", zap.String("module", m.Name()), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	r.modules = nil
	r.byName = make(map[string]Module)
	return firstErr
}
