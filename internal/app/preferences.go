package app

import (
	"errors"
	"fmt"

	"github.com/ayusman/handsynth/internal/engine"
	"github.com/ayusman/handsynth/internal/logging"
	"github.com/ayusman/handsynth/internal/store"
)

// Preferences persists user choices made at runtime.
type Preferences struct {
	settings *store.SettingsRepository
	engine   *engine.Engine
}

// NewPreferences binds stored settings to eng.
func NewPreferences(settings *store.SettingsRepository, eng *engine.Engine) *Preferences {
	return &Preferences{settings: settings, engine: eng}
}

// Apply loads stored settings into the engine. They override the config
// file.
func (p *Preferences) Apply() error {
	name, err := p.settings.Get(store.SettingPolicy)
	switch {
	case err == nil:
		if err := p.engine.UsePolicy(name); err != nil {
			logging.Warn("ignoring stored policy", "policy", name, "err", err)
		}
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("load policy: %w", err)
	}

	done, err := p.settings.GetBool(store.SettingTutorialCompleted, false)
	if err != nil {
		return fmt.Errorf("load tutorial state: %w", err)
	}
	if done {
		p.engine.SkipTutorial()
	}
	return nil
}

// Policy returns the active policy name.
func (p *Preferences) Policy() string {
	return p.engine.Policy()
}

// SetPolicy switches the engine policy and stores the choice.
func (p *Preferences) SetPolicy(name string) error {
	if err := p.engine.UsePolicy(name); err != nil {
		return err
	}
	return p.settings.Set(store.SettingPolicy, name)
}

// MarkTutorialCompleted records that the tutorial was finished. It is
// meant for engine.Config.OnTutorialComplete.
func (p *Preferences) MarkTutorialCompleted() {
	if err := p.settings.SetBool(store.SettingTutorialCompleted, true); err != nil {
		logging.Error("save tutorial state", "err", err)
	}
}

// SkipTutorial ends the tutorial and remembers it.
func (p *Preferences) SkipTutorial() error {
	p.engine.SkipTutorial()
	return p.settings.SetBool(store.SettingTutorialCompleted, true)
}

// ResetTutorial restarts the tutorial.
func (p *Preferences) ResetTutorial() error {
	p.engine.ResetTutorial()
	return p.settings.SetBool(store.SettingTutorialCompleted, false)
}
