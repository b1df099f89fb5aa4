package wizard

import (
	"reflect"
	"sync"

	"github.com/mark3labs/stepwise/internal/logger"
)

// Props are the inputs of one Provider render.
type Props struct {
	Steps  []StepDefinition
	Hooks  *Hooks
	Theme  Theme
	Config *ConfigOverrides
}

// Instance is what a Provider exposes to the presentation layer.
type Instance struct {
	*Store
	Theme Theme
}

// propsKey captures the identity of the inputs a store is built from.
type propsKey struct {
	steps  uintptr
	nsteps int
	hooks  *Hooks
	config *ConfigOverrides
}

func keyOf(p Props) propsKey {
	return propsKey{
		steps:  reflect.ValueOf(p.Steps).Pointer(),
		nsteps: len(p.Steps),
		hooks:  p.Hooks,
		config: p.Config,
	}
}

// Provider owns the store of one mounted wizard. Rendering again with the
// same steps, hooks and config returns the same store.
type Provider struct {
	mu     sync.Mutex
	events *Channel
	opts   []Option

	key   propsKey
	store *Store
}

// ProviderOption customizes a Provider.
type ProviderOption func(*Provider)

// WithEventChannel makes the provider's stores emit on ch instead of a
// private channel.
func WithEventChannel(ch *Channel) ProviderOption {
	return func(p *Provider) {
		p.events = ch
	}
}

// WithStoreOptions passes opts to every store the provider builds.
func WithStoreOptions(opts ...Option) ProviderOption {
	return func(p *Provider) {
		p.opts = append(p.opts, opts...)
	}
}

// NewProvider creates a provider with its own event channel.
func NewProvider(opts ...ProviderOption) *Provider {
	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}
	if p.events == nil {
		p.events = NewChannel()
	}
	return p
}

// Events returns the channel stores of this provider emit on.
func (p *Provider) Events() *Channel {
	return p.events
}

// Render returns the instance for props, building a new store only when the
// steps, hooks or config identity changed. A replaced store is closed.
func (p *Provider) Render(props Props) (*Instance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := keyOf(props)
	if p.store == nil || key != p.key {
		store, err := NewStore(props.Steps, props.Hooks, MergeConfig(props.Config), p.events, p.opts...)
		if err != nil {
			return nil, err
		}
		if p.store != nil {
			logger.Debug("Wizard inputs changed, replacing store")
			p.store.Close()
		}
		p.store = store
		p.key = key
	}

	return &Instance{
		Store: p.store,
		Theme: MergeTheme(props.Theme),
	}, nil
}

// Unmount closes the current store. A later Render builds a fresh one.
func (p *Provider) Unmount() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.store != nil {
		p.store.Close()
		p.store = nil
	}
}
