package convector

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tesy-convector/internal/datadog"
	"github.com/thatsimonsguy/tesy-convector/internal/model"
	"github.com/thatsimonsguy/tesy-convector/internal/tesy"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultSettleDelay  = 100 * time.Millisecond
)

var ErrUnsupportedMode = errors.New("unsupported hvac mode")

// Device is the call contract of the convector communication object.
type Device interface {
	Status(ctx context.Context) (tesy.Status, error)
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
	SetMode(ctx context.Context, name string) error
	SetTemperature(ctx context.Context, value float64) error
	SetOpenedWindow(ctx context.Context, status bool) error
}

// TemperatureSource resolves the current reading of another entity.
type TemperatureSource interface {
	Temperature(ctx context.Context, entityID string) (float64, bool)
}

type Options struct {
	EntityID string
	Name     string
	Model    string

	// TemperatureEntity, when set, replaces the device's own reading for
	// the current temperature.
	TemperatureEntity string

	PollInterval time.Duration
	SettleDelay  time.Duration

	MinTemp  float64
	MaxTemp  float64
	TempStep float64

	// OnUpdate is called with the new state whenever it visibly changes.
	OnUpdate func(model.ClimateState)

	// OnRefresh sees the outcome of every scheduled refresh.
	OnRefresh func(ctx context.Context, err error)
}

func DefaultOptions() Options {
	return Options{
		EntityID:     "climate.tesy_convector",
		Name:         "Tesy Convector",
		PollInterval: DefaultPollInterval,
		SettleDelay:  DefaultSettleDelay,
		MinTemp:      10,
		MaxTemp:      30,
		TempStep:     1,
	}
}

var (
	wait  = sleepContext
	gauge = datadog.Gauge
	incr  = datadog.Incr
)

// Adapter mirrors one convector as a climate entity.
type Adapter struct {
	device     Device
	tempSource TemperatureSource
	opts       Options

	// opMu serializes refreshes and commands against the device.
	opMu sync.Mutex

	mu       sync.RWMutex
	hvacMode model.HVACMode
	current  *float64
	target   *float64
}

func New(device Device, tempSource TemperatureSource, opts Options) *Adapter {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	return &Adapter{
		device:     device,
		tempSource: tempSource,
		opts:       opts,
		hvacMode:   model.HVACModeOff,
	}
}

func (a *Adapter) EntityID() string {
	return a.opts.EntityID
}

func (a *Adapter) HVACMode() model.HVACMode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.hvacMode
}

func (a *Adapter) CurrentTemperature() *float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return copyFloat(a.current)
}

func (a *Adapter) TargetTemperature() *float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return copyFloat(a.target)
}

func (a *Adapter) Snapshot() model.ClimateState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return model.ClimateState{
		EntityID:           a.opts.EntityID,
		Name:               a.opts.Name,
		Model:              a.opts.Model,
		HVACMode:           a.hvacMode,
		HVACModes:          []model.HVACMode{model.HVACModeHeat, model.HVACModeOff, model.HVACModeAuto},
		CurrentTemperature: copyFloat(a.current),
		TargetTemperature:  copyFloat(a.target),
		MinTemp:            a.opts.MinTemp,
		MaxTemp:            a.opts.MaxTemp,
		TargetTempStep:     a.opts.TempStep,
		TemperatureUnit:    model.UnitCelsius,
	}
}

// Refresh pulls the device status into the adapter. A malformed status
// resets the entity to off and is only logged; device errors are returned.
func (a *Adapter) Refresh(ctx context.Context) error {
	a.opMu.Lock()
	defer a.opMu.Unlock()

	before := a.Snapshot()
	defer a.notifyIfChanged(before)

	substitute := a.opts.TemperatureEntity != ""
	if substitute {
		if temp, ok := a.substituteTemperature(ctx); ok {
			a.mu.Lock()
			a.current = &temp
			a.mu.Unlock()
		}
	}

	raw, err := a.device.Status(ctx)
	if err != nil {
		incr("convector.refresh.error")
		return fmt.Errorf("fetch convector status: %w", err)
	}

	log.Debug().Interface("status", raw).Msg("Tesy Convector status")

	status, err := ParseStatus(raw)

	a.mu.Lock()
	if err != nil {
		a.hvacMode = model.HVACModeOff
		a.target = nil
		if !substitute {
			a.current = nil
		}
	} else {
		a.hvacMode = status.HVACMode()
		a.target = copyFloat(status.Target)
		if !substitute {
			a.current = copyFloat(status.Target)
		}
	}
	a.mu.Unlock()

	if err != nil {
		incr("convector.status.malformed")
		log.Error().
			Err(err).
			Interface("status", raw).
			Str("entity_id", a.opts.EntityID).
			Msg("Unexpected response structure from Tesy Convector")
	}

	a.emitMetrics()
	return nil
}

func (a *Adapter) substituteTemperature(ctx context.Context) (float64, bool) {
	if a.tempSource == nil {
		return 0, false
	}
	temp, ok := a.tempSource.Temperature(ctx, a.opts.TemperatureEntity)
	if !ok {
		log.Debug().
			Str("entity_id", a.opts.EntityID).
			Str("temperature_entity", a.opts.TemperatureEntity).
			Msg("Temperature entity unavailable, keeping previous reading")
	}
	return temp, ok
}

// SetHVACMode issues the device command for mode and waits for the device
// to settle. The cached mode is left for the next refresh to update.
func (a *Adapter) SetHVACMode(ctx context.Context, mode model.HVACMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}

	a.opMu.Lock()
	defer a.opMu.Unlock()

	var err error
	switch mode {
	case model.HVACModeOff:
		err = a.device.TurnOff(ctx)
	case model.HVACModeHeat:
		err = a.powerOnWithMode(ctx, model.DeviceModeHeating)
	case model.HVACModeAuto:
		err = a.powerOnWithMode(ctx, model.DeviceModeProgram)
	}
	if err != nil {
		return fmt.Errorf("set hvac mode %s: %w", mode, err)
	}

	incr("convector.command", "command:set_hvac_mode", "mode:"+string(mode))
	log.Info().
		Str("entity_id", a.opts.EntityID).
		Str("mode", string(mode)).
		Msg("HVAC mode command sent")

	return wait(ctx, a.opts.SettleDelay)
}

func (a *Adapter) powerOnWithMode(ctx context.Context, deviceMode string) error {
	if a.HVACMode() == model.HVACModeOff {
		if err := a.device.TurnOn(ctx); err != nil {
			return err
		}
	}
	return a.device.SetMode(ctx, deviceMode)
}

// SetTemperature forwards a new target. nil or the cached target is a no-op.
func (a *Adapter) SetTemperature(ctx context.Context, value *float64) error {
	if value == nil {
		return nil
	}

	a.opMu.Lock()
	defer a.opMu.Unlock()

	a.mu.RLock()
	unchanged := a.target != nil && *a.target == *value
	a.mu.RUnlock()
	if unchanged {
		return nil
	}

	if err := a.device.SetTemperature(ctx, *value); err != nil {
		return fmt.Errorf("set temperature %.1f: %w", *value, err)
	}

	before := a.Snapshot()
	a.mu.Lock()
	a.target = copyFloat(value)
	a.mu.Unlock()
	a.notifyIfChanged(before)

	incr("convector.command", "command:set_temperature")
	log.Info().
		Str("entity_id", a.opts.EntityID).
		Float64("temperature", *value).
		Msg("Target temperature command sent")

	return wait(ctx, a.opts.SettleDelay)
}

// SetOpenedWindow forwards the open-window override to the device.
func (a *Adapter) SetOpenedWindow(ctx context.Context, status bool) error {
	a.opMu.Lock()
	defer a.opMu.Unlock()

	if err := a.device.SetOpenedWindow(ctx, status); err != nil {
		return fmt.Errorf("set opened window %t: %w", status, err)
	}

	incr("convector.command", "command:set_opened_window")
	log.Info().
		Str("entity_id", a.opts.EntityID).
		Bool("status", status).
		Msg("Opened window command sent")
	return nil
}

// Start refreshes immediately and then on every poll interval until the
// returned stop function is called or ctx ends. stop blocks until the
// poll loop has exited and is safe to call more than once.
func (a *Adapter) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		log.Info().
			Str("entity_id", a.opts.EntityID).
			Dur("interval", a.opts.PollInterval).
			Msg("Starting convector poller")

		ticker := time.NewTicker(a.opts.PollInterval)
		defer ticker.Stop()

		a.poll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.poll(ctx)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
			log.Info().Str("entity_id", a.opts.EntityID).Msg("Convector poller stopped")
		})
	}
}

func (a *Adapter) poll(ctx context.Context) {
	err := a.Refresh(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Error().Err(err).Str("entity_id", a.opts.EntityID).Msg("Failed to refresh convector")
	}
	if a.opts.OnRefresh != nil {
		a.opts.OnRefresh(ctx, err)
	}
}

func (a *Adapter) notifyIfChanged(before model.ClimateState) {
	if a.opts.OnUpdate == nil {
		return
	}
	after := a.Snapshot()
	if !reflect.DeepEqual(before, after) {
		a.opts.OnUpdate(after)
	}
}

func (a *Adapter) emitMetrics() {
	state := a.Snapshot()
	tags := []string{"entity_id:" + state.EntityID}

	if state.CurrentTemperature != nil {
		gauge("convector.current_temperature", *state.CurrentTemperature, tags...)
	}
	if state.TargetTemperature != nil {
		gauge("convector.target_temperature", *state.TargetTemperature, tags...)
	}
	var mode float64
	switch state.HVACMode {
	case model.HVACModeHeat:
		mode = 1
	case model.HVACModeAuto:
		mode = 2
	}
	gauge("convector.hvac_mode", mode, tags...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
