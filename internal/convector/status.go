package convector

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/thatsimonsguy/tesy-convector/internal/model"
	"github.com/thatsimonsguy/tesy-convector/internal/tesy"
)

var ErrMalformedStatus = errors.New("malformed convector status")

// Status is the part of the device status document the adapter cares about.
type Status struct {
	On     bool
	Mode   string   // device mode name, empty when the device did not report one
	Target *float64 // nil when setTemp is absent or not numeric
}

// HVACMode maps the device state onto the host's mode set.
func (s Status) HVACMode() model.HVACMode {
	switch {
	case !s.On:
		return model.HVACModeOff
	case s.Mode == model.DeviceModeProgram:
		return model.HVACModeAuto
	default:
		return model.HVACModeHeat
	}
}

// ParseStatus extracts a Status from the raw document. payload,
// payload.onOff and payload.onOff.payload.status must be present, otherwise
// the returned error wraps ErrMalformedStatus. setMode and setTemp are
// optional.
func ParseStatus(raw tesy.Status) (Status, error) {
	payload, ok := child(raw, "payload")
	if !ok {
		return Status{}, fmt.Errorf("%w: missing payload", ErrMalformedStatus)
	}
	onOff, ok := child(payload, "onOff")
	if !ok {
		return Status{}, fmt.Errorf("%w: missing payload.onOff", ErrMalformedStatus)
	}
	power, ok := lookup(onOff, "payload", "status")
	if !ok {
		return Status{}, fmt.Errorf("%w: missing payload.onOff.payload.status", ErrMalformedStatus)
	}
	powerStr, ok := power.(string)
	if !ok {
		return Status{}, fmt.Errorf("%w: payload.onOff.payload.status is %T", ErrMalformedStatus, power)
	}

	status := Status{On: strings.EqualFold(powerStr, "on")}

	if name, ok := lookup(payload, "setMode", "payload", "name"); ok {
		if s, ok := name.(string); ok {
			status.Mode = s
		}
	}
	if temp, ok := lookup(payload, "setTemp", "payload", "temp"); ok {
		if v, ok := toFloat(temp); ok {
			status.Target = &v
		}
	}
	return status, nil
}

func child(m map[string]any, key string) (map[string]any, bool) {
	if m == nil {
		return nil, false
	}
	switch v := m[key].(type) {
	case map[string]any:
		return v, true
	case tesy.Status:
		return v, true
	default:
		return nil, false
	}
}

func lookup(m map[string]any, path ...string) (any, bool) {
	for i, key := range path {
		if i == len(path)-1 {
			if m == nil {
				return nil, false
			}
			v, ok := m[key]
			return v, ok && v != nil
		}
		next, ok := child(m, key)
		if !ok {
			return nil, false
		}
		m = next
	}
	return nil, false
}

// toFloat accepts the numeric shapes the firmware has been seen to send:
// JSON numbers and numeric strings.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
