package model

type HVACMode string

const (
	HVACModeHeat HVACMode = "heat"
	HVACModeOff  HVACMode = "off"
	HVACModeAuto HVACMode = "auto"
)

// Device mode names understood by the convector's setMode command.
const (
	DeviceModeHeating = "heating"
	DeviceModeProgram = "program"
)

const UnitCelsius = "°C"

func (m HVACMode) Valid() bool {
	switch m {
	case HVACModeHeat, HVACModeOff, HVACModeAuto:
		return true
	default:
		return false
	}
}

// ClimateState is the host-visible view of the convector entity.
type ClimateState struct {
	EntityID           string     `json:"entity_id"`
	Name               string     `json:"name"`
	Model              string     `json:"model,omitempty"`
	HVACMode           HVACMode   `json:"hvac_mode"`
	HVACModes          []HVACMode `json:"hvac_modes"`
	CurrentTemperature *float64   `json:"current_temperature"`
	TargetTemperature  *float64   `json:"target_temperature"`
	MinTemp            float64    `json:"min_temp"`
	MaxTemp            float64    `json:"max_temp"`
	TargetTempStep     float64    `json:"target_temp_step"`
	TemperatureUnit    string     `json:"temperature_unit"`
}

// EntityState is a host registry row for any entity, e.g. an external
// temperature sensor.
type EntityState struct {
	EntityID    string `json:"entity_id"`
	State       string `json:"state"`
	Unit        string `json:"unit,omitempty"`
	LastUpdated string `json:"last_updated"`
}
