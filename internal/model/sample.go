package model

// MeasurementFields is the fixed set of sensor/process parameters that are
// eligible for inclusion in an outbound prompt, in render order.
var MeasurementFields = []string{
	"InjectionStroke",
	"InjectionTime",
	"ActualStrokePosition",
	"MeasuredCycleDuration",
	"cluster3_flag",
	"SliderOutputTimePeriodValue",
	"MoldTemp2",
	"MaxInjectionPressure",
	"SliderInputTimePeriodValue",
	"CoolingTime",
	"OilTemperature",
	"DosingTime",
	"ClosingForceGenerationTimePeriodValue",
	"MoldTemp6",
	"BarrelTemp1",
}

// Measurement is a single named sensor reading or summary statistic.
type Measurement struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// InternalMeta holds per-sample metadata that is retained for audit and
// scoring but must never be rendered into an outbound prompt.
type InternalMeta struct {
	Timestamp string  `json:"timestamp,omitempty"`
	MouldCode string  `json:"mould_code,omitempty"`
	Label     Quality `json:"label,omitempty"`
}

// Sample is one labeled row of the pruned injection-molding dataset.
// Only ID, Setpoints, Series, TimeseriesSummary and Measurements are
// eligible prompt content; Internal stays local.
type Sample struct {
	ID                string            `json:"sample_id"`
	Setpoints         map[string]string `json:"setpoints"`
	Measurements      []Measurement     `json:"measurements"`
	Series            []float64         `json:"series,omitempty"`
	TimeseriesSummary string            `json:"timeseries_summary,omitempty"`
	Internal          InternalMeta      `json:"-"`
}

// Measurement returns the value for a named measurement, or "" when the
// field was absent from the source row.
func (s Sample) Measurement(name string) string {
	for _, m := range s.Measurements {
		if m.Name == name {
			return m.Value
		}
	}
	return ""
}
