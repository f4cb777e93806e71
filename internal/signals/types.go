package signals

// #region reading

// Reading is one machine's raw sensor values keyed by sensor (variable) name.
type Reading struct {
	ID     string             `json:"id" yaml:"id"`
	Values map[string]float64 `json:"values" yaml:"values"`
}

// #endregion reading

// #region config

// Threshold holds the cut-offs for one sensor. Only Low decides the state:
// values above it are abnormal. High is carried for the three-band scheme the
// thresholds were written for but does not affect classification.
type Threshold struct {
	Low  float64 `json:"low" yaml:"low" koanf:"low"`
	High float64 `json:"high" yaml:"high" koanf:"high"`
}

// ProducerConfig maps each evidence variable to its threshold.
type ProducerConfig struct {
	Thresholds map[string]Threshold
}

// DefaultProducerConfig returns the thresholds used for the reference fleet:
// CPU usage in percent, temperature in °C, memory errors and network failures
// per hour.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Thresholds: map[string]Threshold{
			"UsoAltoCPU":      {Low: 70, High: 100},
			"AltaTemperatura": {Low: 60, High: 100},
			"ErroresMemoria":  {Low: 5, High: 10},
			"FallosRed":       {Low: 3, High: 10},
		},
	}
}

// #endregion config

// #region states

const (
	StateNormal   = 0
	StateAbnormal = 1
)

// #endregion states
