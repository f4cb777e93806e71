package signals

import (
	"errors"
	"fmt"
	"sort"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/infer"
)

// ErrMissingReading is returned when a reading lacks a configured sensor.
var ErrMissingReading = errors.New("missing sensor reading")

// #region classify

// Classify returns StateAbnormal iff value > low. high is accepted for
// compatibility with three-band threshold tables and is ignored.
func Classify(value, low, high float64) int {
	if value > low {
		return StateAbnormal
	}
	return StateNormal
}

// #endregion classify

// #region producer

// Producer turns raw readings into binary evidence.
type Producer struct {
	config  ProducerConfig
	sensors []string
}

// NewProducer creates a Producer over the configured sensors.
func NewProducer(config ProducerConfig) *Producer {
	sensors := make([]string, 0, len(config.Thresholds))
	for name := range config.Thresholds {
		sensors = append(sensors, name)
	}
	sort.Strings(sensors)
	return &Producer{config: config, sensors: sensors}
}

// Sensors returns the configured sensor names, sorted.
func (p *Producer) Sensors() []string {
	out := make([]string, len(p.sensors))
	copy(out, p.sensors)
	return out
}

// Evidence classifies every configured sensor of r. Values for sensors without
// a threshold are ignored.
func (p *Producer) Evidence(r Reading) (infer.Evidence, error) {
	ev := make(infer.Evidence, len(p.sensors))
	for _, name := range p.sensors {
		v, ok := r.Values[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no value for %s", ErrMissingReading, r.ID, name)
		}
		th := p.config.Thresholds[name]
		ev[name] = Classify(v, th.Low, th.High)
	}
	return ev, nil
}

// #endregion producer

// Config returns the thresholds the producer was built with.
func (p *Producer) Config() ProducerConfig { return p.config }
