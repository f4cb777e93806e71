package modeldef

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/network"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/signals"
)

//go:embed networks/*.yaml records/*.yaml
var embedded embed.FS

const (
	defaultNetwork = "networks/fallo_sistema.yaml"
	sampleRecords  = "records/computadoras.yaml"
)

var validate = validator.New()

// ErrDuplicateRecord is returned when a batch repeats a record id.
var ErrDuplicateRecord = errors.New("duplicate record id")

// #region definition-loading
// Parse decodes and validates a YAML network definition. Unknown keys are rejected.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := decodeStrict(data, &def); err != nil {
		return nil, fmt.Errorf("parse network definition: %w", err)
	}
	if err := validate.Struct(&def); err != nil {
		return nil, fmt.Errorf("validate network definition: %w", err)
	}
	for _, v := range def.Variables {
		if len(v.States) > 0 && len(v.States) != v.Cardinality {
			return nil, fmt.Errorf("validate network definition: variable %s names %d states for cardinality %d",
				v.Name, len(v.States), v.Cardinality)
		}
	}
	return &def, nil
}

// Load reads a network definition from path.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read network %s: %w", path, err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Default returns the built-in system-failure network.
func Default() (*Definition, error) {
	data, err := embedded.ReadFile(defaultNetwork)
	if err != nil {
		return nil, fmt.Errorf("read embedded network: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault loads path, or the built-in network when path is empty.
func LoadOrDefault(path string) (*Definition, error) {
	if path == "" {
		return Default()
	}
	return Load(path)
}

// #endregion definition-loading

// #region build
// Build compiles the definition into a validated model named after it.
func (d *Definition) Build(opts ...network.BuildOption) (*network.Model, error) {
	vars := make([]network.Variable, len(d.Variables))
	for i, v := range d.Variables {
		vars[i] = network.Variable{Name: v.Name, Cardinality: v.Cardinality}
	}
	cpts := make([]network.CPTDef, len(d.CPTs))
	for i, c := range d.CPTs {
		rows := make([]network.Row, len(c.Rows))
		for j, r := range c.Rows {
			rows[j] = network.Row{Given: r.Given, Probs: r.Probs}
		}
		cpts[i] = network.CPTDef{Variable: c.Variable, Parents: c.Parents, Rows: rows}
	}
	opts = append([]network.BuildOption{network.WithName(d.Name)}, opts...)
	return network.Build(vars, d.Edges, cpts, opts...)
}

// ProducerConfig returns the sensor thresholds, falling back to the defaults
// of the reference fleet when the definition carries none.
func (d *Definition) ProducerConfig() signals.ProducerConfig {
	if len(d.Sensors) == 0 {
		return signals.DefaultProducerConfig()
	}
	cfg := signals.ProducerConfig{Thresholds: make(map[string]signals.Threshold, len(d.Sensors))}
	for name, t := range d.Sensors {
		cfg.Thresholds[name] = t
	}
	return cfg
}

// StateName returns the declared name of a state, or its index in decimal.
func (d *Definition) StateName(variable string, state int) string {
	for _, v := range d.Variables {
		if v.Name == variable && state >= 0 && state < len(v.States) {
			return v.States[state]
		}
	}
	return fmt.Sprintf("%d", state)
}

// #endregion build

// #region records
// ParseRecords decodes a batch of readings. JSON input is accepted since it is
// valid YAML.
func ParseRecords(data []byte) ([]signals.Reading, error) {
	var b Batch
	if err := decodeStrict(data, &b); err != nil {
		return nil, fmt.Errorf("parse records: %w", err)
	}
	if err := validate.Struct(&b); err != nil {
		return nil, fmt.Errorf("validate records: %w", err)
	}
	seen := make(map[string]bool, len(b.Records))
	for _, r := range b.Records {
		if r.ID == "" {
			return nil, fmt.Errorf("validate records: record without id")
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRecord, r.ID)
		}
		seen[r.ID] = true
	}
	return b.Records, nil
}

// LoadRecords reads a batch file.
func LoadRecords(path string) ([]signals.Reading, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records %s: %w", path, err)
	}
	return ParseRecords(data)
}

// SampleRecords returns the built-in five-machine fleet.
func SampleRecords() ([]signals.Reading, error) {
	data, err := embedded.ReadFile(sampleRecords)
	if err != nil {
		return nil, fmt.Errorf("read embedded records: %w", err)
	}
	return ParseRecords(data)
}

// LoadRecordsOrSample loads path, or the built-in fleet when path is empty.
func LoadRecordsOrSample(path string) ([]signals.Reading, error) {
	if path == "" {
		return SampleRecords()
	}
	return LoadRecords(path)
}

// #endregion records

func decodeStrict(data []byte, out interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty document")
		}
		return err
	}
	return nil
}
