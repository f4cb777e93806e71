package modeldef

import (
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/network"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/signals"
)

// #region definition
// Definition is the file form of a network: structure, tables and the sensor
// thresholds used to discretize readings for it.
type Definition struct {
	Name      string                       `yaml:"name" validate:"required"`
	Query     string                       `yaml:"query"`
	Variables []VariableDef                `yaml:"variables" validate:"required,min=1,dive"`
	Edges     []network.Edge               `yaml:"edges" validate:"dive"`
	CPTs      []CPTDef                     `yaml:"cpts" validate:"required,min=1,dive"`
	Sensors   map[string]signals.Threshold `yaml:"sensors"`
}

// VariableDef declares one variable. States optionally names each state.
type VariableDef struct {
	Name        string   `yaml:"name" validate:"required"`
	Cardinality int      `yaml:"cardinality"`
	States      []string `yaml:"states,omitempty"`
}

// CPTDef is one conditional probability table in file form.
type CPTDef struct {
	Variable string   `yaml:"variable" validate:"required"`
	Parents  []string `yaml:"parents,omitempty"`
	Rows     []RowDef `yaml:"rows" validate:"required,min=1,dive"`
}

// RowDef is one distribution row.
type RowDef struct {
	Given []int     `yaml:"given,omitempty,flow"`
	Probs []float64 `yaml:"probs,flow" validate:"required,min=1"`
}

// #endregion definition

// #region batch
// Batch is a file of raw sensor readings.
type Batch struct {
	Records []signals.Reading `yaml:"records" json:"records" validate:"required,dive"`
}

// #endregion batch
