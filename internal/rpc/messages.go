package rpc

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/infer"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/network"
)

// #region types
// QueryResult is the decoded answer of Query. Label, Probability and Reason
// are set only when the pipeline's query variable was asked for.
type QueryResult struct {
	Variable    string
	Probs       []float64
	Label       string
	Probability float64
	Reason      string
}

// DiagnoseResult is the decoded answer of Diagnose.
type DiagnoseResult struct {
	ID       string
	Evidence infer.Evidence
	QueryResult
}

// VariableInfo describes one network variable.
type VariableInfo struct {
	Name        string
	Cardinality int
	Parents     []string
}

// StructureResult is the decoded answer of Structure.
type StructureResult struct {
	Name      string
	Variables []VariableInfo
	Edges     []network.Edge
	Order     []string
	DOT       string
}

// #endregion types

// #region encode
func floatList(xs []float64) *structpb.Value {
	vals := make([]*structpb.Value, len(xs))
	for i, x := range xs {
		vals[i] = structpb.NewNumberValue(x)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func stringList(xs []string) *structpb.Value {
	vals := make([]*structpb.Value, len(xs))
	for i, x := range xs {
		vals[i] = structpb.NewStringValue(x)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func evidenceValue(ev infer.Evidence) *structpb.Value {
	fields := make(map[string]*structpb.Value, len(ev))
	for name, state := range ev {
		fields[name] = structpb.NewNumberValue(float64(state))
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: fields})
}

func readingsValue(values map[string]float64) *structpb.Value {
	fields := make(map[string]*structpb.Value, len(values))
	for name, v := range values {
		fields[name] = structpb.NewNumberValue(v)
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: fields})
}

func queryResultFields(r QueryResult, fields map[string]*structpb.Value) {
	fields["variable"] = structpb.NewStringValue(r.Variable)
	fields["probs"] = floatList(r.Probs)
	if r.Label == "" {
		return
	}
	fields["label"] = structpb.NewStringValue(r.Label)
	fields["probability"] = structpb.NewNumberValue(r.Probability)
	fields["reason"] = structpb.NewStringValue(r.Reason)
}

// #endregion encode

// #region decode
func decodeEvidence(v *structpb.Value) (infer.Evidence, error) {
	ev := infer.Evidence{}
	if v == nil {
		return ev, nil
	}
	s := v.GetStructValue()
	if s == nil {
		return nil, fmt.Errorf("evidence must be an object of variable -> state")
	}
	for name, f := range s.Fields {
		n, ok := f.Kind.(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("evidence %s: state must be a number", name)
		}
		if n.NumberValue != math.Trunc(n.NumberValue) {
			return nil, fmt.Errorf("evidence %s: state %v is not an integer", name, n.NumberValue)
		}
		ev[name] = int(n.NumberValue)
	}
	return ev, nil
}

func decodeReadings(v *structpb.Value) (map[string]float64, error) {
	out := map[string]float64{}
	if v == nil {
		return out, nil
	}
	s := v.GetStructValue()
	if s == nil {
		return nil, fmt.Errorf("values must be an object of sensor -> number")
	}
	for name, f := range s.Fields {
		n, ok := f.Kind.(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("value %s must be a number", name)
		}
		out[name] = n.NumberValue
	}
	return out, nil
}

func decodeFloats(v *structpb.Value) []float64 {
	list := v.GetListValue()
	if list == nil {
		return nil
	}
	out := make([]float64, len(list.Values))
	for i, x := range list.Values {
		out[i] = x.GetNumberValue()
	}
	return out
}

func decodeStrings(v *structpb.Value) []string {
	list := v.GetListValue()
	if list == nil {
		return nil
	}
	out := make([]string, len(list.Values))
	for i, x := range list.Values {
		out[i] = x.GetStringValue()
	}
	return out
}

func decodeQueryResult(s *structpb.Struct) QueryResult {
	f := s.GetFields()
	return QueryResult{
		Variable:    f["variable"].GetStringValue(),
		Probs:       decodeFloats(f["probs"]),
		Label:       f["label"].GetStringValue(),
		Probability: f["probability"].GetNumberValue(),
		Reason:      f["reason"].GetStringValue(),
	}
}

// #endregion decode
