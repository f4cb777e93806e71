package rpc

import (
	"context"
	"errors"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/infer"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/network"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/orchestrator"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/signals"
)

const tracerName = "github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/rpc"

// RPCObserver records handler latency by method and status code.
type RPCObserver interface {
	ObserveRPC(method, code string, elapsed time.Duration)
}

// #region server
// Server answers Diagnoser RPCs from a pipeline. It holds no mutable state.
type Server struct {
	pipeline *orchestrator.Pipeline
	tracer   trace.Tracer
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithTracerProvider sets the provider spans are started from. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) ServerOption {
	return func(s *Server) { s.tracer = tp.Tracer(tracerName) }
}

// NewServer wraps p.
func NewServer(p *orchestrator.Pipeline, opts ...ServerOption) *Server {
	s := &Server{pipeline: p, tracer: otel.Tracer(tracerName)}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ DiagnoserServer = (*Server)(nil)

// #endregion server

// #region query
// Query handles {"query": string?, "evidence": {name: state}}.
func (s *Server) Query(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	_, span := s.tracer.Start(ctx, "Diagnoser.Query")
	defer span.End()

	f := req.GetFields()
	query := f["query"].GetStringValue()
	if query == "" {
		query = s.pipeline.Config().Query
	}
	ev, err := decodeEvidence(f["evidence"])
	if err != nil {
		return nil, fail(span, status.Error(codes.InvalidArgument, err.Error()))
	}
	span.SetAttributes(
		attribute.String("diagnoser.query", query),
		attribute.Int("diagnoser.evidence_count", len(ev)),
	)

	post, err := s.pipeline.Engine().Query(query, ev)
	if err != nil {
		return nil, fail(span, toStatus(err))
	}
	res := QueryResult{Variable: post.Variable.Name, Probs: post.Probs}
	// only the pipeline's query variable has a fault state to gate on
	if query == s.pipeline.Config().Query {
		d := s.pipeline.Gate().Evaluate(post)
		span.SetAttributes(attribute.String("diagnoser.label", string(d.Label)))
		res.Label = string(d.Label)
		res.Probability = d.Probability
		res.Reason = d.Reason
	}

	fields := map[string]*structpb.Value{}
	queryResultFields(res, fields)
	return &structpb.Struct{Fields: fields}, nil
}

// #endregion query

// #region diagnose
// Diagnose handles {"id": string, "values": {sensor: number}}.
func (s *Server) Diagnose(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	_, span := s.tracer.Start(ctx, "Diagnoser.Diagnose")
	defer span.End()

	f := req.GetFields()
	values, err := decodeReadings(f["values"])
	if err != nil {
		return nil, fail(span, status.Error(codes.InvalidArgument, err.Error()))
	}
	r := signals.Reading{ID: f["id"].GetStringValue(), Values: values}
	span.SetAttributes(attribute.String("diagnoser.record", r.ID))

	o := s.pipeline.Diagnose(r)
	if o.Err != nil {
		return nil, fail(span, toStatus(o.Err))
	}
	span.SetAttributes(attribute.String("diagnoser.label", o.Label()))

	fields := map[string]*structpb.Value{
		"id":       structpb.NewStringValue(r.ID),
		"evidence": evidenceValue(o.Evidence),
	}
	queryResultFields(QueryResult{
		Variable:    o.Posterior.Variable.Name,
		Probs:       o.Posterior.Probs,
		Label:       o.Label(),
		Probability: o.Decision.Probability,
		Reason:      o.Decision.Reason,
	}, fields)
	return &structpb.Struct{Fields: fields}, nil
}

// #endregion diagnose

// #region structure
// Structure describes the network: variables, edges, topological order, DOT.
func (s *Server) Structure(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	_, span := s.tracer.Start(ctx, "Diagnoser.Structure")
	defer span.End()

	m := s.pipeline.Engine().Model()
	vars := make([]*structpb.Value, 0, len(m.Variables()))
	for _, v := range m.Variables() {
		vars = append(vars, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"name":        structpb.NewStringValue(v.Name),
			"cardinality": structpb.NewNumberValue(float64(v.Cardinality)),
			"parents":     stringList(m.Parents(v.Name)),
		}}))
	}
	edges := make([]*structpb.Value, 0, len(m.Edges()))
	for _, e := range m.Edges() {
		edges = append(edges, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"parent": structpb.NewStringValue(e.Parent),
			"child":  structpb.NewStringValue(e.Child),
		}}))
	}
	span.SetAttributes(attribute.Int("diagnoser.variables", len(vars)))

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"name":              structpb.NewStringValue(m.Name()),
		"variables":         structpb.NewListValue(&structpb.ListValue{Values: vars}),
		"edges":             structpb.NewListValue(&structpb.ListValue{Values: edges}),
		"topological_order": stringList(m.TopologicalOrder()),
		"dot":               structpb.NewStringValue(m.DOT()),
	}}, nil
}

// #endregion structure

// #region errors
// toStatus maps domain errors to gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, infer.ErrUnknownQuery):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, infer.ErrZeroProbabilityEvidence):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, infer.ErrEvidenceOutOfRange),
		errors.Is(err, infer.ErrQueryObserved),
		errors.Is(err, infer.ErrBadOrder),
		errors.Is(err, signals.ErrMissingReading),
		errors.Is(err, network.ErrModelInvalid):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	return err
}

// #endregion errors

// #region interceptor
// UnaryInterceptor logs failed calls and reports latency to obs (may be nil).
func UnaryInterceptor(obs RPCObserver) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		if err != nil {
			log.Printf("[RPC] %s: %s: %v", info.FullMethod, code, err)
		}
		if obs != nil {
			obs.ObserveRPC(info.FullMethod, code.String(), time.Since(start))
		}
		return resp, err
	}
}

// #endregion interceptor
