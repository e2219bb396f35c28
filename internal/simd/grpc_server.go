package simd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/AmoghJohri/Epidemic-Modeling/internal/calibration"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/metrics"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/logger"
)

// SimulationServiceName is the fully qualified gRPC service name.
const SimulationServiceName = "epidemic.v1.SimulationService"

// SimulationServiceServer is the server API of epidemic.v1.SimulationService.
// Every message is a google.protobuf.Struct carrying the same JSON objects
// as the HTTP API.
type SimulationServiceServer interface {
	Simulate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartCalibration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCalibration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopCalibration(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// SimulationServiceDesc describes the service for grpc.Server.RegisterService.
var SimulationServiceDesc = grpc.ServiceDesc{
	ServiceName: SimulationServiceName,
	HandlerType: (*SimulationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Simulate", Handler: unaryHandler("Simulate", SimulationServiceServer.Simulate)},
		{MethodName: "StartCalibration", Handler: unaryHandler("StartCalibration", SimulationServiceServer.StartCalibration)},
		{MethodName: "GetCalibration", Handler: unaryHandler("GetCalibration", SimulationServiceServer.GetCalibration)},
		{MethodName: "StopCalibration", Handler: unaryHandler("StopCalibration", SimulationServiceServer.StopCalibration)},
	},
	Streams: []grpc.StreamDesc{},
}

func unaryHandler(method string, call func(SimulationServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	fullMethod := "/" + SimulationServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SimulationServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SimulationServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterSimulationService registers srv on s.
func RegisterSimulationService(s grpc.ServiceRegistrar, srv SimulationServiceServer) {
	s.RegisterService(&SimulationServiceDesc, srv)
}

// NewGRPCServer builds a grpc.Server carrying the simulation service and
// the standard health service, reporting SERVING for both. Simulate and
// StartCalibration share the HTTP API's per-client rate limit.
func NewGRPCServer(executor *RunExecutor, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(rateLimitInterceptor(executor))}, opts...)
	srv := grpc.NewServer(opts...)
	RegisterSimulationService(srv, NewSimulationGRPCServer(executor))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(SimulationServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

func rateLimitInterceptor(executor *RunExecutor) grpc.UnaryServerInterceptor {
	limiter := executor.Policies().GetRateLimiting()
	limited := map[string]bool{
		"/" + SimulationServiceName + "/Simulate":         true,
		"/" + SimulationServiceName + "/StartCalibration": true,
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if limiter.Enabled() && limited[info.FullMethod] {
			client := "unknown"
			if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
				client = p.Addr.String()
				if host, _, err := net.SplitHostPort(client); err == nil {
					client = host
				}
			}
			if !limiter.AllowRequest(client, info.FullMethod, time.Now()) {
				metrics.RecordCount(executor.Metrics(), metrics.MetricRejectedRequests, metrics.RouteLabels(info.FullMethod))
				return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
			}
		}
		return handler(ctx, req)
	}
}

// SimulationGRPCServer implements SimulationServiceServer on a RunExecutor.
type SimulationGRPCServer struct {
	store    *RunStore
	Executor *RunExecutor
}

func NewSimulationGRPCServer(executor *RunExecutor) *SimulationGRPCServer {
	return &SimulationGRPCServer{
		store:    executor.Store(),
		Executor: executor,
	}
}

// runRef is the request of GetCalibration and StopCalibration.
type runRef struct {
	RunID string `json:"run_id"`
	Limit int    `json:"limit,omitempty"` // results to return; GetCalibration only
}

func (s *SimulationGRPCServer) Simulate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SimulationRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	res, err := s.Executor.Simulate(ctx, req)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(res)
}

func (s *SimulationGRPCServer) StartCalibration(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req CalibrationRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	run, err := s.Executor.Submit(req)
	if err != nil {
		return nil, grpcError(err)
	}
	logger.Info("calibration accepted (grpc)", "run_id", run.ID)
	return toStruct(map[string]any{"run": run})
}

func (s *SimulationGRPCServer) GetCalibration(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var ref runRef
	if err := fromStruct(in, &ref); err != nil {
		return nil, err
	}
	if ref.RunID == "" {
		return nil, status.Error(codes.InvalidArgument, ErrRunIDMissing.Error())
	}
	rec, ok := s.store.Get(ref.RunID)
	if !ok {
		return nil, status.Error(codes.NotFound, fmt.Sprintf("%v: %s", ErrRunNotFound, ref.RunID))
	}
	out := map[string]any{"run": rec.Run}
	if rec.Results != nil {
		out["results"] = calibration.Top(rec.Results, limitOrDefault(min(max(ref.Limit, 0), maxListLimit)))
	}
	return toStruct(out)
}

func (s *SimulationGRPCServer) StopCalibration(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var ref runRef
	if err := fromStruct(in, &ref); err != nil {
		return nil, err
	}
	run, err := s.Executor.Stop(ref.RunID)
	if err != nil {
		return nil, grpcError(err)
	}
	logger.Info("calibration cancelled (grpc)", "run_id", ref.RunID)
	return toStruct(map[string]any{"run": run})
}

// grpcError maps run lifecycle and validation errors to status codes.
func grpcError(err error) error {
	switch {
	case errors.Is(err, ErrRunNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrRunTerminal):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrRunExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ErrRunIDMissing), isClientError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// toStruct converts any JSON-encodable value to a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}

// fromStruct decodes a Struct into dst, rejecting unknown fields.
func fromStruct(in *structpb.Struct, dst any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	raw, err := protojson.Marshal(in)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return status.Error(codes.InvalidArgument, fmt.Sprintf("invalid request: %v", err))
	}
	return nil
}

// SimulationServiceClient is a thin client for epidemic.v1.SimulationService.
type SimulationServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSimulationServiceClient(cc grpc.ClientConnInterface) *SimulationServiceClient {
	return &SimulationServiceClient{cc: cc}
}

func (c *SimulationServiceClient) invoke(ctx context.Context, method string, in any, out any, opts ...grpc.CallOption) error {
	req, err := toStruct(in)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+SimulationServiceName+"/"+method, req, resp, opts...); err != nil {
		return err
	}
	raw, err := protojson.Marshal(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// CalibrationReply is the response of StartCalibration, GetCalibration and StopCalibration.
type CalibrationReply struct {
	Run     Run                  `json:"run"`
	Results []calibration.Result `json:"results,omitempty"`
}

func (c *SimulationServiceClient) Simulate(ctx context.Context, req SimulationRequest, opts ...grpc.CallOption) (map[string]any, error) {
	var out map[string]any
	err := c.invoke(ctx, "Simulate", req, &out, opts...)
	return out, err
}

func (c *SimulationServiceClient) StartCalibration(ctx context.Context, req CalibrationRequest, opts ...grpc.CallOption) (*CalibrationReply, error) {
	out := new(CalibrationReply)
	return out, c.invoke(ctx, "StartCalibration", req, out, opts...)
}

func (c *SimulationServiceClient) GetCalibration(ctx context.Context, runID string, limit int, opts ...grpc.CallOption) (*CalibrationReply, error) {
	out := new(CalibrationReply)
	return out, c.invoke(ctx, "GetCalibration", runRef{RunID: runID, Limit: limit}, out, opts...)
}

func (c *SimulationServiceClient) StopCalibration(ctx context.Context, runID string, opts ...grpc.CallOption) (*CalibrationReply, error) {
	out := new(CalibrationReply)
	return out, c.invoke(ctx, "StopCalibration", runRef{RunID: runID}, out, opts...)
}
