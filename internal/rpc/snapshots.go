// Package rpc exposes the published market snapshot over gRPC. Messages are
// google.protobuf.Struct values, so no generated code is needed.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"rookie/internal/aggregate"
)

const (
	ServiceName  = "rookie.v1.Snapshots"
	getMethod    = "/" + ServiceName + "/Get"
	datasetField = "dataset"
)

// Snapshotter returns the latest published snapshot.
type Snapshotter interface {
	Snapshot() aggregate.Snapshot
}

// SnapshotsServer is the server API for the Snapshots service.
type SnapshotsServer interface {
	Get(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// Server implements SnapshotsServer over an orchestrator.
type Server struct {
	src Snapshotter
	log *slog.Logger
}

var _ SnapshotsServer = (*Server)(nil)

func NewServer(src Snapshotter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{src: src, log: logger.With("component", "rpc")}
}

// Register installs the Snapshots and health services on gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&snapshotsServiceDesc, s)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
}

// Get returns one dataset, or every dataset when the request's dataset
// field is empty.
func (s *Server) Get(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.message(s.src.Snapshot(), req.GetFields()[datasetField].GetStringValue())
}

func (s *Server) message(snap aggregate.Snapshot, name string) (*structpb.Struct, error) {
	resp := map[string]any{
		"version":    snap.Version,
		"cycle":      snap.Cycle,
		"updated_at": snap.UpdatedAt,
	}
	switch {
	case name == "":
		resp["datasets"] = snap.Datasets
		if len(snap.Errors) > 0 {
			resp["errors"] = snap.Errors
		}
	case slices.Contains(aggregate.DatasetNames, name):
		resp["dataset"] = name
		resp["assets"] = snap.Get(name)
		if msg, ok := snap.Errors[name]; ok {
			resp["error"] = msg
		}
	default:
		return nil, status.Errorf(codes.NotFound, "unknown dataset %q", name)
	}

	out, err := toStruct(resp)
	if err != nil {
		s.log.Error("encoding snapshot failed", "dataset", name, "error", err)
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStruct round-trips v through JSON so struct tags decide the field names.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return structpb.NewStruct(m)
}

// ---------------------------------------------------------------------------
// Service descriptor
// ---------------------------------------------------------------------------

func getHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotsServer).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SnapshotsServer).Get(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var snapshotsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SnapshotsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: getHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rookie/v1/snapshots",
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client calls the Snapshots service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Get fetches one dataset, or all of them when dataset is empty.
func (c *Client) Get(ctx context.Context, dataset string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]any{datasetField: dataset})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
