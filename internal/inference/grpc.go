// Package inference adapts remote and recorded inference to the detect
// interfaces.
//
// The gRPC service carries google.protobuf.Struct payloads so neither side
// needs generated stubs:
//
//	/motrack.inference.v1.Inference/Detect  {frame, confidence, types} -> {detections}
//	/motrack.inference.v1.Inference/Embed   {frame, boxes}             -> {descriptors}
//
// Frames travel as base64 PNG. Boxes are [x, y, w, h] lists. A source that
// has run out of frames answers OutOfRange, which the client reports as
// io.EOF.
package inference

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/motrack/internal/detect"
	"github.com/banshee-data/motrack/internal/geom"
	"github.com/banshee-data/motrack/internal/linalg"
	"github.com/banshee-data/motrack/internal/monitoring"
)

const (
	serviceName  = "motrack.inference.v1.Inference"
	detectMethod = "/" + serviceName + "/Detect"
	embedMethod  = "/" + serviceName + "/Embed"

	// maxMsgSize bounds a frame plus its payload.
	maxMsgSize = 32 * 1024 * 1024
)

var logf = monitoring.Component("inference")

// Ensure the client satisfies both collaborator interfaces.
var (
	_ detect.Detector = (*Client)(nil)
	_ detect.Embedder = (*Client)(nil)
)

// InferenceServer is the server side of the inference service.
type InferenceServer interface {
	Detect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Embed(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*InferenceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Detect", Handler: detectHandler},
		{MethodName: "Embed", Handler: embedHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "motrack/inference.proto",
}

func detectHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InferenceServer).Detect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: detectMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InferenceServer).Detect(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func embedHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InferenceServer).Embed(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: embedMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InferenceServer).Embed(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Server exposes a local Detector and optional Embedder over gRPC.
type Server struct {
	detector detect.Detector
	embedder detect.Embedder
}

// Ensure Server implements the gRPC interface.
var _ InferenceServer = (*Server)(nil)

// NewServer wraps det and emb. emb may be nil; Embed then answers
// Unimplemented.
func NewServer(det detect.Detector, emb detect.Embedder) *Server {
	return &Server{detector: det, embedder: emb}
}

// RegisterService registers the inference service with the gRPC server.
func RegisterService(grpcServer *grpc.Server, server *Server) {
	grpcServer.RegisterService(&serviceDesc, server)
}

// Detect implements InferenceServer.
func (s *Server) Detect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	img, confidence, types, err := parseDetectRequest(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "detect: %v", err)
	}
	dets, err := s.detector.Detect(ctx, img, confidence, types)
	if err != nil {
		return nil, toStatus("detect", err)
	}
	resp, err := detectResponse(dets)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "detect: %v", err)
	}
	return resp, nil
}

// Embed implements InferenceServer.
func (s *Server) Embed(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.embedder == nil {
		return nil, status.Error(codes.Unimplemented, "embed: no embedder configured")
	}
	img, boxes, err := parseEmbedRequest(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "embed: %v", err)
	}
	descriptors, err := s.embedder.Embed(ctx, img, boxes)
	if err != nil {
		return nil, toStatus("embed", err)
	}
	resp, err := embedResponse(descriptors)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "embed: %v", err)
	}
	return resp, nil
}

func toStatus(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	if errors.Is(err, io.EOF) {
		return status.Errorf(codes.OutOfRange, "%s: end of stream", op)
	}
	logf("%s failed: %v", op, err)
	return status.Errorf(codes.Internal, "%s: %v", op, err)
}

// fromStatus maps an exhausted remote source back to io.EOF.
func fromStatus(err error) error {
	if status.Code(err) == codes.OutOfRange {
		return io.EOF
	}
	return err
}

// Client is a Detector and Embedder backed by a remote inference service.
// Close is idempotent so one Client can serve as both collaborators of a
// matcher.
type Client struct {
	conn      *grpc.ClientConn
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to an inference server at target without transport security.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMsgSize),
			grpc.MaxCallSendMsgSize(maxMsgSize),
		),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("inference: dial %s: %w", target, err)
	}
	logf("client for %s ready", target)
	return NewClient(conn), nil
}

// NewClient takes ownership of conn.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Detect implements detect.Detector.
func (c *Client) Detect(ctx context.Context, img image.Image, confidence float32, types []detect.ObjectType) ([]detect.Detection, error) {
	req, err := detectRequest(img, confidence, types)
	if err != nil {
		return nil, fmt.Errorf("inference: detect: %w", err)
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, detectMethod, req, resp); err != nil {
		return nil, fmt.Errorf("inference: detect: %w", fromStatus(err))
	}
	dets, err := parseDetectResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("inference: detect: %w", err)
	}
	return dets, nil
}

// Embed implements detect.Embedder.
func (c *Client) Embed(ctx context.Context, img image.Image, boxes []geom.Box) ([]linalg.Vector, error) {
	req, err := embedRequest(img, boxes)
	if err != nil {
		return nil, fmt.Errorf("inference: embed: %w", err)
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, embedMethod, req, resp); err != nil {
		return nil, fmt.Errorf("inference: embed: %w", fromStatus(err))
	}
	return parseEmbedResponse(resp), nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
