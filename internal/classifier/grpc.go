package classifier

import (
	"Go2NetClassifier/internal/model"
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName    = "netclassifier.v1.TrafficClassifier"
	classifyMethod = "/" + serviceName + "/Classify"
)

// ClassifierServer is implemented by model servers that classify feature vectors.
// The request is a list of FeatureLen numbers in feature order; the response is the
// class index.
type ClassifierServer interface {
	Classify(ctx context.Context, features *structpb.ListValue) (*wrapperspb.Int32Value, error)
}

// RegisterClassifierServer registers srv on a gRPC server.
func RegisterClassifierServer(s grpc.ServiceRegistrar, srv ClassifierServer) {
	s.RegisterService(&classifierServiceDesc, srv)
}

var classifierServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ClassifierServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Classify", Handler: classifyHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "netclassifier/v1/classifier.proto",
}

func classifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.ListValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClassifierServer).Classify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: classifyMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ClassifierServer).Classify(ctx, req.(*structpb.ListValue))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCClassifier calls a remote model server for every feature vector.
type GRPCClassifier struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// NewGRPCClassifier creates a client for the model server at addr. Plaintext
// transport is used unless opts override it.
func NewGRPCClassifier(addr string, timeout time.Duration, opts ...grpc.DialOption) (*GRPCClassifier, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier client for %s: %w", addr, err)
	}
	return &GRPCClassifier{conn: conn, timeout: timeout}, nil
}

// Classify sends the feature vector to the model server.
func (c *GRPCClassifier) Classify(ctx context.Context, features model.FeatureVector) (int, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := &structpb.ListValue{Values: make([]*structpb.Value, len(features))}
	for i, v := range features {
		req.Values[i] = structpb.NewNumberValue(v)
	}

	resp := new(wrapperspb.Int32Value)
	if err := c.conn.Invoke(ctx, classifyMethod, req, resp); err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrClassifierUnavailable, err)
	}
	idx := int(resp.GetValue())
	if _, err := Label(idx); err != nil {
		return 0, err
	}
	return idx, nil
}

// Close closes the underlying connection.
func (c *GRPCClassifier) Close() error {
	return c.conn.Close()
}

// FeaturesFromList decodes a request list back into a feature vector. It is meant
// for model servers implementing ClassifierServer.
func FeaturesFromList(list *structpb.ListValue) (model.FeatureVector, error) {
	var v model.FeatureVector
	if len(list.GetValues()) != model.FeatureLen {
		return v, fmt.Errorf("expected %d features, got %d", model.FeatureLen, len(list.GetValues()))
	}
	for i, val := range list.GetValues() {
		n, ok := val.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return v, fmt.Errorf("feature %d is not a number", i)
		}
		v[i] = n.NumberValue
	}
	return v, nil
}
