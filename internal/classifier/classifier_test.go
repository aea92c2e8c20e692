package classifier

import (
	"Go2NetClassifier/internal/model"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestLabel(t *testing.T) {
	want := []string{"Voice", "DNS", "Video", "Ping", "Game", "quake3", "Telnet"}
	for i, l := range want {
		got, err := Label(i)
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}

	for _, idx := range []int{-1, 7, 42} {
		_, err := Label(idx)
		assert.ErrorIs(t, err, model.ErrClassifierUnavailable)
	}
}

func TestCentroidClassifier(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "centroids.yaml")
	content := `centroids:
  - label: Voice
    features: [50, 10000, 50, 50, 10000, 10000, 50, 10000, 50, 50, 10000, 10000]
  - label: Ping
    features: [1, 98, 1, 1, 98, 98, 1, 98, 1, 1, 98, 98]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := LoadCentroids(path)
	require.NoError(t, err)

	idx, err := c.Classify(context.Background(), model.FeatureVector{2, 100, 1, 1, 100, 100, 1, 100, 1, 1, 100, 100})
	require.NoError(t, err)
	assert.Equal(t, 3, idx)

	idx, err = c.Classify(context.Background(), model.FeatureVector{40, 9000, 40, 40, 9000, 9000, 40, 9000, 40, 40, 9000, 9000})
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
}

func TestNewCentroidClassifier_Invalid(t *testing.T) {
	_, err := NewCentroidClassifier(nil)
	assert.Error(t, err)

	_, err = NewCentroidClassifier([]Centroid{{Label: "FTP", Features: make([]float64, model.FeatureLen)}})
	assert.Error(t, err)

	_, err = NewCentroidClassifier([]Centroid{{Label: "DNS", Features: []float64{1, 2}}})
	assert.Error(t, err)
}

type fakeModelServer struct {
	index int32
	err   error
	got   model.FeatureVector
}

func (s *fakeModelServer) Classify(_ context.Context, list *structpb.ListValue) (*wrapperspb.Int32Value, error) {
	if s.err != nil {
		return nil, s.err
	}
	v, err := FeaturesFromList(list)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.got = v
	return wrapperspb.Int32(s.index), nil
}

func startModelServer(t *testing.T, srv ClassifierServer) *GRPCClassifier {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterClassifierServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	c, err := NewGRPCClassifier("passthrough:///bufnet", time.Second,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGRPCClassifier(t *testing.T) {
	srv := &fakeModelServer{index: 2}
	c := startModelServer(t, srv)

	features := model.FeatureVector{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12.5}
	idx, err := c.Classify(context.Background(), features)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.Equal(t, features, srv.got)
}

func TestGRPCClassifier_OutOfRange(t *testing.T) {
	c := startModelServer(t, &fakeModelServer{index: 9})

	_, err := c.Classify(context.Background(), model.FeatureVector{})
	assert.ErrorIs(t, err, model.ErrClassifierUnavailable)
}

func TestGRPCClassifier_ServerError(t *testing.T) {
	c := startModelServer(t, &fakeModelServer{err: status.Error(codes.Unavailable, "model loading")})

	_, err := c.Classify(context.Background(), model.FeatureVector{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrClassifierUnavailable))
}

func TestFunc(t *testing.T) {
	var c model.Classifier = Func(func(_ context.Context, f model.FeatureVector) (int, error) {
		return int(f[0]), nil
	})
	idx, err := c.Classify(context.Background(), model.FeatureVector{4})
	require.NoError(t, err)
	assert.Equal(t, 4, idx)
}

func TestLoadCentroids_ShippedModel(t *testing.T) {
	c, err := LoadCentroids("../../configs/centroids.yaml")
	require.NoError(t, err)
	assert.Len(t, c.centroids, len(Labels))
}
