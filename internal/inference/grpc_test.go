package inference

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/motrack/internal/detect"
	"github.com/banshee-data/motrack/internal/geom"
	"github.com/banshee-data/motrack/internal/linalg"
	"github.com/banshee-data/motrack/internal/testutil"
)

// startServer serves det and emb over an in-memory listener and returns a
// connected client.
func startServer(t *testing.T, det detect.Detector, emb detect.Embedder) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterService(srv, NewServer(det, emb))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	c := NewClient(conn)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDetectRoundTrip(t *testing.T) {
	t.Parallel()
	car := testutil.Person(40, 50, 60, 30)
	car.Type = detect.Car
	car.Confidence = 0.75
	det := testutil.NewScriptedDetector([]detect.Detection{
		testutil.Person(1.5, 2.25, 10, 20),
		car,
		{Type: detect.Dog, Box: geom.Box{X: 5, Y: 5, W: 5, H: 5}, Confidence: 0.9},
	})
	c := startServer(t, det, nil)

	got, err := c.Detect(context.Background(), testutil.BlankFrame(), 0.5, []detect.ObjectType{detect.Person, detect.Car})
	require.NoError(t, err)
	want := []detect.Detection{testutil.Person(1.5, 2.25, 10, 20), car}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("detections mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, det.Calls())
}

func TestEmbedRoundTrip(t *testing.T) {
	t.Parallel()
	emb := testutil.HueEmbedder(100, 4)
	c := startServer(t, testutil.NewScriptedDetector(), emb)

	boxes := []geom.Box{{X: 10, Y: 0, W: 5, H: 5}, {X: 250, Y: 0, W: 5, H: 5}}
	got, err := c.Embed(context.Background(), testutil.BlankFrame(), boxes)
	require.NoError(t, err)
	want := []linalg.Vector{{1, 0, 0, 0}, {0, 0, 1, 0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("descriptors mismatch (-want +got):\n%s", diff)
	}
}

func TestEmbedWithoutEmbedder(t *testing.T) {
	t.Parallel()
	c := startServer(t, testutil.NewScriptedDetector(), nil)
	_, err := c.Embed(context.Background(), nil, []geom.Box{{W: 1, H: 1}})
	require.Error(t, err)
	assert.Equal(t, codes.Unimplemented, status.Code(errors.Unwrap(err)))
}

func TestDetectorErrorBecomesInternal(t *testing.T) {
	t.Parallel()
	det := testutil.NewScriptedDetector()
	det.Err = errors.New("model not loaded")
	c := startServer(t, det, nil)

	_, err := c.Detect(context.Background(), nil, 0.5, nil)
	require.Error(t, err)
	st, ok := status.FromError(errors.Unwrap(err))
	require.True(t, ok)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Contains(t, st.Message(), "model not loaded")
}

func TestClientCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	c := startServer(t, testutil.NewScriptedDetector(), nil)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestFrameCodec(t *testing.T) {
	t.Parallel()
	s, err := encodeFrame(nil)
	require.NoError(t, err)
	assert.Empty(t, s)

	req, err := detectRequest(testutil.BlankFrame(), 0.25, nil)
	require.NoError(t, err)
	img, confidence, types, err := parseDetectRequest(req)
	require.NoError(t, err)
	assert.Equal(t, testutil.BlankFrame().Bounds(), img.Bounds())
	assert.Equal(t, float32(0.25), confidence)
	assert.Empty(t, types)
}

func TestParseRejectsMalformedPayloads(t *testing.T) {
	t.Parallel()
	bad, err := embedRequest(nil, nil)
	require.NoError(t, err)
	bad.Fields[fieldFrame] = structValue(t, "not base64!")
	_, _, err = parseEmbedRequest(bad)
	assert.Error(t, err)

	resp, err := detectResponse([]detect.Detection{testutil.Person(0, 0, 1, 1)})
	require.NoError(t, err)
	resp.Fields[fieldDetections].GetListValue().Values[0].GetStructValue().Fields[fieldBox] = structValue(t, []interface{}{1.0, 2.0})
	_, err = parseDetectResponse(resp)
	assert.ErrorContains(t, err, "box needs 4 numbers")
}

func structValue(t *testing.T, v interface{}) *structpb.Value {
	t.Helper()
	out, err := structpb.NewValue(v)
	require.NoError(t, err)
	return out
}

func TestExhaustedReplayIsEOF(t *testing.T) {
	t.Parallel()
	r, err := ReadReplay(strings.NewReader(sampleLog))
	require.NoError(t, err)
	c := startServer(t, r, r)
	ctx := context.Background()

	for i := 0; i < r.Len(); i++ {
		_, err := c.Detect(ctx, nil, 0, nil)
		require.NoError(t, err)
	}
	_, err = c.Detect(ctx, nil, 0, nil)
	assert.ErrorIs(t, err, io.EOF)
}
