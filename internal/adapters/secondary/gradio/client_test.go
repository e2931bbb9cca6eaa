package gradio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image3d-service/internal/config"
	"image3d-service/internal/core/domain"
	ports "image3d-service/internal/core/ports/output"
)

type fakeSpace struct {
	t           *testing.T
	callStatus  int
	callBody    string
	stream      string
	missingFile bool
	gotData     []interface{}
	gotAuth     []string
}

func (f *fakeSpace) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.gotAuth = append(f.gotAuth, r.Header.Get("Authorization"))
	p := r.URL.Path

	switch {
	case p == "/config":
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"version":"5.0"}`)

	case p == "/gradio_api/upload" && r.Method == http.MethodPost:
		file, header, err := r.FormFile("files")
		if !assert.NoError(f.t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(f.t, "fake-png", string(data))
		fmt.Fprintf(w, `["/tmp/gradio/abc/%s"]`, header.Filename)

	case p == "/gradio_api/call/generate3dv2" && r.Method == http.MethodPost:
		if f.callStatus != 0 {
			w.WriteHeader(f.callStatus)
			io.WriteString(w, f.callBody)
			return
		}
		var body struct {
			Data []interface{} `json:"data"`
		}
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.gotData = body.Data
		io.WriteString(w, `{"event_id":"ev-1"}`)

	case p == "/gradio_api/call/generate3dv2/ev-1":
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, f.stream)

	case strings.HasPrefix(p, "/gradio_api/file="):
		if f.missingFile {
			http.NotFound(w, r)
			return
		}
		if strings.HasSuffix(p, ".mp4") {
			io.WriteString(w, "fake-mp4")
			return
		}
		io.WriteString(w, "glTF-binary")

	default:
		http.NotFound(w, r)
	}
}

func setupClient(t *testing.T, space *fakeSpace) (afero.Fs, ports.InferenceClient, *httptest.Server) {
	t.Helper()
	space.t = t
	srv := httptest.NewServer(space)
	t.Cleanup(srv.Close)

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/work", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/work/cat.png", []byte("fake-png"), 0o644))

	c := NewClient(&config.InferenceConfig{
		URL:          srv.URL,
		APIName:      "/generate3dv2",
		Token:        "hf_test",
		ProbeTimeout: time.Second,
	}, fs)
	return fs, c, srv
}

func completeStream(srvURL string) string {
	return "event: generating\ndata: null\n\n" +
		"event: complete\n" +
		`data: [{"path":"/tmp/gradio/out/mesh.glb","url":"` + srvURL + `/gradio_api/file=/tmp/gradio/out/mesh.glb","orig_name":"mesh.glb"},` +
		`{"video":{"path":"/tmp/gradio/out/turntable.mp4"},"subtitles":null}]` + "\n\n"
}

func defaultParams() domain.GenerationParameters {
	return domain.GenerationParameters{
		RemoveBackground: true, Seed: 40, RefineDetails: true,
		ExpansionWeight: 0.2, MeshInit: domain.MeshInitThin,
	}
}

func TestClient_Probe(t *testing.T) {
	_, c, _ := setupClient(t, &fakeSpace{})
	assert.NoError(t, c.Probe(testContext(t)))
}

func TestClient_ProbeUnreachable(t *testing.T) {
	_, c, srv := setupClient(t, &fakeSpace{})
	srv.Close()

	err := c.Probe(testContext(t))
	assert.ErrorIs(t, err, domain.ErrServiceUnreachable)
}

func TestClient_PredictDownloadsAssets(t *testing.T) {
	space := &fakeSpace{}
	fs, c, srv := setupClient(t, space)
	space.stream = completeStream(srv.URL)

	params := defaultParams()
	params.GenerateVideo = true

	pred, err := c.Predict(testContext(t), ports.PredictionRequest{
		ImagePath: "/work/cat.png",
		WorkDir:   "/work",
		Params:    params,
	})
	require.NoError(t, err)

	assert.Equal(t, "/work/mesh.glb", pred.ModelPath)
	assert.Equal(t, "/work/turntable.mp4", pred.VideoPath)

	model, err := afero.ReadFile(fs, pred.ModelPath)
	require.NoError(t, err)
	assert.Equal(t, "glTF-binary", string(model))
	video, err := afero.ReadFile(fs, pred.VideoPath)
	require.NoError(t, err)
	assert.Equal(t, "fake-mp4", string(video))

	require.Len(t, space.gotData, 7)
	assert.Equal(t, true, space.gotData[1])
	assert.Equal(t, float64(40), space.gotData[2])
	assert.Equal(t, true, space.gotData[3])
	assert.Equal(t, 0.2, space.gotData[5])
	assert.Equal(t, "thin", space.gotData[6])
	for _, auth := range space.gotAuth {
		assert.Equal(t, "Bearer hf_test", auth)
	}
}

func TestClient_PredictWithoutVideo(t *testing.T) {
	space := &fakeSpace{}
	_, c, srv := setupClient(t, space)
	space.stream = "event: complete\n" +
		`data: [{"path":"/tmp/gradio/out/mesh.glb","url":"` + srv.URL + `/gradio_api/file=/tmp/gradio/out/mesh.glb"}, null]` + "\n\n"

	pred, err := c.Predict(testContext(t), ports.PredictionRequest{ImagePath: "/work/cat.png", WorkDir: "/work", Params: defaultParams()})
	require.NoError(t, err)
	assert.Equal(t, "/work/mesh.glb", pred.ModelPath)
	assert.Empty(t, pred.VideoPath)
}

func TestClient_PredictSkipsVideoWhenNotRequested(t *testing.T) {
	space := &fakeSpace{}
	fs, c, srv := setupClient(t, space)
	space.stream = completeStream(srv.URL)

	pred, err := c.Predict(testContext(t), ports.PredictionRequest{ImagePath: "/work/cat.png", WorkDir: "/work", Params: defaultParams()})
	require.NoError(t, err)
	assert.Equal(t, "/work/mesh.glb", pred.ModelPath)
	assert.Empty(t, pred.VideoPath)

	exists, _ := afero.Exists(fs, "/work/turntable.mp4")
	assert.False(t, exists)
}

func TestClient_PredictMissingAssetReturnsNonexistentPath(t *testing.T) {
	space := &fakeSpace{missingFile: true}
	fs, c, srv := setupClient(t, space)
	space.stream = completeStream(srv.URL)

	pred, err := c.Predict(testContext(t), ports.PredictionRequest{ImagePath: "/work/cat.png", WorkDir: "/work", Params: defaultParams()})
	require.NoError(t, err)

	exists, _ := afero.Exists(fs, pred.ModelPath)
	assert.False(t, exists)
}

func TestClient_PredictQuotaErrorEvent(t *testing.T) {
	space := &fakeSpace{
		stream: "event: error\n" +
			`data: "You have exceeded your GPU quota (60s requested vs. 12s left). Try again in 0:04:13"` + "\n\n",
	}
	_, c, _ := setupClient(t, space)

	_, err := c.Predict(testContext(t), ports.PredictionRequest{ImagePath: "/work/cat.png", WorkDir: "/work", Params: defaultParams()})

	var quotaErr *domain.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, "0:04:13", quotaErr.WaitText)
	assert.Equal(t, 4*time.Minute+13*time.Second, quotaErr.WaitTime)
}

func TestClient_PredictRateLimited(t *testing.T) {
	space := &fakeSpace{callStatus: http.StatusTooManyRequests, callBody: `{"detail":"Too many requests"}`}
	_, c, _ := setupClient(t, space)

	_, err := c.Predict(testContext(t), ports.PredictionRequest{ImagePath: "/work/cat.png", WorkDir: "/work", Params: defaultParams()})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestClient_PredictGenericErrorPassesMessageThrough(t *testing.T) {
	space := &fakeSpace{stream: "event: error\ndata: {\"error\":\"CUDA out of memory\"}\n\n"}
	_, c, _ := setupClient(t, space)

	_, err := c.Predict(testContext(t), ports.PredictionRequest{ImagePath: "/work/cat.png", WorkDir: "/work", Params: defaultParams()})
	assert.ErrorIs(t, err, domain.ErrRemoteInference)
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

func TestClient_PredictStreamWithoutResult(t *testing.T) {
	space := &fakeSpace{stream: "event: heartbeat\ndata: null\n\n"}
	_, c, _ := setupClient(t, space)

	_, err := c.Predict(testContext(t), ports.PredictionRequest{ImagePath: "/work/cat.png", WorkDir: "/work", Params: defaultParams()})
	assert.ErrorIs(t, err, domain.ErrRemoteInference)
}

// testContext returns a context cancelled when the test finishes
// (equivalent of testing.T.Context, which requires Go 1.24).
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
