package gradio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/sse"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"image3d-service/internal/config"
	"image3d-service/internal/core/domain"
	ports "image3d-service/internal/core/ports/output"
)

const maxErrorBody = 4 << 10

type client struct {
	baseURL      string
	apiName      string
	token        string
	probeTimeout time.Duration
	httpClient   *http.Client
	fs           afero.Fs
}

// NewClient creates a client for a hosted Gradio space. Files are read from
// and downloaded into fs.
func NewClient(cfg *config.InferenceConfig, fs afero.Fs) ports.InferenceClient {
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	return &client{
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		apiName:      "/" + strings.Trim(cfg.APIName, "/"),
		token:        cfg.Token,
		probeTimeout: probeTimeout,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		fs: fs,
	}
}

// Gradio wire types
type fileData struct {
	Path     string            `json:"path,omitempty"`
	URL      string            `json:"url,omitempty"`
	OrigName string            `json:"orig_name,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
}

type callResponse struct {
	EventID string `json:"event_id"`
}

func (c *client) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/config", nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode >= 400 {
		return Classify(resp.StatusCode, "probe "+resp.Status)
	}
	return nil
}

func (c *client) Predict(ctx context.Context, req ports.PredictionRequest) (*domain.Prediction, error) {
	serverPath, err := c.upload(ctx, req.ImagePath)
	if err != nil {
		return nil, err
	}

	eventID, err := c.call(ctx, serverPath, filepath.Base(req.ImagePath), req.Params)
	if err != nil {
		return nil, err
	}

	outputs, err := c.await(ctx, eventID)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"event_id": eventID,
		"outputs":  len(outputs),
	}).Debug("gradio prediction completed")

	prediction := &domain.Prediction{}
	if len(outputs) > 0 {
		prediction.ModelPath, err = c.fetchOutput(ctx, outputs[0], req.WorkDir, "model.glb")
		if err != nil {
			return nil, err
		}
	}
	if req.Params.GenerateVideo && len(outputs) > 1 {
		prediction.VideoPath, err = c.fetchOutput(ctx, outputs[1], req.WorkDir, "video.mp4")
		if err != nil {
			return nil, err
		}
	}
	return prediction, nil
}

func (c *client) upload(ctx context.Context, imagePath string) (string, error) {
	data, err := afero.ReadFile(c.fs, imagePath)
	if err != nil {
		return "", fmt.Errorf("%w: read upload: %v", domain.ErrFilesystem, err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", filepath.Base(imagePath))
	if err != nil {
		return "", fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write multipart part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/gradio_api/upload", body, writer.FormDataContentType())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classifyResponse(resp)
	}

	var paths []string
	if err := json.NewDecoder(resp.Body).Decode(&paths); err != nil {
		return "", fmt.Errorf("%w: decode upload response: %v", domain.ErrRemoteInference, err)
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("%w: upload returned no file path", domain.ErrRemoteInference)
	}
	return paths[0], nil
}

func (c *client) call(ctx context.Context, serverPath, origName string, p domain.GenerationParameters) (string, error) {
	payload := map[string]interface{}{
		"data": []interface{}{
			fileData{
				Path:     serverPath,
				OrigName: origName,
				Meta:     map[string]string{"_type": "gradio.FileData"},
			},
			p.RemoveBackground,
			p.Seed,
			p.GenerateVideo,
			p.RefineDetails,
			p.ExpansionWeight,
			string(p.MeshInit),
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal call payload: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/gradio_api/call"+c.apiName, bytes.NewReader(raw), "application/json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classifyResponse(resp)
	}

	var cr callResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("%w: decode call response: %v", domain.ErrRemoteInference, err)
	}
	if cr.EventID == "" {
		return "", fmt.Errorf("%w: call returned no event id", domain.ErrRemoteInference)
	}
	return cr.EventID, nil
}

// await reads the event stream of a queued call until it completes or fails.
func (c *client) await(ctx context.Context, eventID string) ([]json.RawMessage, error) {
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/gradio_api/call"+c.apiName+"/"+url.PathEscape(eventID), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyResponse(resp)
	}

	events, err := sse.Decode(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: read event stream: %v", domain.ErrRemoteInference, err)
	}

	for _, ev := range events {
		data, _ := ev.Data.(string)
		switch ev.Event {
		case "complete":
			var outputs []json.RawMessage
			if err := json.Unmarshal([]byte(data), &outputs); err != nil {
				return nil, fmt.Errorf("%w: decode result: %v", domain.ErrRemoteInference, err)
			}
			return outputs, nil
		case "error":
			return nil, Classify(0, errorMessage(data))
		}
	}
	return nil, fmt.Errorf("%w: event stream ended without a result", domain.ErrRemoteInference)
}

// fetchOutput downloads one output file into workDir. A null output yields "".
// A file the server no longer has yields a local path that does not exist.
func (c *client) fetchOutput(ctx context.Context, raw json.RawMessage, workDir, fallbackName string) (string, error) {
	fd, ok := decodeFileData(raw)
	if !ok {
		return "", nil
	}

	name := fallbackName
	if fd.OrigName != "" {
		name = fd.OrigName
	} else if fd.Path != "" {
		name = path.Base(fd.Path)
	}
	if filepath.Ext(name) == "" {
		name += filepath.Ext(fallbackName)
	}
	local := filepath.Join(workDir, filepath.Base(name))

	fileURL := fd.URL
	if fileURL == "" {
		fileURL = c.baseURL + "/gradio_api/file=" + fd.Path
	}

	resp, err := c.do(ctx, http.MethodGet, fileURL, nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		log.WithField("url", fileURL).Warn("result asset not found on inference service")
		return local, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyResponse(resp)
	}

	out, err := c.fs.Create(local)
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %v", domain.ErrFilesystem, local, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return "", fmt.Errorf("%w: download %s: %v", domain.ErrRemoteInference, fileURL, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("%w: close %s: %v", domain.ErrFilesystem, local, err)
	}
	return local, nil
}

func (c *client) do(ctx context.Context, method, rawURL string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" && c.sameHost(req.URL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceUnreachable, err)
	}
	return resp, nil
}

func (c *client) sameHost(u *url.URL) bool {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(base.Host, u.Host)
}

func classifyResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return Classify(resp.StatusCode, errorMessage(string(body)))
}

// errorMessage extracts a readable message from a Gradio error payload, which
// may be a JSON string, an object with "error" or "detail", or plain text.
func errorMessage(data string) string {
	data = strings.TrimSpace(data)
	if data == "" || data == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal([]byte(data), &s); err == nil {
		return s
	}
	var obj struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal([]byte(data), &obj); err == nil {
		if obj.Error != "" {
			return obj.Error
		}
		if obj.Detail != "" {
			return obj.Detail
		}
	}
	return data
}

// decodeFileData accepts a FileData object or a video payload {"video": FileData}.
func decodeFileData(raw json.RawMessage) (fileData, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return fileData{}, false
	}
	var wrapped struct {
		Video *fileData `json:"video"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Video != nil {
		return *wrapped.Video, wrapped.Video.Path != "" || wrapped.Video.URL != ""
	}
	var fd fileData
	if err := json.Unmarshal(raw, &fd); err != nil {
		return fileData{}, false
	}
	return fd, fd.Path != "" || fd.URL != ""
}
