// Package web holds the HTML templates of the upload UI.
package web

import (
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"

	"image3d-service/internal/core/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

const ModelViewerScript = "https://unpkg.com/@google/model-viewer/dist/model-viewer.min.js"

// Templates parses the embedded pages. Use with gin's Engine.SetHTMLTemplate.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"humanSize": HumanSize,
	}).ParseFS(templateFS, "templates/*.html")
}

// Alternative is a third-party service suggested when generation fails.
type Alternative struct {
	Name string
	URL  string
	Note string
}

var Alternatives = []Alternative{
	{Name: "Unique3D on Hugging Face", URL: "https://huggingface.co/spaces/Wuvin/Unique3D", Note: "run the space directly in the browser"},
	{Name: "Tripo3D", URL: "https://www.tripo3d.ai", Note: "image to 3D with a free tier"},
	{Name: "Meshy", URL: "https://www.meshy.ai", Note: "image and text to 3D"},
	{Name: "CSM", URL: "https://www.csm.ai", Note: "image to 3D world assets"},
}

type IndexPage struct {
	Title        string
	Accept       string
	Extensions   []string
	MaxUploadMiB int64
	Defaults     domain.GenerationParameters
}

// Download is one artifact offered inline as a data URI.
type Download struct {
	Label string
	Name  string
	Size  int64
	Href  template.URL
}

type ResultPage struct {
	Title    string
	Success  bool
	Filename string

	ModelSrc  template.URL
	ImageSrc  template.URL
	VideoSrc  template.URL
	Downloads []Download
	BundleURL string
	Attempts  int

	Error        string
	QuotaWait    string
	Alternatives []Alternative
	ViewerScript string
}

// DataURI embeds data in a URL that html/template will not rewrite.
func DataURI(contentType string, data []byte) template.URL {
	return template.URL("data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data))
}

func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
