package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"
)

var templates = template.Must(template.New("view").Funcs(template.FuncMap{
	"clock": func(e Entry) string { return e.Time.Format("15:04:05") },
	"image": imageSource,
}).Parse(pageTemplate))

// imageSource lets inline image data URIs through the URL sanitizer; anything
// else is left to the default escaping.
func imageSource(src string) any {
	if strings.HasPrefix(src, "data:image/") {
		return template.URL(src)
	}
	return src
}

// Fragment names accepted by RenderFragment.
const (
	FragmentStatus        = "status"
	FragmentVideo         = "video"
	FragmentDetection     = "detection"
	FragmentScene         = "scene"
	FragmentTranscript    = "transcript"
	FragmentNotifications = "notifications"
	FragmentOverlay       = "overlay"
	FragmentCapture       = "capture"
	FragmentBody          = "body"
)

func RenderPage(w io.Writer, s State) error {
	return templates.ExecuteTemplate(w, "page", s)
}

func RenderFragment(w io.Writer, name string, s State) error {
	if templates.Lookup(name) == nil {
		return fmt.Errorf("unknown fragment %q", name)
	}
	return templates.ExecuteTemplate(w, name, s)
}

func RenderStatus(s State) (string, error)        { return renderString(FragmentStatus, s) }
func RenderDetection(s State) (string, error)     { return renderString(FragmentDetection, s) }
func RenderScene(s State) (string, error)         { return renderString(FragmentScene, s) }
func RenderTranscript(s State) (string, error)    { return renderString(FragmentTranscript, s) }
func RenderNotifications(s State) (string, error) { return renderString(FragmentNotifications, s) }

func renderString(name string, s State) (string, error) {
	var buf bytes.Buffer
	if err := RenderFragment(&buf, name, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const pageTemplate = `
{{define "status"}}<div id="status">
<span id="status-indicator">{{if .Connected}}<i class="fas fa-circle text-success me-1"></i>Connected{{else}}<i class="fas fa-circle text-danger me-1"></i>Disconnected{{end}}</span>
<span id="connection-status">{{if .Connected}}<span class="text-success">online</span>{{else}}<span class="text-danger">offline</span>{{end}}</span>
<span id="camera-status" class="{{.Camera.Class}}">{{.Camera}}</span>
<span id="fps-counter">{{.FPS}} FPS</span>
</div>{{end}}

{{define "video"}}<img id="video-stream" src="{{image .Video.Src}}" alt="video stream">{{with .Video.Timestamp}}<small id="frame-time" class="text-muted">{{.}}</small>{{end}}{{end}}

{{define "detection"}}<div id="detection">
<span id="object-count">{{.Detection.ObjectCount}}</span>
<div id="detection-results">{{range .Detection.Objects}}<span class="detection-item">{{.ClassName}} <span class="confidence">{{.Label}}</span></span>{{else}}<p class="text-muted mb-0">No detections</p>{{end}}</div>
</div>{{end}}

{{define "scene"}}<div id="scene-analysis">{{with .Scene}}{{if not .Analyzed}}<p class="text-muted mb-0">No analysis yet</p>{{else if .Error}}<p class="text-danger">{{.Error}}</p>{{else}}
<div class="mb-3"><h6>Scene description:</h6><p class="mb-2">{{.Description}}</p></div>
<div class="mb-3"><h6>Safety assessment:</h6><div class="safety-level {{.Severity.Class}}">Safety level: {{.SafetyLevel}}</div><p class="mb-2">{{.SafetyDescription}}</p></div>
<div class="mb-2"><h6>Detection summary:</h6><p class="mb-0">{{.DetectionSummary}}</p></div>
<small class="text-muted">Analyzed at: {{.Timestamp}}</small>{{end}}{{end}}</div>{{end}}

{{define "transcript"}}<div id="chat-messages">{{range .Transcript}}{{if .Provisional}}<div class="message {{.Sender}} loading-message"><div class="d-flex align-items-center"><div class="spinner-border spinner-border-sm me-2" role="status"></div>{{.Text}}</div></div>{{else}}<div class="message {{.Sender}}"><div>{{.Text}}</div><div class="timestamp">{{clock .}}</div></div>{{end}}{{end}}</div>{{end}}

{{define "notifications"}}<div id="notifications">{{range .Notifications}}<div class="alert alert-{{.Level.AlertClass}} alert-dismissible fade show" data-id="{{.ID}}">{{.Text}}<button type="button" class="btn-close" data-dismiss="{{.ID}}"></button></div>{{end}}</div>{{end}}

{{define "overlay"}}<div id="loading-overlay" class="{{if not .Busy}}d-none{{end}}"><div class="spinner-border" role="status"></div></div>{{end}}

{{define "capture"}}<div id="captureModal" class="{{if not .Capture.Open}}d-none{{end}}">{{if .Capture.Open}}<img id="captured-image" src="{{image .Capture.Image}}" alt="captured image"><span id="capture-time">{{.Capture.Timestamp}}</span><span id="capture-name">{{.Capture.Filename}}</span><button type="button" data-action="capture/close">Close</button>{{end}}</div>{{end}}

{{define "body"}}{{template "status" .}}
{{template "video" .}}
{{template "detection" .}}
{{template "scene" .}}
{{template "transcript" .}}
{{template "notifications" .}}
{{template "overlay" .}}
{{template "capture" .}}{{end}}

{{define "page"}}<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Vision Assistant</title></head>
<body>
<div id="app">{{template "body" .}}</div>
<div id="controls">
<button type="button" data-action="camera/start">Start camera</button>
<button type="button" data-action="camera/stop">Stop camera</button>
<button type="button" data-action="capture">Capture</button>
<button type="button" data-action="analyze">Analyze scene</button>
<input id="question-input" type="text" value="{{.Question}}">
<button type="button" id="ask-question">Ask</button>
</div>
<script>
const post = (path, body) => fetch('/api/actions/' + path, {method: 'POST', headers: {'Content-Type': 'application/json'}, body: JSON.stringify(body || {})});
document.getElementById('controls').addEventListener('click', e => { const a = e.target.dataset.action; if (a) post(a); });
document.getElementById('app').addEventListener('click', e => {
  if (e.target.dataset.dismiss) post('notifications/' + e.target.dataset.dismiss + '/dismiss');
  if (e.target.dataset.action) post(e.target.dataset.action);
});
const input = document.getElementById('question-input');
document.getElementById('ask-question').addEventListener('click', () => post('question', {text: input.value}).then(() => { input.value = ''; }));
input.addEventListener('keypress', e => { if (e.key === 'Enter') post('question', {text: input.value}).then(() => { input.value = ''; }); });
new EventSource('/api/events').onmessage = () => fetch('/fragments/body').then(r => r.text()).then(html => { document.getElementById('app').innerHTML = html; });
</script>
</body>
</html>{{end}}
`
