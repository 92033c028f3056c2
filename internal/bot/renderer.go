package bot

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"nuclight.org/crossposter/internal/approval"
	"nuclight.org/crossposter/internal/publish"
)

// TelegramMaxMessageLength is the maximum length of a Telegram message (4096 chars)
const TelegramMaxMessageLength = 4096

// previewLength bounds the text excerpt shown in /pending.
const previewLength = 40

//go:embed templates/*
var templates embed.FS

var promptTmpl *template.Template
var reportTmpl *template.Template
var pendingTmpl *template.Template
var startTmpl *template.Template
var deliveriesTmpl *template.Template

var platformTitles = map[string]string{
	"twitter":   "Twitter",
	"bluesky":   "Bluesky",
	"farcaster": "Farcaster",
}

func platformTitle(name string) string {
	if title, ok := platformTitles[name]; ok {
		return title
	}
	return name
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return truncateError(err)
}

// preview returns the first line of text, shortened for list display.
func preview(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "(media)"
	}
	runes := []rune(line)
	if len(runes) > previewLength {
		return string(runes[:previewLength]) + "…"
	}
	return line
}

// humanDuration drops the zero tails time.Duration prints, so 2h0m0s becomes 2h.
func humanDuration(d time.Duration) string {
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	if strings.HasSuffix(s, "h0m") {
		s = strings.TrimSuffix(s, "0m")
	}
	return s
}

var templateFuncs = template.FuncMap{
	"duration":      humanDuration,
	"platformTitle": platformTitle,
	"errorText":     errorText,
	"preview":       preview,
	"inc":           func(i int) int { return i + 1 },
	"clock":         func(t time.Time) string { return t.UTC().Format("15:04 MST") },
}

func parseTemplate(name string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(templates, "templates/"+name)
	if err != nil {
		return nil, fmt.Errorf("parse %s template: %w", strings.TrimSuffix(name, ".html"), err)
	}
	return tmpl, nil
}

// InitTemplates initializes all templates. Must be called before using any Render* functions.
func InitTemplates() error {
	var err error
	if promptTmpl, err = parseTemplate("prompt.html"); err != nil {
		return err
	}
	if reportTmpl, err = parseTemplate("report.html"); err != nil {
		return err
	}
	if pendingTmpl, err = parseTemplate("pending.html"); err != nil {
		return err
	}
	if startTmpl, err = parseTemplate("start.html"); err != nil {
		return err
	}
	if deliveriesTmpl, err = parseTemplate("deliveries.html"); err != nil {
		return err
	}
	return nil
}

func execute(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PromptData holds data for the approval prompt template
type PromptData struct {
	Status    string
	Remaining int
}

// RenderPrompt renders the approval prompt for the candidate's current state.
func RenderPrompt(c approval.Candidate, required int) (string, error) {
	return execute(promptTmpl, PromptData{
		Status:    string(c.Status),
		Remaining: max(required-c.VoteCount(), 0),
	})
}

// RenderReport renders the per-platform summary of a dispatch.
func RenderReport(d *publish.Dispatch) (string, error) {
	return execute(reportTmpl, d)
}

// PendingData holds data for the /pending template
type PendingData struct {
	Candidates []approval.Candidate
	Required   int
	Window     time.Duration
}

// RenderPending renders the list of candidates awaiting approval.
// Entries are dropped from the tail when the list exceeds Telegram's limit.
func RenderPending(data *PendingData) (string, error) {
	shown := *data
	for {
		result, err := execute(pendingTmpl, &shown)
		if err != nil {
			return "", err
		}
		if len(result) <= TelegramMaxMessageLength || len(shown.Candidates) == 0 {
			return result, nil
		}
		shown.Candidates = shown.Candidates[:len(shown.Candidates)-1]
	}
}

// StartData holds data for the /start template
type StartData struct {
	Tag       string
	Required  int
	Window    time.Duration
	Platforms []string
}

// RenderStart renders the welcome message.
func RenderStart(data *StartData) (string, error) {
	return execute(startTmpl, data)
}

// DeliveryRow is one platform line of the /deliveries summary
type DeliveryRow struct {
	Platform string
	Failures int
}

// DeliveriesData holds data for the /deliveries template
type DeliveriesData struct {
	Since time.Duration
	Rows  []DeliveryRow
}

// RenderDeliveries renders failed delivery counts per platform.
func RenderDeliveries(data *DeliveriesData) (string, error) {
	return execute(deliveriesTmpl, data)
}
