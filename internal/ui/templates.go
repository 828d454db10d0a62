package ui

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Template functions available in all templates.
var templateFuncs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04:05")
	},
	"ago": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return humanize.Time(t)
	},
	"stateColor": func(state fmt.Stringer) string {
		switch strings.ToUpper(state.String()) {
		case "WAITING_UNSCHEDULED", "UNKNOWN":
			return "gray"
		case "WAITING_SCHEDULED", "NOT_AVAILABLE":
			return "yellow"
		case "IN_PROGRESS", "BUSY":
			return "blue"
		case "COMPLETED_OK", "IDLE":
			return "green"
		case "COMPLETED_WITH_WARNINGS", "ABORTED":
			return "orange"
		case "COMPLETED_WITH_ERRORS", "ERROR":
			return "red"
		default:
			return "gray"
		}
	},
}

// renderTemplate renders the named page inside the layout.
func renderTemplate(w io.Writer, name string, data map[string]any) error {
	content, ok := templates[name]
	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}

	tmpl, err := template.New("layout").Funcs(templateFuncs).Parse(templates["layout"])
	if err != nil {
		return fmt.Errorf("parse layout: %w", err)
	}
	if _, err := tmpl.New("content").Parse(content); err != nil {
		return fmt.Errorf("parse content: %w", err)
	}
	if _, err := tmpl.New("jobTable").Parse(templates["components/job-table"]); err != nil {
		return fmt.Errorf("parse job table: %w", err)
	}

	return tmpl.Execute(w, data)
}

var templates = map[string]string{
	"layout": `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta http-equiv="refresh" content="10">
    <title>{{.Title}}</title>
    <style>
        body { font-family: sans-serif; margin: 2rem; color: #222; }
        nav a { margin-right: 1rem; }
        table { border-collapse: collapse; margin-bottom: 2rem; }
        th, td { text-align: left; padding: 0.3rem 0.8rem; border-bottom: 1px solid #ddd; }
        .state { font-weight: bold; }
        .gray { color: #777; } .yellow { color: #b58900; } .blue { color: #268bd2; }
        .green { color: #2a9d3a; } .orange { color: #cb4b16; } .red { color: #dc322f; }
    </style>
</head>
<body>
    <nav><a href="/ui/">Dashboard</a><a href="/ui/workers">Workers</a><a href="/ui/jobs">Jobs</a></nav>
    {{template "content" .}}
</body>
</html>`,

	"components/job-table": `<table>
    <tr><th>ID</th><th>State</th><th>Chain</th><th>Experiment</th><th>Worker</th><th>Created</th></tr>
    {{range .}}
    <tr>
        <td><a href="/ui/jobs/{{.ID}}">{{.ID}}</a></td>
        <td class="state {{stateColor .State}}">{{.State}}</td>
        <td>{{.Chain.Name}}/{{.Chain.Version}}</td>
        <td>{{.ExperimentID}}</td>
        <td>{{with .AssignedWorker}}{{.Name}}{{else}}-{{end}}</td>
        <td>{{ago .CreatedAt}}</td>
    </tr>
    {{else}}
    <tr><td colspan="6">None.</td></tr>
    {{end}}
</table>`,

	"dashboard": `<h1>Scheduler</h1>
<p>Loop {{if .Stats.Running}}<span class="green">running</span>{{else}}<span class="gray">stopped</span>{{end}},
{{.Stats.Passes}} passes, last {{ago .Stats.LastPass}}. Snapshots: {{or .Stats.Snapshots "disabled"}}.</p>
<table>
    <tr><th>Workers</th><td>{{.Stats.Workers}}</td></tr>
    <tr><th>Known chains</th><td>{{.Stats.Chains}}</td></tr>
    <tr><th>Queued jobs</th><td>{{.Stats.Queued}}</td></tr>
    <tr><th>Completed jobs</th><td>{{.Stats.History}}</td></tr>
</table>
<h2>Queue</h2>
{{template "jobTable" .Queued}}`,

	"workers": `<h1>Workers</h1>
<table>
    <tr><th>ID</th><th>Name</th><th>Address</th><th>State</th><th>Last heartbeat</th><th>Chains</th></tr>
    {{range .Workers}}
    <tr>
        <td>{{.ID}}</td>
        <td>{{.Name}}</td>
        <td>{{.Address}}</td>
        <td class="state {{stateColor .State}}">{{.State}}</td>
        <td>{{ago .LastHeartbeat}}</td>
        <td>{{range $i, $c := .Chains}}{{if $i}}, {{end}}{{$c.Name}}/{{$c.Version}}{{end}}</td>
    </tr>
    {{else}}
    <tr><td colspan="6">No workers registered.</td></tr>
    {{end}}
</table>`,

	"jobs": `<h1>Queue</h1>
{{template "jobTable" .Queued}}
<h1>History</h1>
{{template "jobTable" .History}}`,

	"job": `<h1>Job {{.Job.ID}}</h1>
<table>
    <tr><th>State</th><td class="state {{stateColor .Job.State}}">{{.Job.State}}</td></tr>
    <tr><th>Chain</th><td>{{.Job.Chain.Name}}/{{.Job.Chain.Version}} ({{.Job.Chain.ID}})</td></tr>
    <tr><th>Experiment</th><td>{{.Job.ExperimentID}}</td></tr>
    <tr><th>Worker</th><td>{{with .Job.AssignedWorker}}{{.Name}} ({{.ID}}, {{.Address}}){{else}}-{{end}}</td></tr>
    <tr><th>Created</th><td>{{formatTime .Job.CreatedAt}}</td></tr>
    {{with .Job.LogURL}}<tr><th>Log</th><td><a href="{{.}}">{{.}}</a></td></tr>{{end}}
</table>`,

	"error": `<h1>{{.Title}}</h1>
<p>{{.Message}}</p>`,
}
