package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tovald/stocksync/internal/model"
	"github.com/tovald/stocksync/internal/sync"
)

var printer = message.NewPrinter(language.English)

var summaryTmpl = template.Must(template.New("summary").Parse(`<html>
<body>
<h2>Stock &amp; price sync</h2>
<p>Run <code>{{.RunID}}</code></p>
<p><b>{{.AppliedFmt}}</b> changes applied, <b>{{.FailedFmt}}</b> failed.</p>
{{if .ByKind}}<ul>
{{range .ByKind}}<li>{{.Kind}}: {{.Count}}</li>
{{end}}</ul>{{end}}
{{if .Failures}}<h3>Failures</h3>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Item</th><th>Kind</th><th>Error</th></tr>
{{range .Failures}}<tr><td>{{.TargetID}}</td><td>{{.Kind}}</td><td>{{.Err}}</td></tr>
{{end}}</table>{{end}}
</body>
</html>
`))

var failureTmpl = template.Must(template.New("failure").Parse(`<html>
<body>
<h2>Stock &amp; price sync FAILED</h2>
<p>Run <code>{{.RunID}}</code> aborted during <b>{{.Stage}}</b> at {{.At}}.</p>
<p>No catalog writes were confirmed for this run; it is safe to re-trigger.</p>
<pre>{{.Err}}</pre>
</body>
</html>
`))

type kindLine struct {
	Kind  string
	Count int
}

// RenderSummary builds the subject and HTML body for an end-of-run summary.
func RenderSummary(runID string, s sync.RunSummary) (subject, body string, err error) {
	subject = fmt.Sprintf("Stock sync: %d applied, %d failed", s.Applied, s.Failed)
	var byKind []kindLine
	for _, k := range [...]model.IntentKind{model.SetSellability, model.SetPricing} {
		if n := s.AppliedByKind[k]; n > 0 {
			byKind = append(byKind, kindLine{Kind: string(k), Count: n})
		}
	}
	data := struct {
		RunID      string
		AppliedFmt string
		FailedFmt  string
		ByKind     []kindLine
		Failures   []sync.FailureLine
	}{
		RunID:      runID,
		AppliedFmt: printer.Sprintf("%d", s.Applied),
		FailedFmt:  printer.Sprintf("%d", s.Failed),
		ByKind:     byKind,
		Failures:   s.Failures,
	}
	var buf bytes.Buffer
	if err := summaryTmpl.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return subject, buf.String(), nil
}

// RenderFailure builds the subject and HTML body for a fatal-run notification.
func RenderFailure(runID string, stage sync.State, runErr error, at time.Time) (subject, body string, err error) {
	subject = "Stock sync FAILED: " + string(stage)
	data := struct {
		RunID string
		Stage string
		At    string
		Err   string
	}{
		RunID: runID,
		Stage: string(stage),
		At:    at.UTC().Format(time.RFC3339),
		Err:   runErr.Error(),
	}
	var buf bytes.Buffer
	if err := failureTmpl.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return subject, buf.String(), nil
}
