package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/guilocator/pkg/cache"
)

// HTMLConfig contains configuration for HTML report generation.
type HTMLConfig struct {
	OutputPath string // Path to write the HTML file
	Title      string // Report title (default: "Locator Report")
}

// GenerateHTML generates an HTML report from the report directory.
func GenerateHTML(reportDir string, cfg HTMLConfig) error {
	index, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	if cfg.Title == "" {
		cfg.Title = "Locator Report"
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(reportDir, "report.html")
	}

	html, err := renderHTML(buildHTMLData(index, cfg))
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}

	if err := os.WriteFile(cfg.OutputPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	return nil
}

// HTMLData contains all data needed for the HTML template.
type HTMLData struct {
	Title         string
	GeneratedAt   string
	Index         *Index
	Suites        []SuiteHTMLData
	Caches        []CacheHTMLData
	TotalDuration string
	PassRate      float64
	JSONData      template.JS // JSON data for JavaScript
}

// SuiteHTMLData contains suite data formatted for HTML.
type SuiteHTMLData struct {
	SuiteEntry
	StatusClass string
	DurationStr string
	DurationPct float64
	Cases       []CaseHTMLData
}

// CaseHTMLData contains case data formatted for HTML.
type CaseHTMLData struct {
	CaseEntry
	StatusClass string
	DurationStr string
}

// CacheHTMLData is one row of the cache statistics table.
type CacheHTMLData struct {
	Name     string
	Stats    cache.Stats
	HitRatio string
}

func buildHTMLData(index *Index, cfg HTMLConfig) HTMLData {
	// Find max duration for percentage bars
	var maxDuration int64
	for _, s := range index.Suites {
		maxDuration = max(maxDuration, s.Duration)
	}

	suites := make([]SuiteHTMLData, len(index.Suites))
	for i, s := range index.Suites {
		cases := make([]CaseHTMLData, len(s.Cases))
		for j, c := range s.Cases {
			cases[j] = CaseHTMLData{
				CaseEntry:   c,
				StatusClass: string(c.Status),
				DurationStr: formatMicros(c.DurationUs),
			}
		}

		var pct float64
		if maxDuration > 0 {
			pct = float64(s.Duration) / float64(maxDuration) * 100
		}
		suites[i] = SuiteHTMLData{
			SuiteEntry:  s,
			StatusClass: string(s.Status),
			DurationStr: formatDuration(s.Duration),
			DurationPct: pct,
			Cases:       cases,
		}
	}

	var caches []CacheHTMLData
	if index.Caches != nil {
		for _, row := range []struct {
			name  string
			stats cache.Stats
		}{
			{"parse", index.Caches.Parse},
			{"normalize", index.Caches.Normalize},
			{"element", index.Caches.Element},
			{"finder", index.Caches.Finder},
		} {
			caches = append(caches, CacheHTMLData{
				Name:     row.name,
				Stats:    row.stats,
				HitRatio: fmt.Sprintf("%.1f%%", row.stats.HitRatio()*100),
			})
		}
	}

	var passRate float64
	if index.Summary.Total > 0 {
		passRate = float64(index.Summary.Passed) / float64(index.Summary.Total) * 100
	}

	// Serialize index to JSON for JavaScript
	jsonBytes, _ := json.Marshal(index)

	return HTMLData{
		Title:         cfg.Title,
		GeneratedAt:   time.Now().Format("2006-01-02 15:04:05"),
		Index:         index,
		Suites:        suites,
		Caches:        caches,
		TotalDuration: formatDuration(index.EndTime.Sub(index.StartTime).Milliseconds()),
		PassRate:      passRate,
		JSONData:      template.JS(jsonBytes),
	}
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", ms)
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

func formatMicros(us int64) string {
	if us < 1000 {
		return fmt.Sprintf("%dµs", us)
	}
	return formatDuration(us / 1000)
}

func renderHTML(data HTMLData) (string, error) {
	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f9fafb;
            --bg-tertiary: #f3f4f6;
            --text-primary: #000000;
            --text-secondary: rgb(75, 85, 99);
            --text-muted: rgb(107, 114, 128);
            --border-color: #e5e7eb;
            --passed: #22c55e;
            --passed-bg: rgba(34, 197, 94, 0.1);
            --failed: #ef4444;
            --failed-bg: rgba(239, 68, 68, 0.08);
            --accent: #06b6d4;
        }

        * {
            box-sizing: border-box;
            margin: 0;
            padding: 0;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            line-height: 1.5;
        }

        /* Header */
        .header {
            background: var(--bg-secondary);
            border-bottom: 1px solid var(--border-color);
            padding: 16px 24px;
            display: flex;
            align-items: center;
            justify-content: space-between;
        }

        .header-title {
            display: flex;
            flex-direction: column;
        }

        .header-title-main {
            font-size: 16px;
            font-weight: 500;
        }

        .header-title-sub {
            font-size: 12px;
            color: var(--text-secondary);
        }

        .toolkit-badge {
            padding: 6px 14px;
            background: var(--accent);
            color: white;
            border-radius: 6px;
            font-size: 13px;
            font-weight: 500;
        }

        /* Dashboard */
        .dashboard {
            display: flex;
            gap: 24px;
            flex-wrap: wrap;
            padding: 16px 24px;
            border-bottom: 1px solid var(--border-color);
        }

        .stat {
            display: flex;
            flex-direction: column;
            min-width: 96px;
        }

        .stat-value {
            font-size: 22px;
            font-weight: 600;
        }

        .stat-value.passed { color: var(--passed); }
        .stat-value.failed { color: var(--failed); }

        .stat-label {
            font-size: 12px;
            color: var(--text-muted);
        }

        table.caches {
            border-collapse: collapse;
            font-size: 12px;
        }

        table.caches th, table.caches td {
            padding: 2px 10px;
            text-align: right;
            border-bottom: 1px solid var(--border-color);
        }

        table.caches th:first-child, table.caches td:first-child {
            text-align: left;
        }

        /* Filters */
        .filters {
            display: flex;
            gap: 8px;
            padding: 12px 24px;
        }

        .filter-btn {
            padding: 4px 12px;
            border: 1px solid var(--border-color);
            background: var(--bg-primary);
            border-radius: 6px;
            font-size: 13px;
            cursor: pointer;
        }

        .filter-btn.active {
            border-color: var(--accent);
            color: var(--accent);
        }

        /* Suites */
        .suite-list {
            padding: 0 24px 24px;
        }

        .suite-item {
            border: 1px solid var(--border-color);
            border-radius: 8px;
            margin-bottom: 8px;
        }

        .suite-item.failed {
            background: var(--failed-bg);
        }

        .suite-header {
            display: flex;
            align-items: center;
            gap: 10px;
            padding: 10px 14px;
            cursor: pointer;
        }

        .status-dot {
            width: 10px;
            height: 10px;
            border-radius: 50%;
        }

        .status-dot.passed { background: var(--passed); }
        .status-dot.failed { background: var(--failed); }

        .suite-name {
            font-weight: 500;
            flex: 1;
        }

        .suite-meta {
            display: flex;
            align-items: center;
            gap: 12px;
            font-size: 12px;
            color: var(--text-muted);
        }

        .duration-bar {
            width: 80px;
            height: 4px;
            background: var(--bg-tertiary);
            border-radius: 2px;
        }

        .duration-fill {
            height: 100%;
            background: var(--accent);
            border-radius: 2px;
        }

        .tag {
            padding: 0 6px;
            border-radius: 4px;
            background: var(--bg-tertiary);
        }

        .case-list {
            display: none;
            border-top: 1px solid var(--border-color);
            padding: 8px 14px;
        }

        .suite-item.open .case-list {
            display: block;
        }

        .case {
            display: flex;
            gap: 10px;
            align-items: baseline;
            padding: 3px 0;
            font-size: 13px;
        }

        .case .icon.passed { color: var(--passed); }
        .case .icon.failed { color: var(--failed); }

        .case code {
            background: var(--bg-tertiary);
            padding: 0 4px;
            border-radius: 4px;
        }

        .case .line, .case .duration {
            color: var(--text-muted);
            font-size: 12px;
        }

        .failure {
            color: var(--failed);
            font-size: 12px;
            padding-left: 22px;
        }
    </style>
</head>
<body>
    <div class="header">
        <div class="header-title">
            <span class="header-title-main">{{.Title}}</span>
            <span class="header-title-sub">{{.GeneratedAt}}{{if .Index.Runner.Version}} · guilocator {{.Index.Runner.Version}}{{end}}</span>
        </div>
        {{if .Index.Toolkit}}<span class="toolkit-badge">{{.Index.Toolkit}}</span>{{end}}
    </div>

    <div class="dashboard">
        <div class="stat"><span class="stat-value">{{.Index.Summary.Suites}}</span><span class="stat-label">suites</span></div>
        <div class="stat"><span class="stat-value passed">{{.Index.Summary.Passed}}</span><span class="stat-label">passed</span></div>
        <div class="stat"><span class="stat-value failed">{{.Index.Summary.Failed}}</span><span class="stat-label">failed</span></div>
        <div class="stat"><span class="stat-value">{{printf "%.1f" .PassRate}}%</span><span class="stat-label">pass rate</span></div>
        <div class="stat"><span class="stat-value">{{.TotalDuration}}</span><span class="stat-label">{{.Index.Runner.Workers}} worker(s)</span></div>
        {{if .Caches}}
        <table class="caches">
            <tr><th>cache</th><th>hits</th><th>misses</th><th>evictions</th><th>size</th><th>hit ratio</th></tr>
            {{range .Caches}}
            <tr><td>{{.Name}}</td><td>{{.Stats.Hits}}</td><td>{{.Stats.Misses}}</td><td>{{.Stats.Evictions}}</td><td>{{.Stats.Size}}</td><td>{{.HitRatio}}</td></tr>
            {{end}}
        </table>
        {{end}}
    </div>

    <div class="filters">
        <button class="filter-btn active" data-filter="all">All ({{.Index.Summary.Suites}})</button>
        <button class="filter-btn" data-filter="failed">Failed ({{.Index.Summary.FailedSuites}})</button>
        <button class="filter-btn" data-filter="passed">Passed</button>
    </div>

    <div class="suite-list">
        {{range $si, $suite := .Suites}}
        <div class="suite-item {{$suite.StatusClass}}" data-suite-index="{{$si}}" data-status="{{$suite.StatusClass}}">
            <div class="suite-header">
                <span class="status-dot {{$suite.StatusClass}}"></span>
                <span class="suite-name">{{$suite.Name}}</span>
                <div class="suite-meta">
                    {{range $suite.Tags}}<span class="tag">{{.}}</span>{{end}}
                    <span>{{$suite.Toolkit}}</span>
                    <span>{{$suite.Passed}}/{{len $suite.Cases}} cases</span>
                    <div class="duration-bar">
                        <div class="duration-fill" style="width: {{printf "%.1f" $suite.DurationPct}}%"></div>
                    </div>
                    <span>{{$suite.DurationStr}}</span>
                </div>
            </div>
            <div class="case-list">
                <div class="suite-meta">{{$suite.SourceFile}}</div>
                {{range $suite.Cases}}
                <div class="case">
                    <span class="icon {{.StatusClass}}">{{if eq .StatusClass "passed"}}✓{{else}}✗{{end}}</span>
                    <code>{{.Locator}}</code>
                    {{if .Canonical}}<span>→ {{.Canonical}}</span>{{end}}
                    {{if .Line}}<span class="line">line {{.Line}}</span>{{end}}
                    <span class="duration">{{.DurationStr}}</span>
                </div>
                {{range .Failures}}<div class="failure">{{.}}</div>{{end}}
                {{end}}
            </div>
        </div>
        {{end}}
    </div>

    <script>
        let reportData = {{.JSONData}};

        document.querySelectorAll('.suite-header').forEach(function (h) {
            h.addEventListener('click', function () {
                h.parentElement.classList.toggle('open');
            });
        });

        document.querySelectorAll('.filter-btn').forEach(function (btn) {
            btn.addEventListener('click', function () {
                document.querySelectorAll('.filter-btn').forEach(function (b) { b.classList.remove('active'); });
                btn.classList.add('active');
                const filter = btn.dataset.filter;
                document.querySelectorAll('.suite-item').forEach(function (item) {
                    item.style.display = (filter === 'all' || item.dataset.status === filter) ? '' : 'none';
                });
            });
        });

        // Open failed suites on load.
        reportData.suites.forEach(function (s) {
            if (s.status === 'failed') {
                const el = document.querySelector('[data-suite-index="' + s.index + '"]');
                if (el) el.classList.add('open');
            }
        });
    </script>
</body>
</html>
`
