package report

import "html/template"

var reportTemplate = template.Must(template.New("report").Parse(reportHTML))

// reportHTML is the single-file report layout. No scripts, no external
// fetches; charts are plain divs sized by precomputed heights.
const reportHTML = `<!doctype html>
<html>
<head>
  <meta charset="utf-8"/>
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; background: #fafafa; margin: 0; padding: 18px; }
    h1 { margin: 0 0 14px 0; }
    .grid { display: grid; grid-template-columns: repeat(2, minmax(0, 1fr)); gap: 14px; }
    .card { background: #fff; border: 2px solid #444; border-radius: 14px; padding: 14px; box-shadow: 0 2px 10px rgba(0,0,0,0.06); }
    .kpis { display: grid; grid-template-columns: repeat(4, minmax(0, 1fr)); gap: 10px; margin-top: 10px; }
    .kpi { border: 2px solid #777; border-radius: 12px; padding: 10px; background: #f7f7f7; text-align: center; }
    .kpi .v { font-size: 20px; font-weight: 800; }
    .kpi .l { font-size: 12px; color: #555; margin-top: 2px; }
    .muted { color: #666; font-size: 12px; line-height: 1.45; margin-top: 10px; }
    table { width: 100%; border-collapse: collapse; }
    th, td { border: 1px solid #ddd; padding: 8px; font-size: 12px; vertical-align: top; }
    th { background: #f0f0f0; text-align: left; position: sticky; top: 0; }
    .mono { font-family: ui-monospace, SFMono-Regular, Menlo, Consolas, monospace; white-space: nowrap; }
    .wrap { max-width: 380px; white-space: pre-wrap; word-break: break-word; }
    .details summary { cursor: pointer; font-weight: 700; margin-top: 8px; }
    .details div { margin-top: 8px; }
    .scroll { overflow-x: auto; margin-top: 10px; }
    .vbar-chart { display: flex; align-items: flex-end; gap: 14px; height: 220px; padding: 10px 4px; overflow-x: auto; margin-top: 12px; }
    .vbar { width: 110px; text-align: center; }
    .vbar-col { height: 170px; border: 1px solid #ddd; border-radius: 12px; background: #f7f7f7; display: flex; align-items: flex-end; overflow: hidden; }
    .vbar-fill { width: 100%; background: #4a90e2; }
    .vbar-lab { margin-top: 6px; font-size: 11px; color: #333; }
    .vbar-val { font-size: 11px; color: #666; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>

  <div class="grid">
{{- range .Cards}}
    <div class="card">
      <h2>{{.Title}}</h2>
{{- if .Tiles}}
      <div class="kpis">
{{- range .Tiles}}
        <div class="kpi"><div class="v">{{.Value}}</div><div class="l">{{.Label}}</div></div>
{{- end}}
      </div>
{{- end}}
{{- if .Bars}}
      <div class="vbar-chart">
{{- range .Bars}}
        <div class="vbar">
          <div class="vbar-col"><div class="vbar-fill" style="height:{{.Height}}%"></div></div>
          <div class="vbar-lab">{{.Label}}</div>
          <div class="vbar-val">{{.Value}}</div>
        </div>
{{- end}}
      </div>
{{- end}}
{{- if .Note}}
      <div class="muted">{{.Note}}</div>
{{- end}}
    </div>
{{- end}}
  </div>

  <div class="card" style="margin-top:14px">
    <h2>Worst Prompts (Lowest Similarity)</h2>
    <div class="scroll">
      <table>
        <thead>
          <tr>
            <th>ID</th>
            <th>Sim</th>
            <th>Sim Pass</th>
            <th>DeepEval</th>
            <th>DE Pass</th>
            <th>Halluc.</th>
            <th>Trace</th>
            <th>Prompt</th>
            <th>Expected</th>
            <th>Answer</th>
          </tr>
        </thead>
        <tbody>
{{- range .Worst}}
          <tr>
            <td>{{.ID}}</td>
            <td class="mono">{{.Similarity}}</td>
            <td>{{.SimIcon}}</td>
            <td class="mono">{{.Judge}}</td>
            <td>{{.JudgeIcon}}</td>
            <td>{{.HallIcon}}</td>
            <td>{{.TraceIcon}}</td>
            <td class="wrap">{{.Prompt}}</td>
            <td class="wrap">{{.Reference}}</td>
            <td class="wrap">{{.Answer}}
{{- if .Reasons}}
              <details class="details">
                <summary>Judge reasons</summary>
{{- range .Reasons}}
                <div><b>{{.Label}}:</b> {{.Text}}</div>
{{- end}}
              </details>
{{- end}}
            </td>
          </tr>
{{- end}}
        </tbody>
      </table>
    </div>
    <div class="muted">Hallucination and Traceability columns fill in once the grounding judge has run.</div>
  </div>

  <div class="card" style="margin-top:14px">
    <h2>KPI Definitions</h2>
    <div class="muted">
      <b>Embedding Similarity</b>: semantic closeness between the expected and actual answer using embeddings and cosine similarity.<br/>
      <b>Pass Rate</b>: percent of prompts meeting the configured threshold.<br/><br/>

      <b>Behavior KPIs</b>: heuristic detection based on response text patterns:<br/>
      &bull; <b>Deflection</b>: refusal or decline language (e.g., "I can't help with that").<br/>
      &bull; <b>Clarifying Q</b>: the response asks clarifying questions.<br/><br/>

      <b>Latency KPIs</b>: per-prompt wall clock of the generation and embedding calls (ms).<br/><br/>

      <b>DeepEval KPIs</b>: LLM judge score of the answer against the expected response, when scored.<br/><br/>

      <b>Grounding KPIs</b>:<br/>
      &bull; <b>Hallucination (No extra claims)</b>: TRUE when the answer introduces no claims beyond the expected reference.<br/>
      &bull; <b>Traceability</b>: TRUE when key claims in the answer trace back to the expected reference.
    </div>
  </div>
</body>
</html>
`
