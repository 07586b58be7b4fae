package web

import (
	"net/http"
)

// ServeDashboard serves the embedded dashboard page
func ServeDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	w.Write([]byte(dashboardHTML))
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>logscrub</title>
<style>
  body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; background: #0f1419; color: #e6e1cf; }
  h1 { font-size: 1.4rem; }
  .cards { display: flex; flex-wrap: wrap; gap: 1rem; margin: 1rem 0; }
  .card { background: #1a212c; border-radius: 8px; padding: 1rem 1.5rem; min-width: 10rem; }
  .card .label { color: #7a828e; font-size: 0.8rem; text-transform: uppercase; }
  .card .value { font-size: 1.6rem; margin-top: 0.25rem; }
  #log { background: #11161d; border-radius: 8px; padding: 1rem; height: 20rem; overflow-y: auto;
         font-family: ui-monospace, monospace; font-size: 0.85rem; white-space: pre-wrap; }
  .event { margin-bottom: 0.25rem; }
  .scrub_result { color: #95e6cb; }
  .file_job { color: #59c2ff; }
  .system_status { color: #7a828e; }
  .connection { color: #ffb454; }
</style>
</head>
<body>
<h1>logscrub</h1>
<div class="cards">
  <div class="card"><div class="label">Requests</div><div class="value" id="requests">-</div></div>
  <div class="card"><div class="label">Scrubs</div><div class="value" id="scrubs">-</div></div>
  <div class="card"><div class="label">File jobs</div><div class="value" id="file_jobs">-</div></div>
  <div class="card"><div class="label">Rules</div><div class="value" id="rules">-</div></div>
  <div class="card"><div class="label">Uptime</div><div class="value" id="uptime">-</div></div>
</div>
<div id="log"></div>
<script>
  const log = document.getElementById("log");

  function appendEvent(ev) {
    const line = document.createElement("div");
    line.className = "event " + ev.type;
    line.textContent = new Date(ev.timestamp).toLocaleTimeString() + "  " +
      ev.type + "  " + JSON.stringify(ev.data);
    log.appendChild(line);
    while (log.childElementCount > 200) log.removeChild(log.firstChild);
    log.scrollTop = log.scrollHeight;
  }

  async function refreshStats() {
    try {
      const res = await fetch("/stats");
      const stats = await res.json();
      document.getElementById("requests").textContent = stats.total_requests;
      document.getElementById("scrubs").textContent = stats.total_scrubs;
      document.getElementById("file_jobs").textContent = stats.total_file_jobs;
      document.getElementById("rules").textContent = stats.rules.count;
      document.getElementById("uptime").textContent = stats.uptime;
    } catch (e) { /* server restarting */ }
  }

  function connect() {
    const proto = location.protocol === "https:" ? "wss://" : "ws://";
    const ws = new WebSocket(proto + location.host + "/ws");
    ws.onmessage = (msg) => appendEvent(JSON.parse(msg.data));
    ws.onclose = () => setTimeout(connect, 3000);
  }

  refreshStats();
  setInterval(refreshStats, 5000);
  connect();
</script>
</body>
</html>
`
