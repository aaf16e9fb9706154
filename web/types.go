package web

import "github.com/filetrack/removetrace/platform"

// StatsResponse summarizes collector activity for /api/stats. The
// kernel counters are system-wide; comparing them with the journal
// count shows how much removal activity bypasses the shim.
type StatsResponse struct {
	JournaledRemovals int64                 `json:"journaledRemovals"`
	LoadedRules       int                   `json:"loadedRules"`
	Kernel            *platform.KernelStats `json:"kernel,omitempty"`
}

const indexTemplate = `<!DOCTYPE html>
<html>
<head>
<title>removetrace</title>
<style>
body { font-family: monospace; margin: 2em; }
h1 { font-size: 1.2em; }
a { display: block; margin: 0.5em 0; }
</style>
</head>
<body>
<h1>removetrace collector</h1>
<a href="/api/removals">recent removals</a>
<a href="/api/matches">rule matches</a>
<a href="/api/stats">stats</a>
</body>
</html>
`
