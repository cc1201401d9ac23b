// Package main hosts the launcher entrypoint.
//
// Architecture overview:
//   - Environment: internal/environment.Manager checks for the environment directory (venv next to the launcher).
//     When it is missing the manager creates it with the host interpreter, installs requirements.txt with pip and
//     installs the playwright browser engine, stopping at the first failing step and removing the half-built
//     directory. When it exists the manager only activates it and warns if the manifest changed since setup.
//   - Dispatch: internal/dispatcher runs scraper.py with the environment's interpreter and activated environment,
//     forwarding every command line token unchanged. Stdio is inherited; the scraper owns its own output.
//   - Report: once the scraper returns, the launcher prints where results are saved and exits with the scraper's
//     status.
//   - Configuration & plumbing: Viper populates config from launcher.yaml and LAUNCHER_* env vars; zap writes
//     structured logs to stderr; the progress Hub batches lifecycle events for the log and Prometheus sinks, and
//     the registry can be pushed to a Pushgateway at exit.
//
// Operational notes:
//   - Setup runs at most once per environment directory. Delete the directory to reprovision.
//   - SIGINT and SIGTERM reach the scraper through the process group; the launcher waits for it to exit so the
//     exit status is preserved.
//
// Quick checklist:
//   - Configure env vars: LAUNCHER_CONFIG, LAUNCHER_ENVIRONMENT_PYTHON, LAUNCHER_BROWSER_ENGINE,
//     LAUNCHER_BROWSER_VERIFY, LAUNCHER_LOGGING_LEVEL, LAUNCHER_METRICS_PUSHGATEWAY_URL.
//   - Run locally: go build -o launcher ./cmd/launcher, place it next to scraper.py and requirements.txt, then
//     ./launcher gmaps yelp.
package main
