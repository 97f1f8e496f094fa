// Package agent runs a provider-abstracted LLM reasoning loop whose only
// tool is the persistent bash session. The model is handed the rendered
// result of each command, so it can branch on the outcome prefix (timeout:,
// crashed:, blocked:) instead of guessing from raw output.
package agent
