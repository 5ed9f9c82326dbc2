// Package projection manages the UI host's ephemeral session: what, if
// anything, should currently be presented to the user.
//
// The session is a projection of upstream decisions, never a decision
// maker. It holds no authoritative state, survives nothing, and is
// rebuilt from verdicts and expirations after any restart. Session
// replacement is the renderer's only render signal; session absence is
// its only teardown signal.
//
// Session Kinds:
//   - quick_task: the offer dialog; dissolves if the user leaves the app
//   - post_quick_task_choice: the blocking continue/quit screen; ignores
//     all foreground churn until resolved
//   - intervention: the multi-step mindfulness flow
//     (breathing → root cause → alternatives → action → action timer →
//     reflection), walked strictly in order
//
// Completion semantics:
//   - Normal completion of the reflection step returns the user home
//   - Choosing an intention timer mid-flow ends the flow without the
//     return-home action: the user explicitly chose to stay
//   - Abandoning the flow by switching apps destroys the context with
//     no completion side effects
//
// All state mutations flow back to the daemon through the Commander;
// the manager itself never touches quota or timers.
package projection
