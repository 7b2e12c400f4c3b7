// Package harness drives QA conversations against a remote conversational
// agent over a persistent duplex WebSocket.
//
// A [Session] owns the socket and a receive pump that decodes every inbound
// message into a [wire.Frame]. Turn completion is detected from the frame
// stream ([Session.AwaitTurn]), stimuli are either played from a prepared
// list ([Dispatch]) or generated mid-call by an LLM caller ([RunDynamic]),
// and the [Runner] ties session setup, dispatch, judging, and result
// persistence into complete test runs.
//
// Vocabulary used across the package:
//
//   - Turn: one stimulus sent by the harness plus everything the agent sends
//     back before the reply is considered complete.
//   - Outcome: how a single turn wait ended (resolved, timed out with or
//     without partial frames, session closed, or failed).
//   - Step: one stimulus in a run, fixed or generated; its StepResult records
//     delivery and the turn outcome, never a verdict on reply quality.
package harness
