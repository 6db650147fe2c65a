// Package events defines the typed delivery event contract for a live
// teaching stream.
//
// Every event delivered to a client during a question cycle is one of the
// variants below. A cycle emits any number of non-terminal events followed by
// exactly one terminal event.
//
//   - Text (text): an incremental fragment of the explanation, in source
//     order. Carries pacing hints (Delay, Offset) that are not serialized;
//     the transport decides whether to honor them in real time.
//   - Emphasis (emphasis): marks a word as pedagogically important at a point
//     on the delivery timeline. Never emitted before the Text fragment that
//     contains the word.
//   - VisualCue (visual_cue): signals a visual asset to show, hide or update.
//   - AudioCue (audio_cue): signals when narration audio (and optionally an
//     avatar video) should start, relative to text delivery.
//   - Complete (complete): terminal success. FullText equals the
//     concatenation of all Text fragment contents for the cycle.
//   - Error (error): a failure notice. Advisory (recoverable) errors let the
//     cycle still complete; a cancelled or non-recoverable error is terminal.
//
// The wire framing is {"type": ..., ...variant fields} and is produced by
// MarshalWire. Clients key behavior off the type field, so the shape is part
// of the contract.
package events
