package events

import "time"

// KindAudioCue identifies an audio cue event.
const KindAudioCue Kind = "audio_cue"

// AudioCue signals that narration audio should start playing Offset into text
// delivery. VideoURL is set when an avatar video accompanies the audio.
type AudioCue struct {
	Base
	URL      string
	VideoURL *string
	Offset   time.Duration
}

// NewAudioCue creates an audio cue event.
func NewAudioCue(url string, videoURL *string, offset time.Duration) AudioCue {
	return AudioCue{Base: NewBase(KindAudioCue), URL: url, VideoURL: videoURL, Offset: offset}
}
