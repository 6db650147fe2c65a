package orchestration

import (
	"context"
	"time"
)

// QuestionRecord is the persisted outcome of a completed question cycle.
type QuestionRecord struct {
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	AskedAt   time.Time `json:"asked_at"`

	Keywords          []string `json:"keywords,omitempty"`
	RelatedConcepts   []string `json:"related_concepts,omitempty"`
	FollowUpQuestions []string `json:"follow_up_questions,omitempty"`

	VisualURL      *string `json:"visual_url,omitempty"`
	AudioURL       *string `json:"audio_url,omitempty"`
	AvatarVideoURL *string `json:"avatar_video_url,omitempty"`

	Duration time.Duration `json:"duration"`
}

// RecordSink receives completed question records. Persistence is best-effort:
// a failing sink never affects the event stream.
type RecordSink interface {
	SaveRecord(ctx context.Context, record QuestionRecord) error
}

const recordSaveTimeout = 10 * time.Second

func dispatchRecord(sink RecordSink, record QuestionRecord) {
	if sink == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordSaveTimeout)
		defer cancel()

		if err := sink.SaveRecord(ctx, record); err != nil {
			logger.WarnContext(ctx, "failed to save question record",
				"session_id", record.SessionID, "error", err)
		}
	}()
}
