package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aetherium-labs/aetherium-backend/internal/llm"
	"github.com/aetherium-labs/aetherium-backend/internal/logging"
	"github.com/aetherium-labs/aetherium-backend/internal/media"
)

type VideoInput struct {
	Prompt          string `json:"prompt" validate:"required,max=4000"`
	DurationSeconds int    `json:"durationSeconds" validate:"min=5,max=8"`
	AspectRatio     string `json:"aspectRatio" validate:"oneof=16:9 9:16"`
}

type VideoOutput struct {
	VideoDataURI string `json:"videoDataUri" validate:"required,datauri"`
	MIMEType     string `json:"-"`
	Data         []byte `json:"-"`
}

// Progress is called after every poll of a running video generation.
type Progress func(attempt int)

// GenerateVideo starts a video generation and polls it until done, the
// attempt budget runs out, the time budget runs out, or ctx is cancelled.
func (s *Service) GenerateVideo(ctx context.Context, in VideoInput, progress Progress) (*VideoOutput, error) {
	const failMessage = "no video was generated"
	if in.DurationSeconds == 0 {
		in.DurationSeconds = 5
	}
	if in.AspectRatio == "" {
		in.AspectRatio = "16:9"
	}
	if err := s.Validate(in); err != nil {
		return nil, err
	}

	_, prompt, err := s.prompts.Render(OpVideo, in)
	if err != nil {
		return nil, err
	}

	if s.poll.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.poll.Timeout)
		defer cancel()
	}

	logger := logging.FromContext(ctx)
	started := time.Now()
	op, err := s.llm.StartVideo(ctx, llm.VideoRequest{
		Prompt:          prompt,
		AspectRatio:     in.AspectRatio,
		DurationSeconds: in.DurationSeconds,
	})
	if err != nil {
		return nil, failed(OpVideo, failMessage, err)
	}

	attempt := 0
	for !op.Done {
		if s.poll.MaxAttempts > 0 && attempt >= s.poll.MaxAttempts {
			logger.LogWarnf(OpVideo, "gave up after %d polls (%s)", attempt, time.Since(started).Round(time.Second))
			return nil, failed(OpVideo, failMessage, ErrPollExhausted)
		}
		if err := s.sleep(ctx, s.poll.Interval); err != nil {
			return nil, failed(OpVideo, failMessage, pollContextErr(err))
		}
		attempt++
		op, err = s.llm.PollVideo(ctx, op)
		if err != nil {
			return nil, failed(OpVideo, failMessage, pollContextErr(err))
		}
		if progress != nil {
			progress(attempt)
		}
	}

	if op.Error != "" {
		return nil, failed(OpVideo, failMessage, fmt.Errorf("operation %s: %s", op.Name, op.Error))
	}
	if len(op.Videos) == 0 {
		return nil, emptyResult(OpVideo, failMessage)
	}

	video := op.Videos[0]
	data, err := s.llm.DownloadVideo(ctx, video)
	if err != nil {
		if errors.Is(err, llm.ErrNoCandidate) {
			return nil, emptyResult(OpVideo, failMessage)
		}
		return nil, failed(OpVideo, failMessage, err)
	}
	if len(data) == 0 {
		return nil, emptyResult(OpVideo, failMessage)
	}

	mimeType := video.MIMEType
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	logger.LogInfof(OpVideo, "video ready after %d polls (%d bytes)", attempt, len(data))
	return &VideoOutput{
		VideoDataURI: media.EncodeDataURI(mimeType, data),
		MIMEType:     mimeType,
		Data:         data,
	}, nil
}

// pollContextErr maps an expired time budget onto ErrPollExhausted; plain
// cancellation is passed through.
func pollContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrPollExhausted, err)
	}
	return err
}
