package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/aetherium-labs/aetherium-backend/internal/llm"
	"github.com/aetherium-labs/aetherium-backend/internal/media"
)

type ImageInput struct {
	Prompt string `json:"prompt" validate:"required,max=4000"`
	Style  string `json:"style,omitempty" validate:"max=200"`
}

type ImageOutput struct {
	ImageDataURI string `json:"imageDataUri" validate:"required,datauri"`
}

// GenerateImage renders a single image and returns it as a data URI.
func (s *Service) GenerateImage(ctx context.Context, in ImageInput) (*ImageOutput, error) {
	const failMessage = "no image was generated"
	if err := s.Validate(in); err != nil {
		return nil, err
	}

	_, prompt, err := s.prompts.Render(OpImage, in)
	if err != nil {
		return nil, err
	}

	blob, err := s.llm.GenerateImage(ctx, OpImage, prompt)
	if err != nil {
		if errors.Is(err, llm.ErrNoCandidate) {
			return nil, emptyResult(OpImage, failMessage)
		}
		return nil, failed(OpImage, failMessage, err)
	}
	if blob == nil || len(blob.Data) == 0 {
		return nil, emptyResult(OpImage, failMessage)
	}

	mimeType := blob.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	out := &ImageOutput{ImageDataURI: media.EncodeDataURI(mimeType, blob.Data)}
	if err := s.validate.Struct(out); err != nil {
		return nil, emptyResult(OpImage, failMessage)
	}
	return out, nil
}

type AudioInput struct {
	Text  string `json:"text" validate:"required,max=5000"`
	Voice string `json:"voice,omitempty" validate:"omitempty,alpha,max=40"`
}

type AudioOutput struct {
	AudioDataURI string `json:"audioDataUri" validate:"required,datauri"`
}

// GenerateAudio synthesises speech and returns it as a WAV data URI.
func (s *Service) GenerateAudio(ctx context.Context, in AudioInput) (*AudioOutput, error) {
	const failMessage = "no audio was generated"
	if err := s.Validate(in); err != nil {
		return nil, err
	}

	_, prompt, err := s.prompts.Render(OpAudio, in)
	if err != nil {
		return nil, err
	}
	voice := in.Voice
	if voice == "" {
		voice = s.voice
	}

	blob, err := s.llm.GenerateSpeech(ctx, OpAudio, prompt, voice)
	if err != nil {
		if errors.Is(err, llm.ErrNoCandidate) {
			return nil, emptyResult(OpAudio, failMessage)
		}
		return nil, failed(OpAudio, failMessage, err)
	}
	if blob == nil || len(blob.Data) == 0 {
		return nil, emptyResult(OpAudio, failMessage)
	}

	wav := blob.Data
	if !isWAV(blob.MIMEType) {
		wav, err = media.EncodeWAV(blob.Data, media.ParsePCMMimeType(blob.MIMEType))
		if err != nil {
			return nil, failed(OpAudio, failMessage, err)
		}
	}
	return &AudioOutput{AudioDataURI: media.EncodeDataURI("audio/wav", wav)}, nil
}

func isWAV(mimeType string) bool {
	t := strings.ToLower(mimeType)
	return strings.HasPrefix(t, "audio/wav") || strings.HasPrefix(t, "audio/x-wav")
}
