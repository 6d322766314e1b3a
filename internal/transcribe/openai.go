// ABOUTME: Voice-note transcription via the OpenAI audio transcription API
// ABOUTME: Downloads the platform voice file and returns plain transcript text

package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// VoiceFileSource fetches the raw bytes of a voice attachment by its
// platform file ID. The Telegram client satisfies this.
type VoiceFileSource interface {
	DownloadVoiceFile(ctx context.Context, fileID string) ([]byte, error)
}

// Transcriber turns a voice-note file ID into transcript text.
type Transcriber interface {
	// TranscribeVoice returns the transcript, or empty when the audio had
	// no intelligible speech.
	TranscribeVoice(ctx context.Context, fileID string) (string, error)
}

// OpenAITranscriber implements Transcriber on the OpenAI audio API.
type OpenAITranscriber struct {
	client openai.Client
	files  VoiceFileSource
	logger *slog.Logger
}

func NewOpenAITranscriber(apiKey string, files VoiceFileSource, logger *slog.Logger) *OpenAITranscriber {
	return &OpenAITranscriber{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		files:  files,
		logger: logger.With("component", "transcribe"),
	}
}

// TranscribeVoice downloads the voice file and submits it for transcription.
func (t *OpenAITranscriber) TranscribeVoice(ctx context.Context, fileID string) (string, error) {
	data, err := t.files.DownloadVoiceFile(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("fetching voice file: %w", err)
	}
	t.logger.Debug("voice file fetched", "file_id", fileID, "bytes", len(data))

	// Telegram voice notes are OGG/Opus.
	result, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModelWhisper1,
		File:  openai.File(bytes.NewReader(data), "voice.ogg", "audio/ogg"),
	})
	if err != nil {
		return "", fmt.Errorf("transcribing audio: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	t.logger.Info("transcription complete", "file_id", fileID, "chars", len(text))
	return text, nil
}
