package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/satriahrh/kyc-voice/domain/entities"
	"github.com/satriahrh/kyc-voice/domain/repositories"
)

// DefaultLanguage is the recognition language used when AudioConfig leaves it empty
const DefaultLanguage = "en-IN"

// MaxAudioChunk bounds the audio carried by one streaming request
const MaxAudioChunk = 8 * 1024

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	client *speech.Client
	logger *zap.Logger
}

// Ensure GoogleSpeechToText implements the SpeechToText interface
var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText dials Google Cloud Speech using application default credentials
func NewGoogleSpeechToText(ctx context.Context, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleSpeechToText{client: client, logger: logger}, nil
}

// Close releases the underlying gRPC connection
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

func (g *GoogleSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return nil, err
	}

	language := config.Language
	if language == "" {
		language = DefaultLanguage
	}

	stream, err := g.client.StreamingRecognize(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   encoding,
					SampleRateHertz:            int32(config.SampleRate),
					LanguageCode:               language,
					EnableAutomaticPunctuation: false,
				},
				InterimResults:  false,
				SingleUtterance: true,
			},
		},
	}); err != nil {
		_ = stream.CloseSend()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	return newRecognitionStream(ctx, stream, g.logger), nil
}

func newRecognitionStream(ctx context.Context, stream speechpb.Speech_StreamingRecognizeClient, logger *zap.Logger) *GoogleSpeechToTextStream {
	s := &GoogleSpeechToTextStream{
		stream: stream,
		ctx:    ctx,
		done:   make(chan recognition, 1),
		logger: logger,
	}
	go s.receiveResults()
	return s
}

type recognition struct {
	transcript string
	err        error
}

// GoogleSpeechToTextStream is one single-utterance recognition
type GoogleSpeechToTextStream struct {
	stream        speechpb.Speech_StreamingRecognizeClient
	ctx           context.Context
	done          chan recognition
	logger        *zap.Logger
	mu            sync.Mutex
	audioReceived bool
	serverClosed  bool
}

// Stream sends data in requests of at most MaxAudioChunk bytes. Once the
// recognizer has closed the stream (end of utterance) further audio is dropped.
func (g *GoogleSpeechToTextStream) Stream(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	g.mu.Lock()
	g.audioReceived = true
	closed := g.serverClosed
	g.mu.Unlock()
	if closed {
		return nil
	}

	for start := 0; start < len(data); start += MaxAudioChunk {
		end := min(start+MaxAudioChunk, len(data))
		err := g.stream.Send(&speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
				AudioContent: data[start:end],
			},
		})
		if errors.Is(err, io.EOF) {
			// the real status arrives through Recv
			g.mu.Lock()
			g.serverClosed = true
			g.mu.Unlock()
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to send audio data: %w", err)
		}
	}
	return nil
}

// End closes the audio stream and waits for the final transcript. An utterance
// with no recognizable speech reports entities.ErrNotUnderstood.
func (g *GoogleSpeechToTextStream) End() (string, error) {
	if err := g.stream.CloseSend(); err != nil {
		return "", fmt.Errorf("failed to close send stream: %w", err)
	}

	g.mu.Lock()
	received := g.audioReceived
	g.mu.Unlock()
	if !received {
		return "", fmt.Errorf("no audio data received: %w", entities.ErrNotUnderstood)
	}

	select {
	case <-g.ctx.Done():
		return "", fmt.Errorf("context cancelled while waiting for result: %w", g.ctx.Err())
	case r := <-g.done:
		if r.err != nil {
			return "", r.err
		}
		if strings.TrimSpace(r.transcript) == "" {
			return "", fmt.Errorf("no speech detected in audio: %w", entities.ErrNotUnderstood)
		}
		return r.transcript, nil
	}
}

func (g *GoogleSpeechToTextStream) receiveResults() {
	var parts []string
	for {
		resp, err := g.stream.Recv()
		if errors.Is(err, io.EOF) {
			g.done <- recognition{transcript: strings.Join(parts, " ")}
			return
		}
		if err != nil {
			g.done <- recognition{err: fmt.Errorf("failed to receive response: %w", err)}
			return
		}

		for _, result := range resp.Results {
			if result.IsFinal && len(result.Alternatives) > 0 {
				alt := result.Alternatives[0]
				g.logger.Debug("Final recognition result",
					zap.String("transcript", alt.Transcript),
					zap.Float32("confidence", alt.Confidence))
				parts = append(parts, strings.TrimSpace(alt.Transcript))
			}
		}
	}
}

// TranscribeAudio converts one captured utterance to text. The stream is torn
// down on return, whatever the outcome.
func (g *GoogleSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := g.InitTranscribeStreaming(ctx, config)
	if err != nil {
		return "", fmt.Errorf("failed to initialize streaming: %w", err)
	}

	if err := stream.Stream(audioData); err != nil {
		return "", fmt.Errorf("failed to stream audio data: %w", err)
	}

	return stream.End()
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported audio encoding: %s", encoding)
	}
}
