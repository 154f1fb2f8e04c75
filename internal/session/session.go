// Package session owns one live transcription session per WebSocket
// connection: inbound audio ingestion and chunking, recognition dispatch,
// subtitle reconciliation, and the outbound event stream.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mickekring/live-subtitles/internal/audio"
	"github.com/mickekring/live-subtitles/internal/config"
	"github.com/mickekring/live-subtitles/internal/model"
	"github.com/mickekring/live-subtitles/internal/observability"
	"github.com/mickekring/live-subtitles/internal/subtitle"
	"github.com/mickekring/live-subtitles/internal/transcribe"
	"github.com/mickekring/live-subtitles/internal/translate"
)

// Session is the state of one live transcription connection. The buffer,
// history, and filter are owned exclusively by the session and discarded at
// teardown; nothing persists.
type Session struct {
	id     string
	conn   *websocket.Conn
	params Params
	cfg    *config.Config

	models      *model.Manager
	transcriber *transcribe.Dispatcher
	translator  *translate.Dispatcher

	chunker        *audio.Chunker
	instantChunker *audio.Chunker // nil unless instant mode
	history        *subtitle.History
	dupFilter      *subtitle.DuplicateFilter

	audioIn chan []float32
	events  chan Event

	ctx    context.Context
	cancel context.CancelFunc

	metrics *observability.SessionMetrics
	logger  zerolog.Logger
}

// New creates a session for an upgraded connection
func New(conn *websocket.Conn, params Params, cfg *config.Config, models *model.Manager, transcriber *transcribe.Dispatcher, translator *translate.Dispatcher) *Session {
	id := observability.NewSessionID()
	ctx, cancel := context.WithCancel(context.Background())

	policy := audio.Policy{
		BlockSamples:   cfg.BlockSamples,
		BaseBlocks:     cfg.BaseBlocks,
		BlocksPerLevel: cfg.BlocksPerLevel,
		OverlapRatio:   cfg.OverlapRatio,
	}

	historySize := cfg.HistorySize
	if params.TranslationEnabled() {
		historySize = cfg.HistorySizeTranslation
	}

	s := &Session{
		id:          id,
		conn:        conn,
		params:      params,
		cfg:         cfg,
		models:      models,
		transcriber: transcriber,
		translator:  translator,
		chunker:     audio.NewChunkerForLevel(policy, params.VADLevel),
		history:     subtitle.NewHistory(historySize, secondsToDuration(cfg.ReconcileWindow)),
		dupFilter:   subtitle.NewDuplicateFilter(secondsToDuration(cfg.DuplicateWindow)),
		audioIn:     make(chan []float32, 100),
		events:      make(chan Event, 100),
		ctx:         ctx,
		cancel:      cancel,
		metrics:     observability.NewSessionMetrics(id),
		logger: observability.WithSession(id).With().
			Str("model", params.Model).
			Int("vad", params.VADLevel).
			Bool("instant", params.Instant).
			Logger(),
	}

	if params.Instant {
		instantSize := cfg.InstantBlocks * cfg.BlockSamples
		s.instantChunker = audio.NewChunker(instantSize, policy.OverlapSamples(instantSize))
	}

	return s
}

// Run drives the session until the connection closes or a protocol error
// occurs. It blocks the caller; processing and event writing run on their own
// goroutines so a stalled recognition call never blocks other sessions.
func (s *Session) Run() error {
	s.metrics.RecordSessionStart()
	s.models.Attach(s.params.Model)

	defer func() {
		s.cancel()
		s.models.Detach(s.params.Model)
		// Partial buffers and pending history are discarded, not dispatched
		s.chunker.Reset()
		if s.instantChunker != nil {
			s.instantChunker.Reset()
		}
		s.history.Clear()
		s.metrics.RecordSessionEnd()
		s.logger.Info().Msg("Session closed")
	}()

	s.logger.Info().Msg("Session started")

	go s.writeEvents()
	go s.processAudio()

	if err := s.ensureModelReady(); err != nil {
		s.emit(ErrorEvent{Message: err.Error()})
		return err
	}

	return s.readLoop()
}

// ensureModelReady waits for the session's model, emitting loading/loaded
// events around the wait. Failure is surfaced as a non-fatal status; the
// caller decides to close.
func (s *Session) ensureModelReady() error {
	if s.models.Status(s.params.Model).Status == model.StatusReady {
		return nil
	}

	s.emit(ModelLoadingEvent{Model: s.params.Model})
	if err := s.models.AwaitReady(s.ctx, s.params.Model); err != nil {
		s.metrics.RecordError("model_load_error", "session")
		return fmt.Errorf("model %s unavailable: %w", s.params.Model, err)
	}
	s.emit(ModelLoadedEvent{Model: s.params.Model})
	return nil
}

// readLoop consumes inbound frames. Binary frames are audio; anything else,
// or an undecodable frame, is a protocol error that closes the session.
func (s *Session) readLoop() error {
	defer s.cancel()

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return nil
		}

		if msgType != websocket.BinaryMessage {
			s.metrics.RecordError("protocol_error", "session")
			return errors.New("protocol error: expected binary audio frame")
		}

		samples, err := audio.DecodeFloat32LE(data)
		if err != nil {
			s.metrics.RecordError("protocol_error", "session")
			return fmt.Errorf("protocol error: %w", err)
		}

		select {
		case s.audioIn <- samples:
		case <-s.ctx.Done():
			return nil
		default:
			// Processing is behind; dropping input is preferable to
			// accumulating a desynchronized backlog.
			s.logger.Warn().Msg("Audio queue full, dropping block")
			s.metrics.RecordChunkDropped("queue_full")
		}
	}
}

// processAudio chunks inbound samples and dispatches complete chunks
func (s *Session) processAudio() {
	for {
		select {
		case samples := <-s.audioIn:
			s.metrics.RecordSamplesIngested(len(samples))

			if s.instantChunker != nil {
				for _, chunk := range s.instantChunker.Ingest(samples) {
					s.handleChunk(subtitle.KindInstant, chunk)
				}
			}
			for _, chunk := range s.chunker.Ingest(samples) {
				s.handleChunk(subtitle.KindFinal, chunk)
			}

		case <-s.ctx.Done():
			return
		}
	}
}

// handleChunk runs one recognition pass and reconciles its segments.
// Per-chunk errors are absorbed: one bad chunk never ends the session.
func (s *Session) handleChunk(kind subtitle.Kind, chunk []float32) {
	s.metrics.RecordChunkEmitted(string(kind))
	s.metrics.RecordTranscribeStart()

	segments, err := s.transcriber.Dispatch(s.ctx, s.params.Model, chunk, s.params.VADLevel, kind)
	if err != nil {
		if errors.Is(err, transcribe.ErrModelNotReady) {
			// Never queue chunks behind a loading model
			s.metrics.RecordChunkDropped("model_not_ready")
			s.emit(ModelLoadingEvent{Model: s.params.Model})
			return
		}
		s.metrics.RecordTranscribeEnd(string(kind), false)
		s.metrics.RecordError("transcription_error", "transcribe")
		s.logger.Error().Err(err).Str("mode", string(kind)).Msg("Recognition failed, chunk dropped")
		if kind == subtitle.KindFinal {
			s.emit(ErrorEvent{Message: err.Error()})
		}
		return
	}
	s.metrics.RecordTranscribeEnd(string(kind), true)

	for _, seg := range segments {
		switch kind {
		case subtitle.KindInstant:
			s.history.AddInstant(seg)
			s.emit(TranscriptionEvent{Segment: seg})

		case subtitle.KindFinal:
			if !s.dupFilter.Accept(seg.Text, seg.At) {
				s.metrics.RecordDuplicateSuppressed()
				s.logger.Debug().Str("text", seg.Text).Msg("Suppressed repeated final")
				continue
			}
			replaced := s.history.AddFinal(seg, seg.At)
			s.emit(TranscriptionEvent{Segment: seg, Replaces: replaced})
			s.maybeTranslate(seg)
		}
	}
}

// maybeTranslate fires a background translation job for an accepted final.
// The result arrives as a separate event keyed by segment id; failure leaves
// the slot empty and is not retried.
func (s *Session) maybeTranslate(seg subtitle.Segment) {
	if s.translator == nil || !s.params.TranslationEnabled() {
		return
	}

	job := translate.Job{
		SegmentID:      seg.ID,
		Text:           seg.Text,
		TargetLanguage: s.params.TargetLanguage,
		Model:          s.params.TranslationModel,
	}
	s.translator.Dispatch(s.ctx, job, s.metrics, func(res translate.Result) {
		s.emit(TranslationEvent{
			SegmentID:   res.SegmentID,
			Translation: res.Translation,
			Failed:      res.Err != nil,
		})
	})
}

// writeEvents serializes outbound events onto the connection
func (s *Session) writeEvents() {
	for {
		select {
		case ev := <-s.events:
			if err := s.conn.WriteJSON(ev); err != nil {
				s.logger.Warn().Err(err).Msg("WebSocket write error")
				s.cancel()
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// emit queues an event without ever blocking the pipeline
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn().Str("event", fmt.Sprintf("%T", ev)).Msg("Event queue full, dropping")
	}
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// History exposes the session's current output history (used in tests)
func (s *Session) History() *subtitle.History {
	return s.history
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
