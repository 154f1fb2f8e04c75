package session

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mickekring/live-subtitles/internal/config"
	"github.com/mickekring/live-subtitles/internal/model"
	"github.com/mickekring/live-subtitles/internal/observability"
	"github.com/mickekring/live-subtitles/internal/transcribe"
	"github.com/mickekring/live-subtitles/internal/translate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The subtitle frontend runs on a separate origin in development;
		// restrict this before exposing the service publicly.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// HandleTranscribeWS is the entry point for transcription WebSocket
// connections. Query parameters select the model, VAD level, instant mode,
// and translation target.
func HandleTranscribeWS(cfg *config.Config, models *model.Manager, transcriber *transcribe.Dispatcher, translator *translate.Dispatcher) http.HandlerFunc {
	logger := observability.GetLogger()

	return func(w http.ResponseWriter, r *http.Request) {
		params, err := ParamsFromQuery(r.URL.Query(), cfg)
		if err != nil {
			logger.Warn().Err(err).Msg("Rejected WebSocket connection")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}
		defer conn.Close()

		s := New(conn, params, cfg, models, transcriber, translator)
		if err := s.Run(); err != nil {
			logger.Warn().Err(err).Str("session_id", s.ID()).Msg("Session ended with error")
		}
	}
}
