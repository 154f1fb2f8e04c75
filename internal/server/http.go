// Package server implements the request/response model-control and
// translation endpoints. These are boundary concerns: clients poll them,
// while the core pushes state changes to waiters internally.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mickekring/live-subtitles/internal/model"
	"github.com/mickekring/live-subtitles/internal/observability"
	"github.com/mickekring/live-subtitles/internal/translate"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// HandleRoot reports that the backend is running
func HandleRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "Live Subtitler Backend Running"})
	}
}

// HandleCheckModel reports whether a model's artifacts exist locally.
// GET ?model=small → {exists, model, size}
func HandleCheckModel(models *model.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := modelParam(r)
		exists, info, err := models.CheckExists(name)
		if err != nil {
			if errors.Is(err, model.ErrUnknownModel) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"exists": exists,
			"model":  name,
			"size":   info.Size,
		})
	}
}

// HandleModelStatus returns a model's lifecycle snapshot.
// GET ?model=small → {model, status, progress}
func HandleModelStatus(models *model.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.Status(modelParam(r)))
	}
}

// HandleLoadModel requests a model load and acknowledges immediately; the
// client polls status or download progress afterwards.
// POST ?model=small → {status, model}
func HandleLoadModel(models *model.Manager) http.HandlerFunc {
	logger := observability.GetLogger()

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
			return
		}

		name := modelParam(r)
		logger.Info().Str("model", name).Msg("Model load requested")

		status, err := models.RequestLoad(name)
		if err != nil {
			if errors.Is(err, model.ErrUnknownModel) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"status": string(status),
			"model":  name,
		})
	}
}

// HandleDownloadProgress returns the current download snapshot, or an empty
// object when nothing is downloading.
func HandleDownloadProgress(models *model.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := models.DownloadProgress()
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// HandleTranslate translates text on demand.
// POST ?text=...&target_language=...&model=... → {status, translation}
func HandleTranslate(client *translate.Client, defaultModel string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
			return
		}

		q := r.URL.Query()
		text := q.Get("text")
		target := q.Get("target_language")
		if text == "" || target == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"status":  "error",
				"message": "text and target_language are required",
			})
			return
		}

		translationModel := q.Get("model")
		if translationModel == "" {
			translationModel = defaultModel
		}

		translation, err := client.Translate(r.Context(), text, target, translationModel)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]string{
				"status":  "error",
				"message": err.Error(),
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"status":      "success",
			"translation": translation,
		})
	}
}

// HandleTranslationModels lists models available on the translation engine
func HandleTranslationModels(client *translate.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := client.Models(r.Context())
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"status":  "error",
				"message": "Ollama not available",
				"models":  []string{},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"models": names,
		})
	}
}

func modelParam(r *http.Request) string {
	if name := r.URL.Query().Get("model"); name != "" {
		return name
	}
	return "small"
}
