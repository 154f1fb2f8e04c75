package session

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/mickekring/live-subtitles/internal/config"
)

// Params are the per-session settings selected by query parameters at
// channel open.
type Params struct {
	Model            string
	VADLevel         int  // 1-5, higher means smaller chunks
	Instant          bool // Enable the quick provisional pass
	TargetLanguage   string // Empty disables translation
	TranslationModel string
}

// ParamsFromQuery parses session parameters, applying config defaults.
// An out-of-range VAD level is a protocol error.
func ParamsFromQuery(q url.Values, cfg *config.Config) (Params, error) {
	p := Params{
		Model:            cfg.DefaultModel,
		VADLevel:         3,
		TranslationModel: cfg.TranslationModel,
	}

	if m := q.Get("model"); m != "" {
		p.Model = m
	}

	if v := q.Get("vad"); v != "" {
		level, err := strconv.Atoi(v)
		if err != nil {
			return Params{}, fmt.Errorf("invalid vad parameter %q", v)
		}
		if level < 1 || level > 5 {
			return Params{}, fmt.Errorf("vad level %d out of range 1-5", level)
		}
		p.VADLevel = level
	}

	if i := q.Get("instant"); i != "" {
		instant, err := strconv.ParseBool(i)
		if err != nil {
			return Params{}, fmt.Errorf("invalid instant parameter %q", i)
		}
		p.Instant = instant
	}

	p.TargetLanguage = q.Get("target_language")
	if tm := q.Get("translation_model"); tm != "" {
		p.TranslationModel = tm
	}

	return p, nil
}

// TranslationEnabled reports whether confirmed transcripts should be
// dispatched for translation.
func (p Params) TranslationEnabled() bool {
	return p.TargetLanguage != "" && p.TranslationModel != ""
}
