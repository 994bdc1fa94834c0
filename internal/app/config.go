package app

import (
	"time"

	"github.com/archiletras/fichas-backend/internal/cards"
	"github.com/archiletras/fichas-backend/internal/platform/envutil"
	"github.com/archiletras/fichas-backend/internal/platform/logger"
)

type Config struct {
	DefaultProvider string
	RequestTimeout  time.Duration
	ProbeTimeout    time.Duration
	DuplicateMode   string
	PromptTemplates cards.Templates
}

func LoadConfig(log *logger.Logger) Config {
	templates, err := cards.LoadTemplates(envutil.Str("PROMPTS_PATH", ""))
	if err != nil {
		log.Warn("prompt template load failed, using defaults", "error", err)
	}
	return Config{
		DefaultProvider: envutil.Str("AI_DEFAULT_PROVIDER", "openai"),
		RequestTimeout:  envutil.Seconds("AI_REQUEST_TIMEOUT_SECONDS", 60*time.Second),
		ProbeTimeout:    envutil.Seconds("AI_PROBE_TIMEOUT_SECONDS", 3*time.Second),
		DuplicateMode:   envutil.Str("DUP_MATCH_MODE", cards.MatchModeExact),
		PromptTemplates: templates,
	}
}
