package utils

import (
	"log/slog"
	"os"
	"time"
)

type Config struct {
	port       string
	sqlitePath string

	timezone string

	groqApiKey string
	groqModel  string

	googleCredentialsFile string
	googleTokenFile       string
	googleCalendarID      string

	resyncSpec string
	sessionTTL time.Duration

	metricCollectionInterval time.Duration

	elevenLabsApiKey  string
	elevenLabsVoiceID string
	elevenLabsModel   string
}

func NewConfig() *Config {
	return &Config{
		port: func() string {
			port := os.Getenv("PORT")
			if port == "" {
				port = "8080"
			}
			slog.Debug("env", "PORT", port)
			return port
		}(),
		sqlitePath: func() string {
			sqlitePath := os.Getenv("SQLITE_PATH")
			if sqlitePath == "" {
				sqlitePath = "./calendar_events.db"
			}
			slog.Debug("env", "SQLITE_PATH", sqlitePath)
			return sqlitePath
		}(),

		timezone: func() string {
			timezoneStr := os.Getenv("TIMEZONE")
			if timezoneStr == "" {
				slog.Warn("TIMEZONE is not set, will use the calendar's timezone")
				return ""
			}
			if _, err := time.LoadLocation(timezoneStr); err != nil {
				slog.Error("invalid timezone", "timezone", timezoneStr, "error", err)
				os.Exit(1)
			}
			slog.Debug("env", "TIMEZONE", timezoneStr)
			return timezoneStr
		}(),

		groqApiKey: func() string {
			groqApiKey := os.Getenv("GROQ_API_KEY")
			if groqApiKey == "" {
				slog.Error("GROQ_API_KEY is not set")
				os.Exit(1)
			}
			slog.Debug("env", "GROQ_API_KEY", groqApiKey[0:3]+"...")
			return groqApiKey
		}(),
		groqModel: func() string {
			groqModel := os.Getenv("GROQ_MODEL")
			if groqModel == "" {
				groqModel = "llama-3.1-8b-instant"
			}
			slog.Debug("env", "GROQ_MODEL", groqModel)
			return groqModel
		}(),

		googleCredentialsFile: func() string {
			credentialsFile := os.Getenv("GOOGLE_CREDENTIALS_FILE")
			if credentialsFile == "" {
				credentialsFile = "credentials.json"
			}
			slog.Debug("env", "GOOGLE_CREDENTIALS_FILE", credentialsFile)
			return credentialsFile
		}(),
		googleTokenFile: func() string {
			tokenFile := os.Getenv("GOOGLE_TOKEN_FILE")
			if tokenFile == "" {
				tokenFile = "token.json"
			}
			slog.Debug("env", "GOOGLE_TOKEN_FILE", tokenFile)
			return tokenFile
		}(),
		googleCalendarID: func() string {
			calendarID := os.Getenv("GOOGLE_CALENDAR_ID")
			if calendarID == "" {
				calendarID = "primary"
			}
			slog.Debug("env", "GOOGLE_CALENDAR_ID", calendarID)
			return calendarID
		}(),

		resyncSpec: func() string {
			resyncSpec := os.Getenv("RESYNC_INTERVAL")
			if resyncSpec == "" {
				resyncSpec = "@every 15m"
			}
			slog.Debug("env", "RESYNC_INTERVAL", resyncSpec)
			return resyncSpec
		}(),
		sessionTTL: func() time.Duration {
			sessionTTL := os.Getenv("SESSION_TTL")
			if sessionTTL == "" {
				sessionTTL = "24h"
			}
			duration, err := time.ParseDuration(sessionTTL)
			if err != nil {
				slog.Error("invalid SESSION_TTL", "error", err)
				os.Exit(1)
			}
			slog.Debug("env", "SESSION_TTL", sessionTTL, "duration", duration)
			return duration
		}(),

		metricCollectionInterval: func() time.Duration {
			intervalStr := os.Getenv("METRIC_COLLECTION_INTERVAL")
			if intervalStr == "" {
				intervalStr = "5s"
			}
			duration, err := time.ParseDuration(intervalStr)
			if err != nil {
				slog.Error("invalid METRIC_COLLECTION_INTERVAL", "error", err)
				os.Exit(1)
			}
			slog.Debug("env", "METRIC_COLLECTION_INTERVAL", intervalStr)
			return duration
		}(),

		elevenLabsApiKey: func() string {
			elevenLabsApiKey := os.Getenv("ELEVENLABS_API_KEY")
			if elevenLabsApiKey == "" {
				slog.Warn("ELEVENLABS_API_KEY is not set, text-to-speech disabled")
				return ""
			}
			slog.Debug("env", "ELEVENLABS_API_KEY", elevenLabsApiKey[0:3]+"...")
			return elevenLabsApiKey
		}(),
		elevenLabsVoiceID: func() string {
			voiceID := os.Getenv("ELEVENLABS_VOICE_ID")
			if voiceID == "" {
				voiceID = "21m00Tcm4TlvDq8ikWAM"
			}
			slog.Debug("env", "ELEVENLABS_VOICE_ID", voiceID)
			return voiceID
		}(),
		elevenLabsModel: func() string {
			elevenLabsModel := os.Getenv("ELEVENLABS_MODEL")
			if elevenLabsModel == "" {
				elevenLabsModel = "eleven_multilingual_v2"
			}
			slog.Debug("env", "ELEVENLABS_MODEL", elevenLabsModel)
			return elevenLabsModel
		}(),
	}
}

// Get PORT env, default to 8080
func (c *Config) GetPort() string {
	return c.port
}

// Get SQLITE_PATH env, default to ./calendar_events.db
func (c *Config) GetSqlitePath() string {
	return c.sqlitePath
}

// Get TIMEZONE env, empty when unset (the session falls back to the
// calendar's timezone)
func (c *Config) GetTimezone() string {
	return c.timezone
}

// Get GROQ_API_KEY env
func (c *Config) GetGroqApiKey() string {
	return c.groqApiKey
}

// Get GROQ_MODEL env
func (c *Config) GetGroqModel() string {
	return c.groqModel
}

// Get GOOGLE_CREDENTIALS_FILE env
func (c *Config) GetGoogleCredentialsFile() string {
	return c.googleCredentialsFile
}

// Get GOOGLE_TOKEN_FILE env
func (c *Config) GetGoogleTokenFile() string {
	return c.googleTokenFile
}

// Get GOOGLE_CALENDAR_ID env, default to primary
func (c *Config) GetGoogleCalendarID() string {
	return c.googleCalendarID
}

// Get RESYNC_INTERVAL env, a cron spec
func (c *Config) GetResyncSpec() string {
	return c.resyncSpec
}

// Get SESSION_TTL env
func (c *Config) GetSessionTTL() time.Duration {
	return c.sessionTTL
}

// Get METRIC_COLLECTION_INTERVAL env
func (c *Config) GetMetricCollectionInterval() time.Duration {
	return c.metricCollectionInterval
}

// Get ELEVENLABS_API_KEY env, blank when unset
func (c *Config) GetElevenLabsApiKey() string {
	return c.elevenLabsApiKey
}

// Get ELEVENLABS_VOICE_ID env
func (c *Config) GetElevenLabsVoiceID() string {
	return c.elevenLabsVoiceID
}

// Get ELEVENLABS_MODEL env
func (c *Config) GetElevenLabsModel() string {
	return c.elevenLabsModel
}
