package constants

import "time"

const (
	DefaultRequestTimeout = 10 * time.Second
	DefaultTimeout        = 30 * time.Second

	DatabaseSSLMode         = "disable"
	DatabaseMaxOpenConns    = 25
	DatabaseMaxIdleConns    = 10
	DatabaseConnMaxLifetime = 60 // minutes

	DefaultPageNumber = 1
	DefaultPageSize   = 20
	MaxPageSize       = 100
)

// Echo context keys
const (
	ContextTokenData   = "token_data"
	ContextParticipant = "participant"
	ContextRequestID   = "request_id"
)

const (
	HeaderParticipantID = "X-Participant-ID"
	HeaderRetryAfter    = "Retry-After"
)

// Redis keys and channels
const (
	RedisChannelResponsesChanged = "calendar:%s:responses"
	RedisKeyRateLimit            = "rate_limit:%s:%s"
)

// Canonical formats for slot identity.
const (
	DateLayout    = "2006-01-02"
	TimeLayout    = "15:04"
	SlotSeparator = " "
)

const (
	TaskExportResults = "export:results"
	QueueDefault      = "default"
)
