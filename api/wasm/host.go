package wasm

// Functions the host provides to guests, imported from module "host".
//
//	log_message(level, ptr, length uint32)
const (
	HostModule     = "host"
	HostLogMessage = "log_message"
)

// LogLevel is the level argument of log_message.
type LogLevel uint32

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)
