package config

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8080
	DefaultEnvironment = "development"
	DefaultLogLevel    = "info"

	DefaultRateLimitPerMinute = 60

	// Per-call budget for a single tool execution. Filesystem and upstream
	// lookups can block; nothing here should run longer than this.
	DefaultToolTimeoutSeconds = 10

	DefaultTargetLang    = "en"
	DefaultUpstreamModel = "auto"

	// Day files live under <root>/YYYY/MM/DD.md.
	DefaultDailyPlanRoot = "DailyPlan/daily-plans"

	DefaultAgentTimeout = 300 // seconds
)

var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
}
