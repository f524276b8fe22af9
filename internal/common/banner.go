package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and the settings that matter at startup
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("Divtrack", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("blog", config.Blog.TopicURL).
		Str("exchange", config.Exchange.BaseURL).
		Bool("market_data", config.EODHD.APIKey != "").
		Bool("scheduler", config.Scheduler.Enabled).
		Msg("Divtrack starting")
}
