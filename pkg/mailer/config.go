package mailer

// Providers for Config.Provider.
const (
	ProviderNone   = "none"
	ProviderLog    = "log"
	ProviderResend = "resend"
)

type Config struct {
	// Provider selects the Sender: none, log or resend.
	Provider string `yaml:"provider" env:"MAIL_PROVIDER" envDefault:"log"`
	From     string `yaml:"from" env:"MAIL_FROM" envDefault:"canopy <noreply@localhost>"`
	APIKey   string `yaml:"api_key" env:"MAIL_API_KEY"`

	Layout          string `yaml:"layout" env:"MAIL_LAYOUT" envDefault:"base.html"`
	FallbackSubject string `yaml:"fallback_subject" env:"MAIL_FALLBACK_SUBJECT" envDefault:"Notification"`
}

// Enabled reports whether mail leaves the process at all.
func (c Config) Enabled() bool {
	return c.Provider != "" && c.Provider != ProviderNone
}
