// Package cfg holds the ghtriage application configuration.
package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"

	"github.com/joho/godotenv"
)

// DefaultReportOutput is where the directory report is written unless -output says otherwise.
const DefaultReportOutput = "artifacts/python-directory-contents.txt"

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	Owner              string
	Repo               string
	Token              string
	APIURL             string
	HTTPTimeoutSeconds int
	DryRun             bool
	PushgatewayURL     string
	SlackWebhookURL    string
	EnvFile            string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Owner, "owner", "", "repository owner (user or organization)")
	fs.StringVar(&c.Repo, "repo", "", "repository name")
	fs.StringVar(&c.Token, "token", "", "GitHub token with security_events access")
	fs.StringVar(&c.APIURL, "api-url", "https://api.github.com/", "GitHub REST API base URL")
	fs.IntVar(&c.HTTPTimeoutSeconds, "http-timeout-seconds", 30, "timeout for each GitHub API request (1..300)")
	fs.BoolVar(&c.DryRun, "dry-run", false, "report alerts that would be dismissed without dismissing them")
	fs.StringVar(&c.PushgatewayURL, "pushgateway-url", "", "Prometheus Pushgateway URL to push run metrics to (empty = disabled)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for run summaries (empty = disabled)")
	fs.StringVar(&c.EnvFile, "env-file", "", "optional dotenv file loaded before reading the environment")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Repository coordinates and credentials are required for every alert pipeline
	if c.Owner == "" {
		errs = append(errs, errors.New("GH_OWNER is required"))
	}
	if c.Repo == "" {
		errs = append(errs, errors.New("GH_REPO is required"))
	}
	if c.Token == "" {
		errs = append(errs, errors.New("GH_TOKEN is required"))
	}

	if err := validURL("GH_API_URL", c.APIURL, true); err != nil {
		errs = append(errs, err)
	}

	if c.HTTPTimeoutSeconds <= 0 || c.HTTPTimeoutSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid GH_HTTP_TIMEOUT_SECONDS %d (must be 1..300)", c.HTTPTimeoutSeconds))
	}

	// Optional integrations only need to parse when set
	if err := validURL("GH_PUSHGATEWAY_URL", c.PushgatewayURL, false); err != nil {
		errs = append(errs, err)
	}
	if err := validURL("GH_SLACK_WEBHOOK_URL", c.SlackWebhookURL, false); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ReportConfig configures the directory report.
type ReportConfig struct {
	Root   string
	Output string
}

// RegisterFlags binds ReportConfig fields to the given FlagSet with defaults inline
func (c *ReportConfig) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Root, "root", ".", "directory to enumerate")
	fs.StringVar(&c.Output, "output", DefaultReportOutput, "report file to write")
}

// Validate checks the report configuration.
func (c *ReportConfig) Validate() error {
	var errs []error
	if c.Root == "" {
		errs = append(errs, errors.New("GH_ROOT is required"))
	}
	if c.Output == "" {
		errs = append(errs, errors.New("GH_OUTPUT is required"))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set win. An empty path is a no-op.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("env file %s: %w", path, err)
	}
	return nil
}

func validURL(name, raw string, required bool) error {
	if raw == "" {
		if required {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s %q (must be an absolute http or https URL)", name, raw)
	}
	return nil
}
