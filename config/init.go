package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	localerrors "github.com/mailsink/mailsink/internal/errors"
	"github.com/mailsink/mailsink/internal/logger"
	"github.com/mailsink/mailsink/internal/tracing"
)

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:       &AppConfig{},
		Logger:          &logger.Config{},
		Tracing:         &tracing.JaegerConfig{},
		GraphConfig:     &GraphConfig{},
		IMAPConfig:      &IMAPConfig{},
		FilterConfig:    &FilterConfig{},
		PaperlessConfig: &PaperlessConfig{},
		LedgerConfig:    &LedgerConfig{},
		ArchiveConfig:   &ArchiveConfig{},
		CronConfig:      &CronConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse environment")
	}

	return config, nil
}

// Validate fails before any collaborator I/O when settings are missing or
// conflicting.
func (c *Config) Validate() error {
	switch c.AppConfig.MailSource {
	case MailSourceGraph:
		if err := c.validateGraph(); err != nil {
			return err
		}
	case MailSourceIMAP:
		if err := c.validateIMAP(); err != nil {
			return err
		}
	default:
		return errors.Wrapf(localerrors.ErrInvalidConfig, "unknown mail source %q", c.AppConfig.MailSource)
	}

	if c.PaperlessConfig.BaseURL == "" {
		return errors.Wrap(localerrors.ErrInvalidConfig, "PAPERLESS_BASE_URL is required")
	}
	if c.PaperlessConfig.APIToken == "" {
		return errors.Wrap(localerrors.ErrInvalidConfig, "PAPERLESS_API_TOKEN is required")
	}

	if err := c.compiledFilenamePatterns(); err != nil {
		return errors.Wrap(localerrors.ErrInvalidConfig, err.Error())
	}

	if c.ArchiveConfig.Enabled {
		if c.ArchiveConfig.AccessKeyID == "" || c.ArchiveConfig.AccessKeySecret == "" {
			return errors.Wrap(localerrors.ErrInvalidConfig, "archive mode requires access credentials")
		}
	}

	return nil
}

func (c *Config) validateGraph() error {
	if c.GraphConfig.ClientID == "" {
		return errors.Wrap(localerrors.ErrInvalidConfig, "GRAPH_CLIENT_ID is required")
	}

	switch c.GraphConfig.AuthMode {
	case GraphAuthClientCredentials:
		if c.GraphConfig.ClientSecret == "" {
			return errors.Wrap(localerrors.ErrInvalidConfig, "GRAPH_CLIENT_SECRET is required for client_credentials mode")
		}
		if c.GraphConfig.Mailbox == "" {
			return errors.Wrap(localerrors.ErrInvalidConfig, "GRAPH_MAILBOX is required for client_credentials mode")
		}
		if c.GraphConfig.TenantID == "" && c.GraphConfig.Authority == "" {
			return errors.Wrap(localerrors.ErrInvalidConfig, "GRAPH_TENANT_ID or GRAPH_AUTHORITY must be provided for client_credentials mode")
		}
	case GraphAuthDeviceCode:
		if c.GraphConfig.Mailbox != "" {
			return errors.Wrap(localerrors.ErrInvalidConfig, "GRAPH_MAILBOX must be omitted for device_code mode; the signed-in mailbox is used")
		}
	default:
		return errors.Wrapf(localerrors.ErrInvalidConfig, "unknown graph auth mode %q", c.GraphConfig.AuthMode)
	}

	return nil
}

func (c *Config) validateIMAP() error {
	if c.IMAPConfig.Host == "" {
		return errors.Wrap(localerrors.ErrInvalidConfig, "IMAP_HOST is required")
	}
	if c.IMAPConfig.Username == "" || c.IMAPConfig.Password == "" {
		return errors.Wrap(localerrors.ErrInvalidConfig, "IMAP_USERNAME and IMAP_PASSWORD are required")
	}
	return nil
}
