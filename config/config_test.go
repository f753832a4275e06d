package config

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	localerrors "github.com/mailsink/mailsink/internal/errors"
)

func validConfig() *Config {
	return &Config{
		AppConfig: &AppConfig{MailSource: MailSourceGraph},
		GraphConfig: &GraphConfig{
			ClientID: "client-id",
			AuthMode: GraphAuthDeviceCode,
		},
		IMAPConfig: &IMAPConfig{},
		FilterConfig: &FilterConfig{
			FilenamePatternsRaw: "invoice;rechnung",
		},
		PaperlessConfig: &PaperlessConfig{
			BaseURL:  "https://paperless.local",
			APIToken: "token",
		},
		LedgerConfig:  &LedgerConfig{},
		ArchiveConfig: &ArchiveConfig{},
		CronConfig:    &CronConfig{},
	}
}

func TestValidate_DeviceCodeDefaults(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_UnknownMailSource(t *testing.T) {
	cfg := validConfig()
	cfg.AppConfig.MailSource = "pop3"

	err := cfg.Validate()

	assert.Error(t, err)
	assert.True(t, errors.Is(err, localerrors.ErrInvalidConfig))
}

func TestValidate_GraphRequiresClientID(t *testing.T) {
	cfg := validConfig()
	cfg.GraphConfig.ClientID = ""

	err := cfg.Validate()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "GRAPH_CLIENT_ID")
}

func TestValidate_ClientCredentialsRequiresSecretAndMailbox(t *testing.T) {
	cfg := validConfig()
	cfg.GraphConfig.AuthMode = GraphAuthClientCredentials

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "GRAPH_CLIENT_SECRET")

	cfg.GraphConfig.ClientSecret = "secret"
	err = cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "GRAPH_MAILBOX")

	cfg.GraphConfig.Mailbox = "billing@contoso.com"
	err = cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "GRAPH_TENANT_ID")

	cfg.GraphConfig.TenantID = "tenant"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_DeviceCodeForbidsMailbox(t *testing.T) {
	cfg := validConfig()
	cfg.GraphConfig.Mailbox = "billing@contoso.com"

	err := cfg.Validate()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "GRAPH_MAILBOX")
}

func TestValidate_IMAPRequiresCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.AppConfig.MailSource = MailSourceIMAP

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "IMAP_HOST")

	cfg.IMAPConfig.Host = "mail.example.com"
	err = cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "IMAP_USERNAME")

	cfg.IMAPConfig.Username = "user"
	cfg.IMAPConfig.Password = "pass"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_PaperlessRequired(t *testing.T) {
	cfg := validConfig()
	cfg.PaperlessConfig.BaseURL = ""
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "PAPERLESS_BASE_URL")

	cfg = validConfig()
	cfg.PaperlessConfig.APIToken = ""
	err = cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "PAPERLESS_API_TOKEN")
}

func TestValidate_BadFilenamePattern(t *testing.T) {
	cfg := validConfig()
	cfg.FilterConfig.FilenamePatternsRaw = "(["

	err := cfg.Validate()

	assert.Error(t, err)
	assert.True(t, errors.Is(err, localerrors.ErrInvalidConfig))
}

func TestValidate_ArchiveNeedsCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.ArchiveConfig.Enabled = true

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "access credentials")

	cfg.ArchiveConfig.AccessKeyID = "key"
	cfg.ArchiveConfig.AccessKeySecret = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestFilterConfig_ListAccessors(t *testing.T) {
	cfg := &FilterConfig{
		SubjectKeywordsRaw:  "Invoice; Rechnung",
		FilenamePatternsRaw: "",
		SenderWhitelistRaw:  "Billing@Acme.com",
	}

	assert.Equal(t, []string{"invoice", "rechnung"}, cfg.SubjectKeywords())
	assert.Equal(t, []string{"invoice", "rechnung"}, cfg.FilenamePatterns())
	assert.Equal(t, []string{"billing@acme.com"}, cfg.SenderWhitelist())
}

func TestGraphConfig_Scopes(t *testing.T) {
	cfg := &GraphConfig{ScopesRaw: "Mail.Read;offline_access"}
	assert.Equal(t, []string{"Mail.Read", "offline_access"}, cfg.Scopes())

	cfg = &GraphConfig{}
	assert.Equal(t, []string{"Mail.Read"}, cfg.Scopes())
}
