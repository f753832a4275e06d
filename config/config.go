package config

import (
	"regexp"

	"github.com/mailsink/mailsink/internal/database"
	"github.com/mailsink/mailsink/internal/logger"
	"github.com/mailsink/mailsink/internal/tracing"
	"github.com/mailsink/mailsink/internal/utils"
)

const (
	MailSourceGraph = "graph"
	MailSourceIMAP  = "imap"

	GraphAuthClientCredentials = "client_credentials"
	GraphAuthDeviceCode        = "device_code"
)

type AppConfig struct {
	MailSource string `env:"MAIL_SOURCE" envDefault:"graph"`
}

type GraphConfig struct {
	TenantID     string `env:"GRAPH_TENANT_ID"`
	ClientID     string `env:"GRAPH_CLIENT_ID"`
	ClientSecret string `env:"GRAPH_CLIENT_SECRET"`
	Mailbox      string `env:"GRAPH_MAILBOX"`
	AuthMode     string `env:"GRAPH_AUTH_MODE" envDefault:"device_code"`
	Authority    string `env:"GRAPH_AUTHORITY"`
	ScopesRaw    string `env:"GRAPH_SCOPES" envDefault:"Mail.Read"`
	PageSize     int    `env:"GRAPH_PAGE_SIZE" envDefault:"25"`
	TokenCache   string `env:"GRAPH_TOKEN_CACHE" envDefault:"data/graph_token_cache.json"`
}

// Scopes returns the delegated scopes requested in device-code mode.
func (c *GraphConfig) Scopes() []string {
	scopes := utils.SplitList(c.ScopesRaw, false)
	if len(scopes) == 0 {
		return []string{"Mail.Read"}
	}
	return scopes
}

type IMAPConfig struct {
	Host     string `env:"IMAP_HOST"`
	Port     int    `env:"IMAP_PORT" envDefault:"993"`
	Username string `env:"IMAP_USERNAME"`
	Password string `env:"IMAP_PASSWORD"`
	Folder   string `env:"IMAP_FOLDER" envDefault:"INBOX"`
	UseTLS   bool   `env:"IMAP_TLS" envDefault:"true"`
}

type FilterConfig struct {
	SubjectKeywordsRaw    string `env:"INVOICE_SUBJECT_KEYWORDS" envDefault:"invoice;rechnung"`
	FilenamePatternsRaw   string `env:"INVOICE_FILENAME_PATTERNS" envDefault:"invoice;rechnung"`
	SenderWhitelistRaw    string `env:"INVOICE_SENDER_WHITELIST"`
	ProcessAllAttachments bool   `env:"PROCESS_ALL_ATTACHMENTS" envDefault:"false"`
}

func (c *FilterConfig) SubjectKeywords() []string {
	keywords := utils.SplitList(c.SubjectKeywordsRaw, true)
	if len(keywords) == 0 {
		return []string{"invoice"}
	}
	return keywords
}

func (c *FilterConfig) FilenamePatterns() []string {
	patterns := utils.SplitList(c.FilenamePatternsRaw, false)
	if len(patterns) == 0 {
		return []string{"invoice", "rechnung"}
	}
	return patterns
}

func (c *FilterConfig) SenderWhitelist() []string {
	return utils.SplitList(c.SenderWhitelistRaw, true)
}

type PaperlessConfig struct {
	BaseURL         string `env:"PAPERLESS_BASE_URL"`
	APIToken        string `env:"PAPERLESS_API_TOKEN"`
	DocumentTypeID  *int64 `env:"PAPERLESS_DOCUMENT_TYPE_ID"`
	CorrespondentID *int64 `env:"PAPERLESS_CORRESPONDENT_ID"`
	TagIDsRaw       string `env:"PAPERLESS_TAG_IDS"`
	TitleTemplate   string `env:"PAPERLESS_TITLE_TEMPLATE" envDefault:"{subject}"`
}

func (c *PaperlessConfig) TagIDs() []string {
	return utils.SplitList(c.TagIDsRaw, false)
}

type LedgerConfig struct {
	Driver          string `env:"LEDGER_DRIVER" envDefault:"sqlite"`
	FilePath        string `env:"LEDGER_SQLITE_PATH" envDefault:"data/ledger.db"`
	Host            string `env:"LEDGER_POSTGRES_HOST"`
	Port            string `env:"LEDGER_POSTGRES_PORT" envDefault:"5432"`
	User            string `env:"LEDGER_POSTGRES_USER"`
	Password        string `env:"LEDGER_POSTGRES_PASSWORD"`
	DBName          string `env:"LEDGER_POSTGRES_DB_NAME"`
	SSLMode         string `env:"LEDGER_POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxConn         int    `env:"LEDGER_DB_MAX_CONN" envDefault:"2"`
	MaxIdleConn     int    `env:"LEDGER_DB_MAX_IDLE_CONN" envDefault:"1"`
	ConnMaxLifetime int    `env:"LEDGER_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"LEDGER_DB_LOG_LEVEL" envDefault:"WARN"`
}

func (c *LedgerConfig) DatabaseConfig() *database.DatabaseConfig {
	return &database.DatabaseConfig{
		Driver:          c.Driver,
		FilePath:        c.FilePath,
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		DBName:          c.DBName,
		SSLMode:         c.SSLMode,
		MaxConn:         c.MaxConn,
		MaxIdleConn:     c.MaxIdleConn,
		ConnMaxLifetime: c.ConnMaxLifetime,
		LogLevel:        c.LogLevel,
	}
}

type ArchiveConfig struct {
	Enabled         bool   `env:"ARCHIVE_ENABLED" envDefault:"false"`
	R2AccountID     string `env:"ARCHIVE_R2_ACCOUNT_ID"`
	AccessKeyID     string `env:"ARCHIVE_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"ARCHIVE_ACCESS_KEY_SECRET"`
	Region          string `env:"ARCHIVE_REGION" envDefault:"us-east-1"`
	Bucket          string `env:"ARCHIVE_BUCKET" envDefault:"mailsink-attachments"`
}

type CronConfig struct {
	SyncSchedule string `env:"CRON_SCHEDULE_SYNC" envDefault:"@every 1h"`
}

type Config struct {
	AppConfig       *AppConfig
	Logger          *logger.Config
	Tracing         *tracing.JaegerConfig
	GraphConfig     *GraphConfig
	IMAPConfig      *IMAPConfig
	FilterConfig    *FilterConfig
	PaperlessConfig *PaperlessConfig
	LedgerConfig    *LedgerConfig
	ArchiveConfig   *ArchiveConfig
	CronConfig      *CronConfig
}

// compiledFilenamePatterns is used by Validate to fail eagerly on regexes
// the filter would otherwise reject at run time.
func (c *Config) compiledFilenamePatterns() error {
	for _, pattern := range c.FilterConfig.FilenamePatterns() {
		if _, err := regexp.Compile("(?i)" + pattern); err != nil {
			return err
		}
	}
	return nil
}
