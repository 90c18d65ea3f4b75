package app

import (
	iauth "invoria/internal/auth"
	"invoria/internal/database"
	"invoria/pkg/mail"
)

// JWTServiceConfig adapts auth settings for the JWT service constructor.
func (c AuthConfig) JWTServiceConfig() iauth.JWTConfig {
	return iauth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: c.JWT.TTL,
	}
}

// DatabaseOpenConfig adapts database settings for database.Open.
func (c DatabaseConfig) DatabaseOpenConfig() database.Config {
	return database.Config{
		Driver:   c.Driver,
		Path:     c.Path,
		DSN:      c.DSN,
		Host:     c.Postgres.Host,
		Port:     c.Postgres.Port,
		Name:     c.Postgres.Database,
		User:     c.Postgres.Username,
		Password: c.Postgres.Password,
		SSLMode:  c.Postgres.SSLMode,
	}
}

// SMTPSettings adapts email settings for the SMTP mailer.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// GoogleServiceConfig adapts Google OAuth settings for the identity service.
func (c GoogleConfig) GoogleServiceConfig() iauth.GoogleConfig {
	return iauth.GoogleConfig{
		ClientID:         c.ClientID,
		ClientSecret:     c.ClientSecret,
		RedirectURL:      c.RedirectURL,
		GmailRedirectURL: c.GmailRedirectURL,
		GmailScopes:      c.GmailScopes,
	}
}
