package notify

import (
	"fmt"
	"time"

	"hrsync/internal/config"
	"hrsync/internal/hrsync"
)

// NewNotifierFromConfig creates a notification gateway based on the notify
// config type. Type "none" yields an unconfigured gateway.
func NewNotifierFromConfig(cfg config.NotifyConfig, timeout time.Duration, logger hrsync.Logger) (*Gateway, error) {
	renderer, err := NewRenderer(cfg.SubjectPrefix)
	if err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "none", "":
		return NewGateway(renderer, nil), nil
	case "log":
		return NewGateway(renderer, NewLogTransport(logger)), nil
	case "memory":
		return NewGateway(renderer, NewMemoryTransport()), nil
	case "smtp":
		t, err := NewSMTPTransport(SMTPConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			TLS:      cfg.TLS,
			From:     cfg.From,
			To:       cfg.To,
			Timeout:  timeout,
		})
		if err != nil {
			return nil, err
		}
		return NewGateway(renderer, t), nil
	default:
		return nil, fmt.Errorf("unknown notify type: %s", cfg.Type)
	}
}
