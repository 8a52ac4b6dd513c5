package steam

import (
	"context"
	"fmt"
)

// Factory пересобирает клиент аккаунта из учётных данных: сначала
// попытка восстановить сохранённую сессию, иначе полный логин.
type Factory struct {
	creds    Credentials
	sessions *FileSessionStore
	opts     []ClientOption
}

func NewFactory(creds Credentials, sessions *FileSessionStore, opts ...ClientOption) *Factory {
	return &Factory{
		creds:    creds,
		sessions: sessions,
		opts:     opts,
	}
}

func (f *Factory) New(ctx context.Context) (TradeClient, error) {
	client, err := NewClient(f.creds, f.sessions, f.opts...)
	if err != nil {
		return nil, fmt.Errorf("steam.NewClient: %w", err)
	}

	cookies, err := f.sessions.Load(f.creds.Username)
	if err != nil {
		return nil, fmt.Errorf("sessions.Load: %w", err)
	}

	if len(cookies) == 0 {
		if err := client.Login(ctx); err != nil {
			return nil, fmt.Errorf("client.Login: %w", err)
		}
	}

	return client, nil
}
