package auth

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var ErrUnauthorized = errors.New("credential exchange rejected")

// Token is a bearer token together with the moment it was acquired. It is
// held in memory only.
type Token struct {
	Value      string
	AcquiredAt time.Time
}

// Exchanger swaps a credential pair for a bearer token. The relay client
// implements it; tests substitute fakes.
type Exchanger interface {
	Exchange(ctx context.Context, clientID, clientSecret string) (string, error)
}

// Broker produces a currently-valid bearer token on demand. A cached token is
// reused while its age is under the soft TTL, which is kept shorter than the
// upstream token lifetime. It never retries a failed exchange; the caller
// decides.
type Broker struct {
	logger   zerolog.Logger
	store    *Store
	exchange Exchanger
	softTTL  time.Duration
	now      func() time.Time
	token    atomic.Pointer[Token]
}

func NewBroker(logger zerolog.Logger, store *Store, exchange Exchanger, softTTL time.Duration) *Broker {
	return &Broker{
		logger:   logger,
		store:    store,
		exchange: exchange,
		softTTL:  softTTL,
		now:      time.Now,
		token:    atomic.Pointer[Token]{},
	}
}

func (b *Broker) Token(ctx context.Context, force bool) (string, error) {
	if !force {
		if t := b.token.Load(); nil != t && b.now().Sub(t.AcquiredAt) < b.softTTL {
			return t.Value, nil
		}
	}

	creds, err := b.store.Credentials()
	if nil != err {
		if errors.Is(err, ErrNoCredentials) {
			return "", ErrNoCredentials
		}

		return "", fmt.Errorf("load credentials: %v", err)
	}

	value, err := b.exchange.Exchange(ctx, creds.ClientID, creds.ClientSecret)
	if nil != err {
		b.logger.Error().Err(err).Msg("Credential exchange failed")
		return "", fmt.Errorf("exchange credentials: %w", err)
	}

	b.token.Store(&Token{Value: value, AcquiredAt: b.now()})

	return value, nil
}
