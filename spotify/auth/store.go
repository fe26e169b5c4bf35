package auth

import (
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	credentialsBucketName = []byte("credentials")
	clientIDKey           = []byte("client_id")
	clientSecretKey       = []byte("client_secret")
)

var ErrNoCredentials = errors.New("no stored credentials")

// Credentials is the catalog API credential pair. It is stored as-is and
// never validated; the exchange endpoint is the authority on whether the
// pair is usable.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Store persists the credential pair across sessions in a local bbolt
// database.
type Store struct {
	db *bbolt.DB
}

func NewStore(path string) (*Store, error) {
	opts := &bbolt.Options{ //nolint:exhaustruct
		NoFreelistSync: true,
		ReadOnly:       false,
		Timeout:        1 * time.Second,
		NoGrowSync:     false,
		FreelistType:   bbolt.FreelistArrayType,
	}
	db, err := bbolt.Open(path, 0o600, opts)
	if nil != err {
		return nil, fmt.Errorf("failed to open credentials database: %v", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(credentialsBucketName); nil != err {
			return fmt.Errorf("failed to create credentials bucket: %v", err)
		}

		return nil
	})
	if nil != err {
		return nil, fmt.Errorf("failed to create buckets: %v", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); nil != err {
		return fmt.Errorf("failed to close credentials database: %v", err)
	}

	return nil
}

func (s *Store) Credentials() (*Credentials, error) {
	var creds Credentials
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(credentialsBucketName)
		if nil == b {
			return ErrNoCredentials
		}

		id := b.Get(clientIDKey)
		secret := b.Get(clientSecretKey)
		if len(id) == 0 || len(secret) == 0 {
			return ErrNoCredentials
		}

		creds.ClientID = string(id)
		creds.ClientSecret = string(secret)

		return nil
	})
	if nil != err {
		if errors.Is(err, ErrNoCredentials) {
			return nil, ErrNoCredentials
		}

		return nil, fmt.Errorf("failed to read credentials: %v", err)
	}

	return &creds, nil
}

func (s *Store) Save(creds Credentials) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(credentialsBucketName)
		if err := b.Put(clientIDKey, []byte(creds.ClientID)); nil != err {
			return fmt.Errorf("failed to put client id: %v", err)
		}

		if err := b.Put(clientSecretKey, []byte(creds.ClientSecret)); nil != err {
			return fmt.Errorf("failed to put client secret: %v", err)
		}

		return nil
	})
	if nil != err {
		return fmt.Errorf("failed to save credentials: %v", err)
	}

	return nil
}
