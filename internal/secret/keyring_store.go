package secret

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "vfm.remote"

type keyringStore struct {
	ring keyring.Keyring
}

// NewKeyringStore tries to open the OS keyring via 99designs/keyring.
// If it fails, returns an error so callers can fallback to memory.
func NewKeyringStore() (Store, error) {
	r, err := keyring.Open(keyring.Config{ServiceName: serviceName})
	if err != nil {
		return nil, err
	}
	return &keyringStore{ring: r}, nil
}

func makeKey(host, user string) string { return fmt.Sprintf("%s|%s", user, host) }

func (s *keyringStore) Get(host, user string) (pass string, found bool, err error) {
	item, err := s.ring.Get(makeKey(host, user))
	if err != nil {
		if err == keyring.ErrKeyNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return string(item.Data), true, nil
}

func (s *keyringStore) Set(host, user, pass string) error {
	return s.ring.Set(keyring.Item{
		Key:         makeKey(host, user),
		Data:        []byte(pass),
		Description: user,
		Label:       serviceName,
	})
}

func (s *keyringStore) Delete(host, user string) error {
	return s.ring.Remove(makeKey(host, user))
}
