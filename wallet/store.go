// Package wallet manages per-network client payment credentials on disk and
// turns them into signers on demand.
//
// The credentials file holds private key material. It is written with 0600
// permissions and must never be committed to version control, returned by
// any API, or logged.
package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	x402 "github.com/x402lab/x402-solana"
	"github.com/x402lab/x402-solana/signers/svm"
)

// Credentials is the stored configuration for one network's payer wallet.
// Exactly one of KeygenFile and PrivateKey should be set.
type Credentials struct {
	// Network is the x402 network identifier this wallet pays on.
	Network string `json:"network"`

	// KeygenFile is a path to a Solana CLI keygen JSON file.
	KeygenFile string `json:"keygenFile,omitempty"`

	// PrivateKey is a base58-encoded private key.
	PrivateKey string `json:"privateKey,omitempty"`
}

// Store holds wallet credentials keyed by network.
type Store struct {
	mu      sync.Mutex
	path    string
	wallets map[string]Credentials
}

// Open loads the credentials file at path, or starts empty if it does not
// exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path, wallets: make(map[string]Credentials)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet store: %w", err)
	}

	var wallets []Credentials
	if err := json.Unmarshal(data, &wallets); err != nil {
		return nil, fmt.Errorf("corrupt wallet store %s: %w", path, err)
	}
	for _, w := range wallets {
		s.wallets[w.Network] = w
	}
	return s, nil
}

// Put stores credentials for a network, replacing any existing entry, and
// persists the store.
func (s *Store) Put(creds Credentials) error {
	if err := x402.ValidateNetwork(creds.Network); err != nil {
		return err
	}
	if creds.KeygenFile == "" && creds.PrivateKey == "" {
		return fmt.Errorf("%w: no key source configured", x402.ErrInvalidKeystore)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.wallets[creds.Network]
	s.wallets[creds.Network] = creds
	if err := s.persistLocked(); err != nil {
		if had {
			s.wallets[creds.Network] = prev
		} else {
			delete(s.wallets, creds.Network)
		}
		return fmt.Errorf("failed to persist wallet store: %w", err)
	}
	return nil
}

// Remove deletes a network's credentials and persists the store.
func (s *Store) Remove(network string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.wallets[network]
	if !ok {
		return nil
	}
	delete(s.wallets, network)
	if err := s.persistLocked(); err != nil {
		s.wallets[network] = prev
		return fmt.Errorf("failed to persist wallet store: %w", err)
	}
	return nil
}

// Networks lists the networks with stored credentials, sorted.
func (s *Store) Networks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	networks := make([]string, 0, len(s.wallets))
	for network := range s.wallets {
		networks = append(networks, network)
	}
	sort.Strings(networks)
	return networks
}

// Signer builds a payment signer from the credentials stored for network.
func (s *Store) Signer(network string) (x402.Signer, error) {
	s.mu.Lock()
	creds, ok := s.wallets[network]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: no wallet for network %q", x402.ErrInvalidKeystore, network)
	}

	opts := []svm.SignerOption{svm.WithNetwork(creds.Network)}
	switch {
	case creds.KeygenFile != "":
		opts = append(opts, svm.WithKeygenFile(creds.KeygenFile))
	case creds.PrivateKey != "":
		opts = append(opts, svm.WithPrivateKey(creds.PrivateKey))
	}
	return svm.NewSigner(opts...)
}

// persistLocked rewrites the store file via temp file and rename, 0600.
// Must be called with the lock held.
func (s *Store) persistLocked() error {
	wallets := make([]Credentials, 0, len(s.wallets))
	for _, w := range s.wallets {
		wallets = append(wallets, w)
	}
	sort.Slice(wallets, func(i, j int) bool { return wallets[i].Network < wallets[j].Network })

	data, err := json.MarshalIndent(wallets, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".wallets-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}
