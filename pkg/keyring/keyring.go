// Package keyring stores credentials for generated deployments in an
// encrypted file next to the configuration. Entries are grouped per
// account name and encrypted as one blob under a master key.
package keyring

import (
	"fmt"
	"sort"
)

// MaxKeyLength bounds the master key. The on-disk header stores the
// key length in a single byte.
const MaxKeyLength = 255

// Keyring is an in-memory credential store. Not safe for concurrent
// use.
type Keyring struct {
	entries map[string]map[string]string
}

func New() *Keyring {
	return &Keyring{entries: make(map[string]map[string]string)}
}

// Store sets attribute to value for the given account, creating the
// account entry if needed.
func (k *Keyring) Store(account, attribute, value string) {
	attrs, ok := k.entries[account]
	if !ok {
		attrs = make(map[string]string)
		k.entries[account] = attrs
	}
	attrs[attribute] = value
}

// Fetch returns the stored attribute for the account.
func (k *Keyring) Fetch(account, attribute string) (string, error) {
	attrs, ok := k.entries[account]
	if !ok {
		return "", fmt.Errorf("account %q not found in keyring", account)
	}
	value, ok := attrs[attribute]
	if !ok {
		return "", fmt.Errorf("attribute %q not set for account %q", attribute, account)
	}
	return value, nil
}

// Remove drops the whole account entry. Removing an absent account is
// not an error.
func (k *Keyring) Remove(account string) {
	delete(k.entries, account)
}

// Accounts lists the stored account names, sorted.
func (k *Keyring) Accounts() []string {
	names := make([]string, 0, len(k.entries))
	for name := range k.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
