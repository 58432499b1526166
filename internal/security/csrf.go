package security

import (
	"crypto/subtle"
	"sync"
	"time"

	"rentdesk/internal/crypto"
)

type csrfRecord struct {
	value    string
	issuedAt time.Time
}

// CSRFIssuer hands out one anti-forgery token per channel (session subject,
// or an IP+user-agent composite for anonymous callers). Issuing replaces any
// prior token for the channel.
type CSRFIssuer struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	tokens map[string]csrfRecord
}

func NewCSRFIssuer(ttl time.Duration, now func() time.Time) *CSRFIssuer {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if now == nil {
		now = time.Now
	}

	return &CSRFIssuer{
		ttl:    ttl,
		now:    now,
		tokens: map[string]csrfRecord{},
	}
}

func (i *CSRFIssuer) Issue(channelID string) (string, error) {
	token, err := crypto.NewOpaqueToken(32)
	if err != nil {
		return "", err
	}

	i.mu.Lock()
	i.tokens[channelID] = csrfRecord{value: token, issuedAt: i.now()}
	i.mu.Unlock()

	return token, nil
}

// Verify compares the presented token against the last issued token for the
// channel in constant time. Absence, staleness, and mismatch all reject.
func (i *CSRFIssuer) Verify(channelID, presented string) bool {
	if presented == "" {
		return false
	}

	i.mu.Lock()
	record, ok := i.tokens[channelID]
	if ok && i.now().Sub(record.issuedAt) > i.ttl {
		delete(i.tokens, channelID)
		ok = false
	}
	i.mu.Unlock()

	if !ok {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(record.value), []byte(presented)) == 1
}

// Sweep drops expired tokens so anonymous channels do not pile up. Locks per
// entry so issuance is never blocked for a full pass.
func (i *CSRFIssuer) Sweep() int {
	ts := i.now()

	i.mu.Lock()
	ids := make([]string, 0, len(i.tokens))
	for id := range i.tokens {
		ids = append(ids, id)
	}
	i.mu.Unlock()

	removed := 0
	for _, id := range ids {
		i.mu.Lock()
		if record, ok := i.tokens[id]; ok && ts.Sub(record.issuedAt) > i.ttl {
			delete(i.tokens, id)
			removed++
		}
		i.mu.Unlock()
	}

	return removed
}
