package session

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestIssueAndParse(t *testing.T) {
	m := NewManager("secret", "tinybank", time.Hour)
	id := uuid.New()

	token, expires, err := m.Issue(id)
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(expires) <= 0 {
		t.Fatalf("expires=%v already passed", expires)
	}

	got, err := m.Parse(token)
	if err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Fatalf("id=%v want=%v", got, id)
	}
}

func TestParseRejects(t *testing.T) {
	m := NewManager("secret", "tinybank", time.Hour)
	id := uuid.New()
	token, _, _ := m.Issue(id)

	other := NewManager("other-secret", "tinybank", time.Hour)
	if _, err := other.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret err=%v", err)
	}

	wrongIssuer := NewManager("secret", "someone-else", time.Hour)
	if _, err := wrongIssuer.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong issuer err=%v", err)
	}

	expired := NewManager("secret", "tinybank", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, _ := expired.Issue(id)
	if _, err := m.Parse(old); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired err=%v", err)
	}

	if _, err := m.Parse("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage err=%v", err)
	}

	// alg=none 必須拒絕
	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{AccountID: id.String()})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := m.Parse(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("alg none err=%v", err)
	}
}

func TestDefaultTTL(t *testing.T) {
	if NewManager("s", "i", 0).TTL() != DefaultTTL {
		t.Fatal("zero ttl should fall back to DefaultTTL")
	}
}
