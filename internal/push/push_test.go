package push

import (
	"encoding/base64"
	"testing"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	// Public key: uncompressed P-256 point.
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

func TestConfigEnabled(t *testing.T) {
	if (Config{}).Enabled() {
		t.Error("empty config should be disabled")
	}
	if (Config{VAPIDPublicKey: "a"}).Enabled() {
		t.Error("half a key pair should be disabled")
	}
	if !(Config{VAPIDPublicKey: "a", VAPIDPrivateKey: "b"}).Enabled() {
		t.Error("full key pair should be enabled")
	}
}

func TestNewServiceDefaultsSubscriber(t *testing.T) {
	s := NewService(Config{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv"})
	if s.cfg.Subscriber == "" {
		t.Error("expected a default subscriber")
	}
	if s.VAPIDPublicKey() != "pub" {
		t.Errorf("public key = %q", s.VAPIDPublicKey())
	}
}
