package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Togather-Foundation/eventease/internal/auth"
)

const testSecret = "cmd-test-secret-0123456789abcdefghij"

func TestTokenCommandMintsVerifiableToken(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("JWT_ISSUER", "")

	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"token", "--role", "admin", "--username", "root", "--subject", "01hzz8k3q9v7x2m4n6p8r0s2a1"})
	if err := root.Execute(); err != nil {
		t.Fatalf("token command failed: %v", err)
	}

	manager, err := auth.NewJWTManagerFromSecret(testSecret, time.Hour, "eventease")
	if err != nil {
		t.Fatalf("derive manager: %v", err)
	}
	claims, err := manager.Validate(strings.TrimSpace(buf.String()))
	if err != nil {
		t.Fatalf("minted token did not validate: %v", err)
	}
	if claims.Subject != "01HZZ8K3Q9V7X2M4N6P8R0S2A1" {
		t.Errorf("expected normalized subject, got %q", claims.Subject)
	}
	if claims.Role != string(auth.RoleAdmin) || claims.Username != "root" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestMintTokenRejectsBadInput(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	tests := []struct {
		name  string
		flags tokenFlags
		want  string
	}{
		{"missing secret", tokenFlags{role: "user", expiry: time.Hour}, "JWT_SECRET is required"},
		{"unknown role", tokenFlags{secret: testSecret, role: "root", expiry: time.Hour}, "--role"},
		{"bad subject", tokenFlags{secret: testSecret, role: "user", subject: "alice", expiry: time.Hour}, "--subject"},
		{"zero expiry", tokenFlags{secret: testSecret, role: "user"}, "--expiry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mintToken(&tt.flags)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
