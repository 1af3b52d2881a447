package usecases

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account","entry":[]}`)
	secret := "app-secret"
	valid := SignBody(body, secret)

	assert.True(t, VerifySignature(body, valid, secret))

	tests := map[string]struct {
		body   []byte
		header string
		secret string
	}{
		"empty header":     {body, "", secret},
		"missing prefix":   {body, strings.TrimPrefix(valid, "sha256="), secret},
		"sha1 prefix":      {body, "sha1=" + strings.TrimPrefix(valid, "sha256="), secret},
		"not hex":          {body, "sha256=zz", secret},
		"truncated digest": {body, valid[:len(valid)-2], secret},
		"wrong secret":     {body, valid, "other"},
		"empty secret":     {body, valid, ""},
		"tampered body":    {append([]byte(nil), append(body, ' ')...), valid, secret},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.False(t, VerifySignature(tt.body, tt.header, tt.secret))
		})
	}
}
