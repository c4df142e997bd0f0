package orders

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type OrderNumberGenerator struct {
	prefix string
	secret string
}

func NewOrderNumberGenerator(prefix, secret string) *OrderNumberGenerator {
	if prefix == "" {
		prefix = "SHOP"
	}
	return &OrderNumberGenerator{prefix: strings.ToUpper(prefix), secret: secret}
}

// Generate returns a human-friendly number such as SHOP-7QKD-3F9A. The first
// block is an HMAC tag over the owner and a nonce, the second is random.
func (g *OrderNumberGenerator) Generate(owner string) string {
	nonce := uuid.NewString()

	mac := hmac.New(sha256.New, []byte(g.secret))
	mac.Write([]byte(fmt.Sprintf("owner:%s|nonce:%s", owner, nonce)))

	tag := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("%s-%s-%s",
		g.prefix,
		strings.ToUpper(tag[:4]),
		strings.ToUpper(uuid.NewString()[:4]),
	)
}
