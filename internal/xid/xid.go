// Package xid generates prefixed unique ids for stored records: "prod" for
// products, "cli" for clients, "sale" for sales and "audit" for audit log
// entries. Ids are time-ordered with a random suffix so concurrent writers
// cannot collide.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}
