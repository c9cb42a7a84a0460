package daraja

import (
	"encoding/base64"
	"time"
)

const timestampLayout = "20060102150405"

// Timestamp renders t in the YYYYMMDDHHmmss form the gateway signs against.
func Timestamp(t time.Time) string { return t.Format(timestampLayout) }

// Password derives the Lipa na M-Pesa request password for a timestamp.
func Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}
