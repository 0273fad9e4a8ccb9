package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

func NowISO() string {
	return time.Now().Format(time.RFC3339)
}

func NormalizeBool(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "はい", "済", "yes", "true", "1", "y", "○":
		return true
	default:
		return false
	}
}

func HMACSHA256Hex(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC compares sig against the HMAC of msg in constant time.
func VerifyHMAC(secret, msg, sig string) bool {
	if sig == "" {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(HMACSHA256Hex(secret, msg)))
}

// SplitList splits a comma separated cell, dropping blanks.
func SplitList(raw string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseIDs parses a comma separated list of integer ids, skipping junk.
func ParseIDs(raw string) []int64 {
	out := []int64{}
	for _, p := range SplitList(strings.Trim(raw, "{}[]")) {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// ParseDate reads a YYYY-MM-DD date, tolerating a trailing time part.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > 10 {
		raw = raw[:10]
	}
	raw = strings.ReplaceAll(raw, "/", "-")
	return time.ParseInLocation("2006-01-02", raw, loc)
}
